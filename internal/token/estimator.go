package token

import (
	"errors"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/zhixiangxue/chak-ai/internal/message"
)

// ErrEstimation token 估算失败（正常输入下不应出现）
var ErrEstimation = errors.New("token estimation failed")

const (
	// messageOverhead 每条消息的格式开销（角色、分隔符）
	messageOverhead = 4
	// conversationTail 对话结束标记的开销
	conversationTail = 2
)

// Estimator 估算文本的 token 数量。
// 要求：确定性（相同输入相同结果）、单调（更长的文本不会更少）、无网络访问。
type Estimator interface {
	Estimate(text string) int
}

// CharEstimator 按字符数估算（约 4 字符 = 1 token）。
// 粗略但稳定，适合在 tiktoken 编码不可用时作为兜底。
type CharEstimator struct {
	CharsPerToken int // 0 表示使用默认值 4
}

// Estimate 实现 Estimator
func (e CharEstimator) Estimate(text string) int {
	per := e.CharsPerToken
	if per <= 0 {
		per = 4
	}
	if text == "" {
		return 0
	}
	return (len(text) + per - 1) / per
}

// TiktokenEstimator 基于 tiktoken 编码的估算器
type TiktokenEstimator struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenEstimator 创建估算器。
// 优先使用模型对应的编码，未识别的模型回退到 cl100k_base。
func NewTiktokenEstimator(model string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEstimation, err)
		}
	}
	return &TiktokenEstimator{encoding: enc}, nil
}

// Estimate 实现 Estimator
func (e *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(e.encoding.Encode(text, nil, nil))
}

// ForModel 返回模型对应的估算器，tiktoken 初始化失败时回退到字符估算。
// 回退保证调用方总能拿到一个可用的估算器（正确性优先于精度）。
func ForModel(model string) Estimator {
	if est, err := NewTiktokenEstimator(model); err == nil {
		return est
	}
	return CharEstimator{}
}

// MessageTokens 估算单条消息的 token 数（含每条消息的格式开销）。
// 结果缓存在消息上，后续调用直接命中缓存。
func MessageTokens(est Estimator, m *message.Message) int {
	if cached, ok := m.CachedTokens(); ok {
		return cached + messageOverhead
	}
	n := est.Estimate(m.Content)
	m.SetCachedTokens(n)
	return n + messageOverhead
}

// MessagesTokens 估算消息列表的总 token 数。
// 每条消息计一次结构开销，整个列表计一次结束标记开销，避免重复计数。
func MessagesTokens(est Estimator, messages []*message.Message) int {
	total := 0
	for _, m := range messages {
		total += MessageTokens(est, m)
	}
	return total + conversationTail
}
