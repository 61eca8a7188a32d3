package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhixiangxue/chak-ai/internal/message"
	"github.com/zhixiangxue/chak-ai/internal/token"
)

// FIFO 先进先出截断策略。
//
// 以轮次为单位截断较早的对话消息，在截断点插入截断标记。
// 被截断的消息保留在日志中（审计用），仅从发送视图排除。
//
// 截断从不拆分轮次：当最近的轮次本身已超过 max_input_tokens 时，
// 这些轮次仍然完整发送，允许超出上限（文档化行为，不做静默切割）。
type FIFO struct {
	keepRecentTurns int
	maxInputTokens  int
	estimator       token.Estimator
}

// NewFIFO 创建 FIFO 策略。
//
// keepRecentTurns 与 maxInputTokens 至少设置一个（0 表示不启用该维度）；
// 两者都设置时同时满足两个约束。estimator 为 nil 时使用字符估算。
func NewFIFO(keepRecentTurns, maxInputTokens int, estimator token.Estimator) (*FIFO, error) {
	if keepRecentTurns < 0 {
		return nil, fmt.Errorf("%w: keep_recent_turns must be non-negative, got %d", ErrConfiguration, keepRecentTurns)
	}
	if maxInputTokens < 0 {
		return nil, fmt.Errorf("%w: max_input_tokens must be non-negative, got %d", ErrConfiguration, maxInputTokens)
	}
	if keepRecentTurns == 0 && maxInputTokens == 0 {
		return nil, fmt.Errorf("%w: at least one of keep_recent_turns or max_input_tokens must be set", ErrConfiguration)
	}
	if estimator == nil {
		estimator = token.CharEstimator{}
	}
	return &FIFO{
		keepRecentTurns: keepRecentTurns,
		maxInputTokens:  maxInputTokens,
		estimator:       estimator,
	}, nil
}

// Name 实现 Strategy
func (*FIFO) Name() string { return "fifo" }

// Process 实现 Strategy。无需外部调用，除配置错误外不会失败。
func (s *FIFO) Process(_ context.Context, req Request) (Response, error) {
	messages := req.Messages
	if len(messages) == 0 {
		return Response{Messages: messages}, nil
	}

	lastMarker := message.LastMarkerIndex(messages)
	conv := conversationAfter(messages, lastMarker)
	if len(conv) == 0 {
		return Response{Messages: messages}, nil
	}

	boundary := -1

	// 轮次维度：保留最近 keepRecentTurns 个轮次
	if s.keepRecentTurns > 0 {
		boundary = preserveStart(conv, s.keepRecentTurns)
	}

	// token 维度：从最近的轮次往前整轮累加，超出预算即停。
	// 最近一个轮次无条件保留。
	if s.maxInputTokens > 0 {
		if b := s.preserveStartByTokens(messages, conv); b > boundary {
			boundary = b
		}
	}

	if boundary <= 0 {
		return Response{Messages: messages}, nil
	}

	insertIdx := indexOf(messages, conv[boundary])
	if insertIdx < 0 {
		return Response{Messages: messages}, nil
	}

	marker := message.NewMarker(message.MarkerTruncate, "", map[string]any{
		message.MetaSummarizedCount: boundary,
		message.MetaTruncateReason:  s.reason(),
	})

	return Response{Messages: insertAt(messages, insertIdx, marker)}, nil
}

// preserveStartByTokens 返回满足 token 预算的保留区起点（conv 内下标）。
// 按轮次整体计算，从最新轮次向前累加。
func (s *FIFO) preserveStartByTokens(messages, conv []*message.Message) int {
	total := token.MessagesTokens(s.estimator, SendView(messages))
	if total <= s.maxInputTokens {
		return -1
	}

	starts := userIndices(conv) // 从后往前的轮次起点
	if len(starts) <= 1 {
		return -1
	}

	budget := s.maxInputTokens
	for _, m := range messages {
		if m.Role == message.RoleSystem {
			budget -= token.MessageTokens(s.estimator, m)
		}
	}

	// 逐轮累加，轮次 i 覆盖 conv[starts[i] : end)
	used := 0
	end := len(conv)
	kept := 0
	for _, start := range starts {
		turnTokens := 0
		for _, m := range conv[start:end] {
			turnTokens += token.MessageTokens(s.estimator, m)
		}
		if kept > 0 && used+turnTokens > budget {
			// end 此时指向已保留的最早轮次起点
			return end
		}
		used += turnTokens
		end = start
		kept++
	}
	return -1
}

func (s *FIFO) reason() string {
	var parts []string
	if s.keepRecentTurns > 0 {
		parts = append(parts, fmt.Sprintf("keep_recent_turns=%d", s.keepRecentTurns))
	}
	if s.maxInputTokens > 0 {
		parts = append(parts, fmt.Sprintf("max_input_tokens=%d", s.maxInputTokens))
	}
	return "FIFO truncation: " + strings.Join(parts, ", ")
}
