package summarizer

import (
	"context"
	"fmt"

	"github.com/zhixiangxue/chak-ai/internal/message"
	"github.com/zhixiangxue/chak-ai/internal/strategy"
)

// Static 固定文本摘要器，不访问网络。
// 用于测试和不需要真实摘要模型的离线场景。
type Static struct {
	// Text 固定返回的摘要文本，为空时返回区间统计信息
	Text string
	// Err 非 nil 时每次调用都返回该错误
	Err error

	// Calls 记录调用次数，便于断言
	Calls int
}

var _ strategy.Summarizer = (*Static)(nil)

// Summarize 实现 strategy.Summarizer
func (s *Static) Summarize(_ context.Context, span []*message.Message) (string, error) {
	s.Calls++
	if s.Err != nil {
		return "", s.Err
	}
	if s.Text != "" {
		return s.Text, nil
	}
	return fmt.Sprintf("summary of %d messages", len(span)), nil
}

// CompressHotTopics 实现 strategy.Summarizer
func (s *Static) CompressHotTopics(_ context.Context, span []*message.Message, _ []string) (string, error) {
	s.Calls++
	if s.Err != nil {
		return "", s.Err
	}
	if s.Text != "" {
		return s.Text, nil
	}
	return fmt.Sprintf("hot topics of %d messages", len(span)), nil
}
