package strategy

import "context"

// Noop 直通策略：不做任何处理，所有消息原样发送。
// 用于调试和基线对比。
type Noop struct{}

// NewNoop 创建直通策略
func NewNoop() *Noop { return &Noop{} }

// Name 实现 Strategy
func (*Noop) Name() string { return "noop" }

// Process 实现 Strategy
func (*Noop) Process(_ context.Context, req Request) (Response, error) {
	return Response{Messages: req.Messages}, nil
}
