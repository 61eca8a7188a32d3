// Package conversation 实现对话控制器：维护只追加的消息日志，
// 在每次模型调用前执行上下文策略，并把发送视图交给模型客户端。
package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhixiangxue/chak-ai/internal/logger"
	"github.com/zhixiangxue/chak-ai/internal/message"
	"github.com/zhixiangxue/chak-ai/internal/metrics"
	"github.com/zhixiangxue/chak-ai/internal/provider"
	"github.com/zhixiangxue/chak-ai/internal/strategy"
	"github.com/zhixiangxue/chak-ai/internal/token"
)

// Options 创建对话的配置
type Options struct {
	// ModelURI 模型 URI，必填
	ModelURI string
	// APIKey API Key，必填
	APIKey string
	// SystemMessage 初始系统消息，可为空
	SystemMessage string
	// Strategy 上下文策略，nil 表示 Noop（全量发送）
	Strategy strategy.Strategy
}

// Conversation 单个对话。
//
// 消息日志只追加，"遗忘"只意味着从发送视图中排除，绝不删除。
// 每个对话同一时刻只允许一次策略评估在途（互斥锁串行化）；
// 不同对话之间没有共享可变状态，可以完全并行。
type Conversation struct {
	id     string
	client *provider.Client
	strat  strategy.Strategy
	est    token.Estimator

	mu            sync.Mutex
	messages      []*message.Message
	initialSystem *message.Message
}

// New 创建对话
func New(opts Options) (*Conversation, error) {
	client, err := provider.NewClient(opts.ModelURI, opts.APIKey)
	if err != nil {
		return nil, err
	}

	strat := opts.Strategy
	if strat == nil {
		strat = strategy.NewNoop()
	}

	c := &Conversation{
		id:     uuid.NewString(),
		client: client,
		strat:  strat,
		est:    token.ForModel(client.Model()),
	}
	if opts.SystemMessage != "" {
		c.initialSystem = message.NewSystem(opts.SystemMessage)
		c.messages = append(c.messages, c.initialSystem)
	}

	logger.Info("对话创建",
		zap.String("conversation_id", c.id),
		zap.String("provider", client.Provider()),
		zap.String("model", client.Model()),
		zap.String("strategy", strat.Name()),
	)
	return c, nil
}

// ID 返回对话标识
func (c *Conversation) ID() string { return c.id }

// AddMessages 批量追加消息，用于恢复历史对话
func (c *Conversation) AddMessages(msgs []*message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msgs...)
}

// Evaluate 执行上下文策略并返回发送视图。
// 策略可能向日志追加一个标记消息；取消或失败时日志保持原样。
func (c *Conversation) Evaluate(ctx context.Context) ([]*message.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluateLocked(ctx)
}

func (c *Conversation) evaluateLocked(ctx context.Context) ([]*message.Message, error) {
	resp, err := c.strat.Process(ctx, strategy.Request{Messages: c.messages})
	if len(resp.Messages) > 0 {
		c.messages = resp.Messages
	}
	view := strategy.SendView(c.messages)
	if err != nil {
		// 策略降级：日志未变，全量视图仍然可发送
		logger.Warn("策略评估失败，降级为当前视图",
			zap.String("conversation_id", c.id),
			zap.Error(err),
		)
	}
	metrics.SendViewTokens.Observe(float64(token.MessagesTokens(c.est, view)))
	return view, nil
}

// Send 追加一条消息并请求模型回复。
// role 为空时默认 user。回复消息同样追加到日志后返回。
func (c *Conversation) Send(ctx context.Context, content string, role message.Role, opts *provider.ChatOptions) (*message.Message, error) {
	view, err := c.appendAndEvaluate(ctx, content, role)
	if err != nil {
		return nil, err
	}

	reply, err := c.client.Chat(ctx, view, opts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.messages = append(c.messages, reply)
	c.mu.Unlock()
	return reply, nil
}

// SendStream 追加一条消息并以流式方式请求模型回复。
// 结束片段（Done=true）发出前，完整回复已追加到日志。
func (c *Conversation) SendStream(ctx context.Context, content string, role message.Role, opts *provider.ChatOptions) (<-chan provider.StreamChunk, <-chan error) {
	chunks := make(chan provider.StreamChunk, 10)
	errs := make(chan error, 1)

	view, err := c.appendAndEvaluate(ctx, content, role)
	if err != nil {
		errs <- err
		close(chunks)
		close(errs)
		return chunks, errs
	}

	upstream, upstreamErrs := c.client.ChatStream(ctx, view, opts)
	go func() {
		defer close(chunks)
		defer close(errs)
		for chunk := range upstream {
			if chunk.Done && chunk.Final != nil {
				c.mu.Lock()
				c.messages = append(c.messages, chunk.Final)
				c.mu.Unlock()
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if err := <-upstreamErrs; err != nil {
			errs <- err
		}
	}()
	return chunks, errs
}

func (c *Conversation) appendAndEvaluate(ctx context.Context, content string, role message.Role) ([]*message.Message, error) {
	if role == "" {
		role = message.RoleUser
	}
	switch role {
	case message.RoleUser, message.RoleAssistant, message.RoleSystem, message.RoleTool:
	default:
		return nil, fmt.Errorf("invalid role: %q", role)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message.New(role, content))
	return c.evaluateLocked(ctx)
}

// FullHistory 返回完整消息日志的副本（含所有标记），用于审计和导出。
// 无论插入过多少标记，日志都保持完整。
func (c *Conversation) FullHistory() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*message.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Reset 清空对话历史，但保留初始系统消息
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	if c.initialSystem != nil {
		c.messages = append(c.messages, c.initialSystem)
	}
}

// Clear 清空全部消息，包括初始系统消息
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// Stats 对话统计
type Stats struct {
	TotalMessages int            `json:"total_messages"`
	ByType        map[string]int `json:"by_type"`
	TotalTokens   string         `json:"total_tokens"`
	InputTokens   string         `json:"input_tokens"`
	OutputTokens  string         `json:"output_tokens"`
}

// Stats 汇总对话统计信息。
// token 数来自模型回复携带的 usage 元数据，超过 1000 时以 K 计。
func (c *Conversation) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		TotalMessages: len(c.messages),
		ByType:        make(map[string]int),
	}
	var total, input, output int
	for _, m := range c.messages {
		s.ByType[string(m.Role)]++
		if u, ok := m.Metadata[message.MetaUsage].(message.Usage); ok {
			total += u.TotalTokens
			input += u.PromptTokens
			output += u.CompletionTokens
		}
	}
	s.TotalTokens = formatTokens(total)
	s.InputTokens = formatTokens(input)
	s.OutputTokens = formatTokens(output)
	return s
}

// formatTokens 超过 1000 时以 K 表示
func formatTokens(tokens int) string {
	if tokens >= 1000 {
		return fmt.Sprintf("%.1fK", float64(tokens)/1000)
	}
	return fmt.Sprintf("%d", tokens)
}
