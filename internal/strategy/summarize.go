package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhixiangxue/chak-ai/internal/logger"
	"github.com/zhixiangxue/chak-ai/internal/message"
	"github.com/zhixiangxue/chak-ai/internal/metrics"
	"github.com/zhixiangxue/chak-ai/internal/token"
)

// Summarizer 摘要客户端：调用（可能更便宜的）模型压缩一段消息。
// 网络错误、认证错误、服务端错误、超时统一包装为摘要失败错误向上传递。
type Summarizer interface {
	// Summarize 把一段消息压缩为累积摘要文本
	Summarize(ctx context.Context, span []*message.Message) (string, error)
	// CompressHotTopics 基于最近摘要上下文再压缩，仅保留热点话题内容
	CompressHotTopics(ctx context.Context, span []*message.Message, recentSummaries []string) (string, error)
}

// SummarizeConfig 摘要策略配置
type SummarizeConfig struct {
	// MaxInputTokens 模型上下文窗口上限，必须为正
	MaxInputTokens int
	// Threshold 触发阈值比例，(0, 1]，0 表示使用默认值 0.75
	Threshold float64
	// PreferRecentTurns 摘要时保留的最近轮次数，负数非法，0 表示使用默认值 2
	PreferRecentTurns int
}

const (
	defaultThreshold         = 0.75
	defaultPreferRecentTurns = 2
)

func (c *SummarizeConfig) normalize() error {
	if c.MaxInputTokens <= 0 {
		return fmt.Errorf("%w: max_input_tokens must be positive, got %d", ErrConfiguration, c.MaxInputTokens)
	}
	if c.Threshold == 0 {
		c.Threshold = defaultThreshold
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: summarize_threshold must be in (0, 1], got %v", ErrConfiguration, c.Threshold)
	}
	if c.PreferRecentTurns < 0 {
		return fmt.Errorf("%w: prefer_recent_turns must be non-negative, got %d", ErrConfiguration, c.PreferRecentTurns)
	}
	if c.PreferRecentTurns == 0 {
		c.PreferRecentTurns = defaultPreferRecentTurns
	}
	return nil
}

// Summarize 阈值触发的摘要策略。
//
// 无损压缩：通过插入摘要标记实现，原始消息永不删除。
// 每个标记的摘要区间从上一个标记（含）开始，因此新摘要总是累积了全部
// 历史内容，而不只是上次标记之后的增量。
type Summarize struct {
	cfg           SummarizeConfig
	triggerTokens int
	estimator     token.Estimator
	summarizer    Summarizer
}

// NewSummarize 创建摘要策略。estimator 为 nil 时使用字符估算。
func NewSummarize(cfg SummarizeConfig, estimator token.Estimator, summarizer Summarizer) (*Summarize, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if summarizer == nil {
		return nil, fmt.Errorf("%w: summarizer is required", ErrConfiguration)
	}
	if estimator == nil {
		estimator = token.CharEstimator{}
	}
	return &Summarize{
		cfg:           cfg,
		triggerTokens: int(float64(cfg.MaxInputTokens) * cfg.Threshold),
		estimator:     estimator,
		summarizer:    summarizer,
	}, nil
}

// Name 实现 Strategy
func (*Summarize) Name() string { return "summarize" }

// Process 实现 Strategy。
//
// 摘要调用失败时不修改日志：返回原始消息和错误，本次发送退回未压缩
// （或上一个标记压缩后）的视图，下一次调用重新尝试触发。
func (s *Summarize) Process(ctx context.Context, req Request) (Response, error) {
	messages := req.Messages
	if len(messages) == 0 {
		return Response{Messages: messages}, nil
	}

	// 候选发送视图：系统消息 + 最后一个标记（含）→ 末尾
	view := SendView(messages)
	total := token.MessagesTokens(s.estimator, view)
	if total < s.triggerTokens {
		return Response{Messages: messages}, nil
	}

	lastMarker := message.LastMarkerIndex(messages)
	conv := conversationAfter(messages, lastMarker)

	// 只有当最近 preferRecentTurns 个轮次之外还有完整轮次时才触发，
	// 这保证了无新消息时重复调用不会再次摘要
	boundary := preserveStart(conv, s.cfg.PreferRecentTurns)
	if boundary <= 0 {
		return Response{Messages: messages}, nil
	}

	preserveIdx := indexOf(messages, conv[boundary])
	if preserveIdx < 0 {
		return Response{Messages: messages}, nil
	}

	summarizeStart := 0
	if lastMarker >= 0 {
		summarizeStart = lastMarker
	}
	span := messages[summarizeStart:preserveIdx]

	logger.Debug("摘要触发",
		zap.Int("total_tokens", total),
		zap.Int("trigger_tokens", s.triggerTokens),
		zap.Int("span_len", len(span)),
	)
	metrics.StrategyTriggersTotal.WithLabelValues(s.Name()).Inc()

	summary, err := s.summarizer.Summarize(ctx, span)
	if err != nil {
		metrics.SummarizerFailuresTotal.Inc()
		return Response{Messages: messages}, err
	}
	// 取消的调用不插入半成品标记，日志保持原样
	if err := ctx.Err(); err != nil {
		return Response{Messages: messages}, err
	}

	marker := message.NewMarker(message.MarkerSummary,
		"[Conversation Summary] "+summary,
		map[string]any{
			message.MetaSummarizedCount: len(span),
			message.MetaSummary:         summary,
		})

	return Response{Messages: insertAt(messages, preserveIdx, marker)}, nil
}
