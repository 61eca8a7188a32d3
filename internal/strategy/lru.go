package strategy

import (
	"context"

	"go.uber.org/zap"

	"github.com/zhixiangxue/chak-ai/internal/logger"
	"github.com/zhixiangxue/chak-ai/internal/message"
	"github.com/zhixiangxue/chak-ai/internal/metrics"
	"github.com/zhixiangxue/chak-ai/internal/token"
)

// recentMarkersCount 热点分析考察的最近摘要标记数量
const recentMarkersCount = 5

// LRU 冷话题遗忘策略。
//
// 借鉴 LRU 缓存淘汰：包装摘要策略，在其之上做二阶压缩。
// 摘要策略压缩全部内容（所有话题），LRU 只保留仍被最近轮次引用的
// 热点话题，冷话题被自动遗忘（从发送视图排除，日志仍完整保留）。
//
// 热/冷的判定委托给摘要客户端的模型调用：引擎只负责提供最近
// recentMarkersCount 个摘要和待压缩区间，并处理返回的压缩结果。
type LRU struct {
	inner *Summarize
}

// NewLRU 创建 LRU 策略，参数与摘要策略完全一致。
func NewLRU(cfg SummarizeConfig, estimator token.Estimator, summarizer Summarizer) (*LRU, error) {
	inner, err := NewSummarize(cfg, estimator, summarizer)
	if err != nil {
		return nil, err
	}
	return &LRU{inner: inner}, nil
}

// Name 实现 Strategy
func (*LRU) Name() string { return "lru" }

// Process 实现 Strategy。
//
// 先由内部摘要策略完成一阶触发，随后检查摘要标记数量：
// 达到 recentMarkersCount 个后，把最近一段重新压缩为仅含热点话题的
// LRU 标记，插入在最后一个摘要标记之后（原标记保留，审计可见）。
// 压缩调用失败时本次沿用摘要级视图，不插入标记。
func (s *LRU) Process(ctx context.Context, req Request) (Response, error) {
	result, err := s.inner.Process(ctx, req)
	if err != nil {
		return result, err
	}

	messages := result.Messages
	summaryIndices := message.MarkerIndices(messages, message.MarkerSummary)
	if len(summaryIndices) < recentMarkersCount {
		return result, nil
	}

	lastSummaryIdx := summaryIndices[len(summaryIndices)-1]

	// 最后一个摘要标记之后已有 LRU 标记时无需重复压缩（幂等）
	if lruIdx := message.LastMarkerIndex(messages, message.MarkerLRU); lruIdx > lastSummaryIdx {
		return result, nil
	}

	recent := summaryIndices
	if len(recent) > recentMarkersCount {
		recent = recent[len(recent)-recentMarkersCount:]
	}
	recentSummaries := make([]string, 0, len(recent))
	for _, idx := range recent {
		if s := messages[idx].Summary(); s != "" {
			recentSummaries = append(recentSummaries, s)
		}
	}

	// 待压缩区间：倒数第二个摘要标记（或日志开头）→ 最后一个摘要标记
	compressStart := 0
	if len(summaryIndices) >= 2 {
		compressStart = summaryIndices[len(summaryIndices)-2]
	}
	span := messages[compressStart:lastSummaryIdx]

	logger.Debug("LRU 话题压缩",
		zap.Int("summary_markers", len(summaryIndices)),
		zap.Int("span_len", len(span)),
	)
	metrics.StrategyTriggersTotal.WithLabelValues(s.Name()).Inc()

	compressed, err := s.inner.summarizer.CompressHotTopics(ctx, span, recentSummaries)
	if err != nil {
		metrics.SummarizerFailuresTotal.Inc()
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	marker := message.NewMarker(message.MarkerLRU,
		"[LRU Pruned Summary] "+compressed,
		map[string]any{
			message.MetaSummarizedCount: len(span),
			message.MetaSummary:         compressed,
		})

	return Response{Messages: insertAt(messages, lastSummaryIdx+1, marker)}, nil
}
