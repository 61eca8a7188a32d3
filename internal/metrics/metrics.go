package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 上下文策略指标
var (
	// StrategyTriggersTotal 策略触发总数（按策略类型）
	StrategyTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chak_strategy_triggers_total",
			Help: "上下文策略触发总数",
		},
		[]string{"strategy"},
	)

	// SummarizerFailuresTotal 摘要调用失败总数
	SummarizerFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chak_summarizer_failures_total",
			Help: "摘要模型调用失败总数",
		},
	)

	// SendViewTokens 发送视图的估算 token 分布
	SendViewTokens = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chak_send_view_tokens",
			Help:    "每次请求发送视图的估算 token 数分布",
			Buckets: []float64{256, 1024, 4096, 16384, 65536, 131072},
		},
	)
)

// 网关指标
var (
	// WSConnectionsActive 活跃 WebSocket 连接数
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chak_ws_connections_active",
			Help: "活跃 WebSocket 对话连接数",
		},
	)

	// ProviderRequestsTotal 模型请求总数（按提供方与结果）
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chak_provider_requests_total",
			Help: "模型提供方请求总数",
		},
		[]string{"provider", "status"},
	)

	// ProviderRequestDuration 模型请求耗时（秒）
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chak_provider_request_duration_seconds",
			Help:    "模型提供方请求耗时分布",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)
)
