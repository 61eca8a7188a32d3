// Package summarizer 实现摘要客户端：调用（可能更便宜的）模型
// 把一段对话压缩为摘要文本，供摘要/LRU 策略使用。
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhixiangxue/chak-ai/internal/logger"
	"github.com/zhixiangxue/chak-ai/internal/message"
	"github.com/zhixiangxue/chak-ai/internal/provider"
	"github.com/zhixiangxue/chak-ai/internal/strategy"
)

// ErrSummarizationFailed 摘要调用失败。
// 网络错误、认证失败、服务端错误、超时统一归入这一类，
// 底层原因通过 errors.Unwrap 链保留。
var ErrSummarizationFailed = errors.New("summarization failed")

// defaultTimeout 单次摘要调用的超时上限。
// 摘要调用是策略评估中唯一可能阻塞在网络 I/O 上的操作，必须有界。
const defaultTimeout = 120 * time.Second

// summarizeTemperature 摘要生成温度，低温保证稳定输出
const summarizeTemperature = 0.2

// Config 摘要客户端配置
type Config struct {
	// ModelURI 摘要模型 URI，必填
	ModelURI string
	// APIKey 摘要模型 API Key，必填
	APIKey string
	// Timeout 单次调用超时，0 表示使用默认值
	Timeout time.Duration
}

// Client 基于 OpenAI 兼容接口的摘要客户端
type Client struct {
	api     *provider.Client
	timeout time.Duration
}

var _ strategy.Summarizer = (*Client)(nil)

// New 创建摘要客户端
func New(cfg Config) (*Client, error) {
	if cfg.ModelURI == "" {
		return nil, fmt.Errorf("%w: summarizer_model_uri is required", strategy.ErrConfiguration)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: summarizer_api_key is required", strategy.ErrConfiguration)
	}
	api, err := provider.NewClient(cfg.ModelURI, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", strategy.ErrConfiguration, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{api: api, timeout: timeout}, nil
}

// Summarize 实现 strategy.Summarizer：生成累积摘要
func (c *Client) Summarize(ctx context.Context, span []*message.Message) (string, error) {
	return c.complete(ctx, summarySystemPrompt, span)
}

// CompressHotTopics 实现 strategy.Summarizer：仅保留热点话题的再压缩
func (c *Client) CompressHotTopics(ctx context.Context, span []*message.Message, recentSummaries []string) (string, error) {
	recentContext := "No recent context"
	if len(recentSummaries) > 0 {
		recentContext = strings.Join(recentSummaries, "\n\n---\n\n")
	}
	system := hotTopicSystemPromptPrefix + recentContext + hotTopicSystemPromptSuffix
	return c.complete(ctx, system, span)
}

func (c *Client) complete(ctx context.Context, systemPrompt string, span []*message.Message) (string, error) {
	prompt := Transcript(span)
	if prompt == "" {
		return "", fmt.Errorf("%w: no valid content to summarize", ErrSummarizationFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	view := []*message.Message{
		message.NewSystem(systemPrompt),
		message.NewUser(prompt),
	}

	start := time.Now()
	reply, err := c.api.Chat(ctx, view, &provider.ChatOptions{Temperature: summarizeTemperature})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarizationFailed, err)
	}

	text := strings.TrimSpace(reply.Content)
	if text == "" {
		return "", fmt.Errorf("%w: summarizer model returned empty response", ErrSummarizationFailed)
	}

	logger.Debug("摘要生成完成",
		zap.Int("span_len", len(span)),
		zap.Int("summary_chars", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

// Transcript 把消息区间拼装为摘要输入文本。
// 标记消息取其纯摘要内容（去掉 "[Conversation Summary]" 前缀），
// 以 "Previous Summary" 角色呈现，这是累积摘要的关键。
func Transcript(span []*message.Message) string {
	var sb strings.Builder
	for _, m := range span {
		var role, text string
		switch {
		case m.IsMarker():
			role = "Previous Summary"
			text = strings.TrimSpace(m.Summary())
		case m.Role == message.RoleUser:
			role = "User"
			text = strings.TrimSpace(m.Content)
		case m.Role == message.RoleAssistant:
			role = "Assistant"
			text = strings.TrimSpace(m.Content)
		default:
			role = "Message"
			text = strings.TrimSpace(m.Content)
		}
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(text)
	}
	return sb.String()
}
