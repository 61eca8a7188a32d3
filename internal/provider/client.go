// Package provider 实现模型提供方接入层。
//
// 流程：模型 URI -> 解析 -> 提供方配置 -> OpenAI 兼容客户端。
// 这一层只负责请求/响应适配，不涉及上下文管理。
package provider

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zhixiangxue/chak-ai/internal/message"
	"github.com/zhixiangxue/chak-ai/internal/metrics"
)

// ChatOptions 单次对话请求的可选参数
type ChatOptions struct {
	Temperature float32
	MaxTokens   int
}

// StreamChunk 流式响应片段
type StreamChunk struct {
	Content string
	Done    bool
	// Final 在 Done 时携带完整的最终消息
	Final *message.Message
}

// Client 模型客户端：包装 OpenAI 兼容接口
type Client struct {
	api        *openai.Client
	provider   string
	model      string
	maxRetries int
	opts       ChatOptions
}

// NewClient 根据模型 URI 和 API Key 创建客户端。
// URI 查询参数里的 temperature/max_tokens 作为默认请求参数。
func NewClient(modelURI, apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, &ClientError{Type: ErrorTypeAuth, Message: "API Key 不能为空"}
	}

	parsed, err := ParseURI(modelURI)
	if err != nil {
		return nil, err
	}
	baseURL, err := ResolveBaseURL(parsed)
	if err != nil {
		return nil, err
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	opts := ChatOptions{}
	if v, ok := parsed.Params["temperature"]; ok {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			opts.Temperature = float32(f)
		}
	}
	if v, ok := parsed.Params["max_tokens"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			opts.MaxTokens = n
		}
	}

	return &Client{
		api:        openai.NewClientWithConfig(cfg),
		provider:   parsed.Provider,
		model:      parsed.Model,
		maxRetries: 3,
		opts:       opts,
	}, nil
}

// Provider 提供方名称
func (c *Client) Provider() string { return c.provider }

// Model 模型名称
func (c *Client) Model() string { return c.model }

// Chat 非流式对话补全。
// 输入为发送视图，标记消息会转换为 system 角色发给模型。
func (c *Client) Chat(ctx context.Context, view []*message.Message, opts *ChatOptions) (*message.Message, error) {
	req := c.buildRequest(view, opts)

	start := time.Now()
	var resp openai.ChatCompletionResponse
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.api.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		ce := wrapError(err)
		if !ce.Retryable() || ctx.Err() != nil {
			err = ce
			break
		}
		// 指数退避
		if i < c.maxRetries {
			select {
			case <-time.After(time.Duration(1<<uint(i)) * time.Second):
			case <-ctx.Done():
				metrics.ProviderRequestsTotal.WithLabelValues(c.provider, "error").Inc()
				return nil, wrapError(ctx.Err())
			}
		}
	}
	metrics.ProviderRequestDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		metrics.ProviderRequestsTotal.WithLabelValues(c.provider, "error").Inc()
		return nil, &ClientError{Type: ErrorTypeServerError, Message: "API 返回空响应"}
	}
	metrics.ProviderRequestsTotal.WithLabelValues(c.provider, "ok").Inc()

	reply := message.NewAssistant(resp.Choices[0].Message.Content)
	reply.ReasoningContent = resp.Choices[0].Message.ReasoningContent
	reply.Metadata = map[string]any{
		message.MetaUsage: message.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	return reply, nil
}

// ChatStream 流式对话补全。
// 片段依次写入返回的 channel，结束时发送 Done 片段（携带完整消息），
// 错误写入错误 channel。两个 channel 都会在结束后关闭。
func (c *Client) ChatStream(ctx context.Context, view []*message.Message, opts *ChatOptions) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk, 10)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		req := c.buildRequest(view, opts)
		req.Stream = true

		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			metrics.ProviderRequestsTotal.WithLabelValues(c.provider, "error").Inc()
			errs <- wrapError(err)
			return
		}
		defer stream.Close()

		var content string
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				metrics.ProviderRequestsTotal.WithLabelValues(c.provider, "error").Inc()
				errs <- wrapError(err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			content += delta
			select {
			case chunks <- StreamChunk{Content: delta}:
			case <-ctx.Done():
				errs <- wrapError(ctx.Err())
				return
			}
		}

		metrics.ProviderRequestsTotal.WithLabelValues(c.provider, "ok").Inc()
		final := message.NewAssistant(content)
		chunks <- StreamChunk{Done: true, Final: final}
	}()

	return chunks, errs
}

func (c *Client) buildRequest(view []*message.Message, opts *ChatOptions) openai.ChatCompletionRequest {
	if opts == nil {
		opts = &c.opts
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(view))
	for _, m := range view {
		role := string(m.Role)
		// 标记消息以 system 角色发送，保证提供方兼容
		if m.Role == message.RoleContext {
			if m.Content == "" {
				continue
			}
			role = openai.ChatMessageRoleSystem
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
}
