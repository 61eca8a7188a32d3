// Package chat 实现 /ws/conversation 的 WebSocket 会话处理。
// 每个连接绑定一个对话，连接关闭时对话随之销毁。
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhixiangxue/chak-ai/internal/config"
	"github.com/zhixiangxue/chak-ai/internal/conversation"
	"github.com/zhixiangxue/chak-ai/internal/logger"
	"github.com/zhixiangxue/chak-ai/internal/message"
	"github.com/zhixiangxue/chak-ai/internal/metrics"
	"github.com/zhixiangxue/chak-ai/internal/provider"
	"github.com/zhixiangxue/chak-ai/internal/strategy"
	"github.com/zhixiangxue/chak-ai/internal/summarizer"
	"github.com/zhixiangxue/chak-ai/internal/token"
)

// WSHandler 对话 WebSocket 处理器
type WSHandler struct {
	cfg      *config.Config
	registry *conversation.Registry
	upgrader websocket.Upgrader
}

// NewWSHandler 创建处理器
func NewWSHandler(cfg *config.Config, registry *conversation.Registry) *WSHandler {
	return &WSHandler{
		cfg:      cfg,
		registry: registry,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect 升级连接并进入请求循环
func (h *WSHandler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	metrics.WSConnectionsActive.Inc()
	defer metrics.WSConnectionsActive.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var conv *conversation.Conversation
	defer func() {
		if conv != nil {
			h.registry.Remove(conv.ID())
		}
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.sendError(conn, "Invalid JSON format", "")
			continue
		}

		switch env.Type {
		case "init":
			created, err := h.handleInit(conn, raw)
			if err != nil {
				continue
			}
			conv = created

		case "send":
			if conv == nil {
				h.sendError(conn, "Conversation not initialized", "")
				continue
			}
			h.handleSend(ctx, conn, conv, raw)

		case "add_messages":
			if conv == nil {
				h.sendError(conn, "Conversation not initialized", "")
				continue
			}
			h.handleAddMessages(conn, conv, raw)

		case "reset":
			if conv == nil {
				h.sendError(conn, "Conversation not initialized", "")
				continue
			}
			conv.Reset()
			h.writeJSON(conn, OKResponse{Type: "ok", Action: "reset"})

		case "clear":
			if conv == nil {
				h.sendError(conn, "Conversation not initialized", "")
				continue
			}
			conv.Clear()
			h.writeJSON(conn, OKResponse{Type: "ok", Action: "clear"})

		case "stats":
			if conv == nil {
				h.sendError(conn, "Conversation not initialized", "")
				continue
			}
			h.writeJSON(conn, StatsResponse{Type: "stats", Data: conv.Stats()})

		default:
			h.sendError(conn, fmt.Sprintf("Unknown message type: %s", env.Type), "")
		}
	}
}

func (h *WSHandler) handleInit(conn *websocket.Conn, raw []byte) (*conversation.Conversation, error) {
	var req InitRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.sendError(conn, "Invalid init request", err.Error())
		return nil, err
	}
	if req.ModelURI == "" {
		h.sendError(conn, "model_uri is required", "")
		return nil, fmt.Errorf("missing model_uri")
	}

	parsed, err := provider.ParseURI(req.ModelURI)
	if err != nil {
		h.sendError(conn, "Invalid model_uri", err.Error())
		return nil, err
	}

	entry, ok := h.cfg.Providers.ProviderEntry(parsed.Provider)
	if !ok {
		h.sendError(conn, fmt.Sprintf("API key not configured for provider: %s", parsed.Provider), "")
		return nil, fmt.Errorf("api key not found for provider %s", parsed.Provider)
	}

	// 配置以 "provider@base_url" 形式声明了自定义地址、且请求 URI 未
	// 显式指定时，改写为完整格式 URI（URI 里的显式地址优先）
	modelURI := req.ModelURI
	if parsed.BaseURL == "" && entry.BaseURL != "" {
		modelURI, err = provider.BuildURI(parsed.Provider, parsed.Model, entry.BaseURL)
		if err != nil {
			h.sendError(conn, "Invalid provider base_url configuration", err.Error())
			return nil, err
		}
	}

	strat, err := h.buildStrategy(req.ContextStrategy, parsed.Model)
	if err != nil {
		h.sendError(conn, "Failed to create context strategy", err.Error())
		return nil, err
	}

	conv, err := conversation.New(conversation.Options{
		ModelURI:      modelURI,
		APIKey:        entry.APIKey,
		SystemMessage: req.SystemMessage,
		Strategy:      strat,
	})
	if err != nil {
		h.sendError(conn, "Failed to create conversation", err.Error())
		return nil, err
	}
	h.registry.Put(conv)

	h.writeJSON(conn, OKResponse{
		Type:           "ok",
		Action:         "init",
		ConversationID: conv.ID(),
		ModelURI:       req.ModelURI,
	})
	return conv, nil
}

// buildStrategy 按名字创建策略，参数取配置的默认值
func (h *WSHandler) buildStrategy(name, model string) (strategy.Strategy, error) {
	sc := h.cfg.Strategy
	switch name {
	case "", "noop":
		return strategy.NewNoop(), nil
	case "fifo":
		return strategy.NewFIFO(sc.KeepRecentTurns, sc.MaxInputTokens, token.ForModel(model))
	case "summarize", "lru":
		client, err := summarizer.New(summarizer.Config{
			ModelURI: sc.SummarizerModelURI,
			APIKey:   config.ResolveEnvValue(sc.SummarizerAPIKey),
		})
		if err != nil {
			return nil, err
		}
		cfg := strategy.SummarizeConfig{
			MaxInputTokens:    sc.MaxInputTokens,
			Threshold:         sc.Threshold,
			PreferRecentTurns: sc.PreferRecentTurns,
		}
		if name == "lru" {
			return strategy.NewLRU(cfg, token.ForModel(model), client)
		}
		return strategy.NewSummarize(cfg, token.ForModel(model), client)
	default:
		return nil, fmt.Errorf("unknown context strategy: %q", name)
	}
}

func (h *WSHandler) handleSend(ctx context.Context, conn *websocket.Conn, conv *conversation.Conversation, raw []byte) {
	var req SendRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.sendError(conn, "Invalid send request", err.Error())
		return
	}

	role := message.Role(req.Role)
	if req.Role == "" {
		role = message.RoleUser
	}

	if req.Stream {
		chunks, errs := conv.SendStream(ctx, req.Message, role, nil)
		for chunk := range chunks {
			resp := ChunkResponse{
				Type:    "chunk",
				Content: chunk.Content,
				IsFinal: chunk.Done,
			}
			if chunk.Done && chunk.Final != nil {
				p := toPayload(chunk.Final)
				resp.FinalMessage = &p
			}
			h.writeJSON(conn, resp)
		}
		if err := <-errs; err != nil {
			h.sendError(conn, "Send failed", err.Error())
		}
		return
	}

	reply, err := conv.Send(ctx, req.Message, role, nil)
	if err != nil {
		h.sendError(conn, "Send failed", err.Error())
		return
	}
	h.writeJSON(conn, MessageResponse{Type: "message", Message: toPayload(reply)})
}

func (h *WSHandler) handleAddMessages(conn *websocket.Conn, conv *conversation.Conversation, raw []byte) {
	var req AddMessagesRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		h.sendError(conn, "Invalid add_messages request", err.Error())
		return
	}

	msgs := make([]*message.Message, 0, len(req.Messages))
	for _, r := range req.Messages {
		m, err := r.ToMessage()
		if err != nil {
			h.sendError(conn, "Invalid message in batch", err.Error())
			return
		}
		msgs = append(msgs, m)
	}
	conv.AddMessages(msgs)

	h.writeJSON(conn, OKResponse{Type: "ok", Action: "add_messages", Count: len(msgs)})
}

func (h *WSHandler) sendError(conn *websocket.Conn, errMsg, detail string) {
	h.writeJSON(conn, ErrorResponse{Type: "error", Error: errMsg, Detail: detail})
}

func (h *WSHandler) writeJSON(conn *websocket.Conn, v any) {
	if err := conn.WriteJSON(v); err != nil {
		logger.Warn("WebSocket 写入失败", zap.Error(err))
	}
}
