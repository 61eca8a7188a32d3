package chat

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhixiangxue/chak-ai/internal/config"
	"github.com/zhixiangxue/chak-ai/internal/conversation"
	"github.com/zhixiangxue/chak-ai/internal/message"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			APIKeys: map[string]string{"openai": "sk-test"},
		},
		Strategy: config.StrategyConfig{
			KeepRecentTurns: 3,
			MaxInputTokens:  128000,
		},
	}

	router := gin.New()
	handler := NewWSHandler(cfg, conversation.NewRegistry())
	router.GET("/ws/conversation", handler.Connect)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/conversation"
	return srv, wsURL
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "WebSocket 连接失败")
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req any) map[string]any {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err, "读取响应失败")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

// TestWSInitSuccess 初始化成功返回对话 id
func TestWSInitSuccess(t *testing.T) {
	_, wsURL := newTestServer(t)
	conn := dial(t, wsURL)

	resp := roundTrip(t, conn, InitRequest{
		Type:            "init",
		ModelURI:        "openai/gpt-4",
		SystemMessage:   "you are helpful",
		ContextStrategy: "fifo",
	})

	assert.Equal(t, "ok", resp["type"])
	assert.Equal(t, "init", resp["action"])
	assert.Equal(t, "openai/gpt-4", resp["model_uri"])
	assert.NotEmpty(t, resp["conversation_id"])
}

// TestWSInitUnknownProvider 未配置的提供方返回错误
func TestWSInitUnknownProvider(t *testing.T) {
	_, wsURL := newTestServer(t)
	conn := dial(t, wsURL)

	resp := roundTrip(t, conn, InitRequest{Type: "init", ModelURI: "deepseek/deepseek-chat"})

	assert.Equal(t, "error", resp["type"])
	assert.Contains(t, resp["error"], "deepseek")
}

// TestWSInitBadURI 非法 URI 返回错误
func TestWSInitBadURI(t *testing.T) {
	_, wsURL := newTestServer(t)
	conn := dial(t, wsURL)

	resp := roundTrip(t, conn, InitRequest{Type: "init", ModelURI: "no-separator"})
	assert.Equal(t, "error", resp["type"])

	resp = roundTrip(t, conn, map[string]any{"type": "init"})
	assert.Equal(t, "error", resp["type"])
}

// TestWSRequiresInit 未初始化时其余操作返回错误
func TestWSRequiresInit(t *testing.T) {
	_, wsURL := newTestServer(t)
	conn := dial(t, wsURL)

	for _, typ := range []string{"send", "add_messages", "reset", "clear", "stats"} {
		resp := roundTrip(t, conn, map[string]any{"type": typ})
		assert.Equal(t, "error", resp["type"], "type=%s", typ)
		assert.Contains(t, resp["error"], "not initialized", "type=%s", typ)
	}
}

// TestWSUnknownType 未知请求类型返回错误
func TestWSUnknownType(t *testing.T) {
	_, wsURL := newTestServer(t)
	conn := dial(t, wsURL)

	resp := roundTrip(t, conn, map[string]any{"type": "bogus"})
	assert.Equal(t, "error", resp["type"])
	assert.Contains(t, resp["error"], "bogus")
}

// TestWSInvalidJSON 非法 JSON 返回错误而不断开连接
func TestWSInvalidJSON(t *testing.T) {
	_, wsURL := newTestServer(t)
	conn := dial(t, wsURL)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "error", resp["type"])

	// 连接仍然可用
	resp = roundTrip(t, conn, map[string]any{"type": "bogus"})
	assert.Equal(t, "error", resp["type"])
}

// TestWSAddMessagesAndStats 恢复历史后统计可见
func TestWSAddMessagesAndStats(t *testing.T) {
	_, wsURL := newTestServer(t)
	conn := dial(t, wsURL)

	resp := roundTrip(t, conn, InitRequest{Type: "init", ModelURI: "openai/gpt-4"})
	require.Equal(t, "ok", resp["type"])

	resp = roundTrip(t, conn, AddMessagesRequest{
		Type: "add_messages",
		Messages: []RestoredMessage{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "hi"},
			{Role: "context", Content: "[Conversation Summary] old", Metadata: map[string]any{
				"type":    "summary",
				"summary": "old",
			}},
		},
	})
	assert.Equal(t, "ok", resp["type"])
	assert.Equal(t, float64(3), resp["count"])

	resp = roundTrip(t, conn, map[string]any{"type": "stats"})
	require.Equal(t, "stats", resp["type"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(3), data["total_messages"])
	byType := data["by_type"].(map[string]any)
	assert.Equal(t, float64(1), byType["user"])
	assert.Equal(t, float64(1), byType["context"])
}

// TestWSResetAndClear 重置与清空
func TestWSResetAndClear(t *testing.T) {
	_, wsURL := newTestServer(t)
	conn := dial(t, wsURL)

	resp := roundTrip(t, conn, InitRequest{Type: "init", ModelURI: "openai/gpt-4", SystemMessage: "sys"})
	require.Equal(t, "ok", resp["type"])

	roundTrip(t, conn, AddMessagesRequest{Type: "add_messages", Messages: []RestoredMessage{
		{Role: "user", Content: "q"},
	}})

	resp = roundTrip(t, conn, map[string]any{"type": "reset"})
	assert.Equal(t, "ok", resp["type"])
	assert.Equal(t, "reset", resp["action"])

	resp = roundTrip(t, conn, map[string]any{"type": "stats"})
	data := resp["data"].(map[string]any)
	assert.Equal(t, float64(1), data["total_messages"], "Reset 后应只剩系统消息")

	resp = roundTrip(t, conn, map[string]any{"type": "clear"})
	assert.Equal(t, "clear", resp["action"])

	resp = roundTrip(t, conn, map[string]any{"type": "stats"})
	data = resp["data"].(map[string]any)
	assert.Equal(t, float64(0), data["total_messages"], "Clear 后历史应为空")
}

// TestRestoredMessageToMessage dto 转换
func TestRestoredMessageToMessage(t *testing.T) {
	m, err := RestoredMessage{Role: "user", Content: "q"}.ToMessage()
	require.NoError(t, err)
	assert.Equal(t, message.RoleUser, m.Role)

	m, err = RestoredMessage{Role: "context", Content: "[Conversation Summary] s", Metadata: map[string]any{
		"type":    "summary",
		"summary": "s",
	}}.ToMessage()
	require.NoError(t, err)
	assert.True(t, m.IsMarker())
	assert.Equal(t, message.MarkerSummary, m.MarkerKind())
	assert.Equal(t, "s", m.Summary())

	_, err = RestoredMessage{Role: "wizard", Content: "x"}.ToMessage()
	assert.Error(t, err)
}
