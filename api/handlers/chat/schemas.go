package chat

import (
	"fmt"

	"github.com/zhixiangxue/chak-ai/internal/message"
)

// Envelope 仅用于取出请求类型
type Envelope struct {
	Type string `json:"type"`
}

// InitRequest 初始化对话请求
type InitRequest struct {
	Type            string `json:"type"`
	ModelURI        string `json:"model_uri"`
	SystemMessage   string `json:"system_message,omitempty"`
	ContextStrategy string `json:"context_strategy,omitempty"` // noop, fifo, summarize, lru
}

// SendRequest 发送消息请求
type SendRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Role    string `json:"role,omitempty"`
	Stream  bool   `json:"stream,omitempty"`
}

// AddMessagesRequest 批量追加消息请求，用于恢复历史对话
type AddMessagesRequest struct {
	Type     string            `json:"type"`
	Messages []RestoredMessage `json:"messages"`
}

// RestoredMessage 待恢复的单条消息
type RestoredMessage struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToMessage 转换为内部消息。context 角色还原为标记消息。
func (r RestoredMessage) ToMessage() (*message.Message, error) {
	switch message.Role(r.Role) {
	case message.RoleUser, message.RoleAssistant, message.RoleSystem, message.RoleTool:
		return message.New(message.Role(r.Role), r.Content), nil
	case message.RoleContext:
		kind := message.MarkerKind("")
		if t, ok := r.Metadata[message.MetaMarkerType].(string); ok {
			kind = message.MarkerKind(t)
		}
		return message.NewMarker(kind, r.Content, r.Metadata), nil
	default:
		return nil, fmt.Errorf("invalid role: %q", r.Role)
	}
}

// MessagePayload 响应中的消息
type MessagePayload struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func toPayload(m *message.Message) MessagePayload {
	return MessagePayload{
		Role:     string(m.Role),
		Content:  m.Content,
		Metadata: m.Metadata,
	}
}

// OKResponse 操作确认响应
type OKResponse struct {
	Type           string `json:"type"` // 固定为 ok
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id,omitempty"`
	ModelURI       string `json:"model_uri,omitempty"`
	Count          int    `json:"count,omitempty"`
}

// MessageResponse 非流式回复
type MessageResponse struct {
	Type    string         `json:"type"` // 固定为 message
	Message MessagePayload `json:"message"`
}

// ChunkResponse 流式片段
type ChunkResponse struct {
	Type         string          `json:"type"` // 固定为 chunk
	Content      string          `json:"content"`
	IsFinal      bool            `json:"is_final"`
	FinalMessage *MessagePayload `json:"final_message,omitempty"`
}

// StatsResponse 统计响应
type StatsResponse struct {
	Type string `json:"type"` // 固定为 stats
	Data any    `json:"data"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Type   string `json:"type"` // 固定为 error
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
