package message

import (
	"time"
)

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	// RoleContext 上下文标记消息（由策略插入，非真实对话）
	RoleContext Role = "context"
)

// MarkerKind 标记类型
type MarkerKind string

const (
	MarkerTruncate MarkerKind = "truncate"
	MarkerSummary  MarkerKind = "summary"
	MarkerLRU      MarkerKind = "lru"
)

// 标记消息 metadata 使用的键
const (
	MetaMarkerType      = "type"
	MetaSummarizedCount = "summarized_count"
	MetaSummary         = "summary"
	MetaTruncateReason  = "reason"
	MetaUsage           = "usage"
)

// Usage 单次模型调用的 token 消耗
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Message 对话消息
//
// 消息一旦追加到对话日志即视为不可变，唯一例外是 token 估算缓存
// （首次估算后写入，避免重复编码）。
type Message struct {
	Role             Role           `json:"role"`
	Content          string         `json:"content"`
	ReasoningContent string         `json:"reasoning_content,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`

	// tokenCount 缓存的 token 估算值加一（0 表示未计算，零值安全）
	tokenCount int
}

// New 创建消息
func New(role Role, content string) *Message {
	return &Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUser 创建用户消息
func NewUser(content string) *Message { return New(RoleUser, content) }

// NewAssistant 创建助手消息
func NewAssistant(content string) *Message { return New(RoleAssistant, content) }

// NewSystem 创建系统消息
func NewSystem(content string) *Message { return New(RoleSystem, content) }

// NewTool 创建工具消息
func NewTool(content string) *Message { return New(RoleTool, content) }

// NewMarker 创建标记消息
func NewMarker(kind MarkerKind, content string, metadata map[string]any) *Message {
	m := New(RoleContext, content)
	if metadata == nil {
		metadata = make(map[string]any)
	}
	metadata[MetaMarkerType] = string(kind)
	m.Metadata = metadata
	return m
}

// IsMarker 是否为标记消息
func (m *Message) IsMarker() bool {
	return m.Role == RoleContext
}

// MarkerKind 返回标记类型，非标记消息返回空串
func (m *Message) MarkerKind() MarkerKind {
	if !m.IsMarker() || m.Metadata == nil {
		return ""
	}
	if t, ok := m.Metadata[MetaMarkerType].(string); ok {
		return MarkerKind(t)
	}
	return ""
}

// Summary 返回标记消息携带的纯摘要文本（不含 "[Conversation Summary]" 前缀）
func (m *Message) Summary() string {
	if m.Metadata == nil {
		return ""
	}
	if s, ok := m.Metadata[MetaSummary].(string); ok {
		return s
	}
	return ""
}

// CachedTokens 返回缓存的 token 估算值，未计算时返回 (0, false)
func (m *Message) CachedTokens() (int, bool) {
	if m.tokenCount == 0 {
		return 0, false
	}
	return m.tokenCount - 1, true
}

// SetCachedTokens 写入 token 估算缓存
func (m *Message) SetCachedTokens(n int) {
	if n >= 0 {
		m.tokenCount = n + 1
	}
}

// LastMarkerIndex 返回最后一个标记消息的下标，不存在时返回 -1。
// kinds 为空时匹配任意标记类型。
func LastMarkerIndex(messages []*Message, kinds ...MarkerKind) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].IsMarker() {
			continue
		}
		if len(kinds) == 0 {
			return i
		}
		mk := messages[i].MarkerKind()
		for _, k := range kinds {
			if mk == k {
				return i
			}
		}
	}
	return -1
}

// MarkerIndices 返回指定类型标记消息的全部下标（按日志顺序）
func MarkerIndices(messages []*Message, kind MarkerKind) []int {
	var indices []int
	for i, m := range messages {
		if m.IsMarker() && m.MarkerKind() == kind {
			indices = append(indices, i)
		}
	}
	return indices
}
