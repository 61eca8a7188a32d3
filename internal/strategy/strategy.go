// Package strategy 实现上下文管理策略引擎。
//
// 策略接收完整对话日志，决定是否插入标记消息（截断/摘要/LRU），
// 返回带标记的完整日志。日志只增不删：被标记覆盖的消息仅从发送视图
// 中排除，永远保留在日志里。
package strategy

import (
	"context"
	"errors"

	"github.com/zhixiangxue/chak-ai/internal/message"
)

// ErrConfiguration 策略配置非法（构造时校验，不会重试）
var ErrConfiguration = errors.New("invalid strategy configuration")

// Request 策略输入：完整消息日志
type Request struct {
	Messages []*message.Message
}

// Response 策略输出：完整消息日志（可能插入了标记消息）
type Response struct {
	Messages []*message.Message
}

// Strategy 上下文管理策略。
//
// Process 在每次向模型发送请求前调用一次。实现必须满足：
//   - 不修改既有消息内容，只插入标记消息
//   - 幂等：两次调用之间没有新消息时，第二次调用不改变日志
//   - 失败时返回可用的回退日志（通常为原始输入）和错误，由调用方决定
//     记录/上报；日志本身永不因错误而损坏
type Strategy interface {
	Process(ctx context.Context, req Request) (Response, error)
	Name() string
}

// SendView 提取发送视图：系统消息 + 最后一个标记（含）→ 末尾。
// 没有标记时返回系统消息 + 全部对话消息。
func SendView(messages []*message.Message) []*message.Message {
	if len(messages) == 0 {
		return nil
	}

	var systems []*message.Message
	for _, m := range messages {
		if m.Role == message.RoleSystem {
			systems = append(systems, m)
		}
	}

	lastMarker := message.LastMarkerIndex(messages)

	view := make([]*message.Message, 0, len(messages))
	view = append(view, systems...)
	if lastMarker >= 0 {
		for _, m := range messages[lastMarker:] {
			if m.Role == message.RoleSystem {
				continue
			}
			view = append(view, m)
		}
	} else {
		for _, m := range messages {
			if m.Role == message.RoleSystem {
				continue
			}
			view = append(view, m)
		}
	}
	return view
}

// conversationAfter 返回 start（不含）之后的对话消息（排除系统消息和标记）。
// start 为 -1 时返回全部对话消息。
func conversationAfter(messages []*message.Message, start int) []*message.Message {
	var conv []*message.Message
	for i := start + 1; i < len(messages); i++ {
		m := messages[i]
		if m.Role == message.RoleSystem || m.IsMarker() {
			continue
		}
		conv = append(conv, m)
	}
	return conv
}

// userIndices 返回对话消息中用户消息的下标，按从后往前的顺序。
// 一个"轮次"从一条用户消息开始，到下一条用户消息之前结束。
func userIndices(conv []*message.Message) []int {
	var indices []int
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == message.RoleUser {
			indices = append(indices, i)
		}
	}
	return indices
}

// preserveStart 返回保留最近 keep 个轮次时的保留区起点：
// 从后往前数第 keep 条用户消息的下标，发送视图恰好包含最近 keep 个完整轮次。
// 轮次不足 keep 个时返回 -1（无需截断）。
func preserveStart(conv []*message.Message, keep int) int {
	if keep <= 0 {
		return -1
	}
	indices := userIndices(conv)
	if len(indices) < keep {
		return -1
	}
	return indices[keep-1]
}

// indexOf 在完整日志中定位目标消息（按指针相等）
func indexOf(messages []*message.Message, target *message.Message) int {
	for i, m := range messages {
		if m == target {
			return i
		}
	}
	return -1
}

// insertAt 在 idx 位置插入标记，返回新的消息列表。
// 原切片不被修改，插入是一次性构建，调用方持有的旧日志保持可读。
func insertAt(messages []*message.Message, idx int, marker *message.Message) []*message.Message {
	out := make([]*message.Message, 0, len(messages)+1)
	out = append(out, messages[:idx]...)
	out = append(out, marker)
	out = append(out, messages[idx:]...)
	return out
}
