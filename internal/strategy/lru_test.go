package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/zhixiangxue/chak-ai/internal/message"
	"github.com/zhixiangxue/chak-ai/internal/token"
)

func newLRU(t *testing.T, f *fakeSummarizer) *LRU {
	t.Helper()
	s, err := NewLRU(SummarizeConfig{MaxInputTokens: 1000, Threshold: 0.75}, token.CharEstimator{CharsPerToken: 1}, f)
	if err != nil {
		t.Fatalf("创建 LRU 策略失败: %v", err)
	}
	return s
}

func summaryMarker(text string) *message.Message {
	return message.NewMarker(message.MarkerSummary, "[Conversation Summary] "+text, map[string]any{
		message.MetaSummary: text,
	})
}

// markedLog 构造带 n 个摘要标记的日志，每个标记之间夹一个轮次，
// 末尾跟随一个小轮次（低于摘要阈值，不触发一阶摘要）。
func markedLog(n int) []*message.Message {
	var msgs []*message.Message
	for i := 0; i < n; i++ {
		msgs = append(msgs,
			message.NewUser(fmt.Sprintf("topic %d question", i)),
			message.NewAssistant(fmt.Sprintf("topic %d answer", i)),
			summaryMarker(fmt.Sprintf("summary %d", i)),
		)
	}
	msgs = append(msgs,
		message.NewUser("latest question"),
		message.NewAssistant("latest answer"),
	)
	return msgs
}

// TestLRUBelowMarkerThreshold 摘要标记不足 5 个时不做二阶压缩
func TestLRUBelowMarkerThreshold(t *testing.T) {
	f := &fakeSummarizer{}
	s := newLRU(t, f)

	msgs := markedLog(4)
	resp, err := s.Process(context.Background(), Request{Messages: msgs})
	if err != nil {
		t.Fatalf("Process 失败: %v", err)
	}
	if len(resp.Messages) != len(msgs) {
		t.Errorf("4 个标记不应触发 LRU 压缩")
	}
	if len(f.recentSummaries) != 0 {
		t.Errorf("压缩调用不应发生")
	}
}

// TestLRUTriggersAtFiveMarkers 5 个摘要标记触发二阶压缩
func TestLRUTriggersAtFiveMarkers(t *testing.T) {
	f := &fakeSummarizer{compressed: "hot topics only"}
	s := newLRU(t, f)

	msgs := markedLog(5)
	resp, err := s.Process(context.Background(), Request{Messages: msgs})
	if err != nil {
		t.Fatalf("Process 失败: %v", err)
	}
	if len(resp.Messages) != len(msgs)+1 {
		t.Fatalf("应插入 LRU 标记: got %d, want %d", len(resp.Messages), len(msgs)+1)
	}

	// LRU 标记插入在最后一个摘要标记之后
	lruIdx := message.LastMarkerIndex(resp.Messages, message.MarkerLRU)
	if lruIdx < 0 {
		t.Fatalf("未找到 LRU 标记")
	}
	lastSummaryIdx := -1
	for _, idx := range message.MarkerIndices(resp.Messages, message.MarkerSummary) {
		lastSummaryIdx = idx
	}
	if lruIdx != lastSummaryIdx+1 {
		t.Errorf("LRU 标记位置错误: got %d, want %d", lruIdx, lastSummaryIdx+1)
	}

	marker := resp.Messages[lruIdx]
	if marker.Content != "[LRU Pruned Summary] hot topics only" {
		t.Errorf("LRU 标记内容错误: %q", marker.Content)
	}
	if marker.Summary() != "hot topics only" {
		t.Errorf("LRU 标记摘要元数据错误: %q", marker.Summary())
	}

	// 压缩调用收到最近 5 个摘要文本
	if len(f.recentSummaries) != 1 {
		t.Fatalf("压缩应被调用一次")
	}
	recent := f.recentSummaries[0]
	if len(recent) != 5 {
		t.Fatalf("应提供 5 个最近摘要: got %d", len(recent))
	}
	for i, want := range []string{"summary 0", "summary 1", "summary 2", "summary 3", "summary 4"} {
		if recent[i] != want {
			t.Errorf("最近摘要 %d 错误: got %q, want %q", i, recent[i], want)
		}
	}
}

// TestLRUColdTopicExcludedTailVerbatim 冷话题从视图排除，保留轮次逐字保留
func TestLRUColdTopicExcludedTailVerbatim(t *testing.T) {
	f := &fakeSummarizer{compressed: "hot: topic 4 context"}
	s := newLRU(t, f)

	msgs := markedLog(5)
	resp, err := s.Process(context.Background(), Request{Messages: msgs})
	if err != nil {
		t.Fatalf("Process 失败: %v", err)
	}

	view := SendView(resp.Messages)
	// 视图 = LRU 标记 + 末尾轮次
	if len(view) != 3 {
		t.Fatalf("视图长度错误: got %d, want 3", len(view))
	}
	if view[0].MarkerKind() != message.MarkerLRU {
		t.Errorf("视图应以 LRU 标记开头")
	}
	// 冷话题内容（早期摘要文本）不出现在视图里
	for _, m := range view {
		if strings.Contains(m.Content, "summary 0") || strings.Contains(m.Content, "topic 0") {
			t.Errorf("冷话题内容泄漏进视图: %q", m.Content)
		}
	}
	// 末尾轮次逐字保留
	if view[1] != msgs[len(msgs)-2] || view[2] != msgs[len(msgs)-1] {
		t.Errorf("保留轮次应逐字保留")
	}
}

// TestLRUIdempotent 无新消息时重复调用不再压缩
func TestLRUIdempotent(t *testing.T) {
	f := &fakeSummarizer{compressed: "hot topics"}
	s := newLRU(t, f)

	msgs := markedLog(5)
	first, err := s.Process(context.Background(), Request{Messages: msgs})
	if err != nil {
		t.Fatalf("第一次 Process 失败: %v", err)
	}

	second, err := s.Process(context.Background(), Request{Messages: first.Messages})
	if err != nil {
		t.Fatalf("第二次 Process 失败: %v", err)
	}
	if len(second.Messages) != len(first.Messages) {
		t.Errorf("第二次不应再插入标记")
	}
	if len(f.recentSummaries) != 1 {
		t.Errorf("压缩只应被调用一次: got %d", len(f.recentSummaries))
	}
}

// TestLRUCompressionFailureFallback 压缩失败时沿用摘要级视图
func TestLRUCompressionFailureFallback(t *testing.T) {
	wantErr := errors.New("compression unavailable")
	f := &fakeSummarizer{err: wantErr}
	s := newLRU(t, f)

	msgs := markedLog(5)
	resp, err := s.Process(context.Background(), Request{Messages: msgs})
	if !errors.Is(err, wantErr) {
		t.Fatalf("应向上传递压缩错误: got %v", err)
	}
	if len(resp.Messages) != len(msgs) {
		t.Errorf("失败时不应插入 LRU 标记")
	}

	// 视图仍然可用：从最后一个摘要标记开始
	view := SendView(resp.Messages)
	if len(view) == 0 || !view[0].IsMarker() {
		t.Errorf("回退视图应从摘要标记开始")
	}
}
