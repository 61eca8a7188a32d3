package token

import (
	"strings"
	"testing"

	"github.com/zhixiangxue/chak-ai/internal/message"
)

// TestCharEstimator 字符估算：约 4 字符 = 1 token，向上取整
func TestCharEstimator(t *testing.T) {
	e := CharEstimator{}

	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, c := range cases {
		if got := e.Estimate(c.text); got != c.want {
			t.Errorf("Estimate(%d 字符) = %d, want %d", len(c.text), got, c.want)
		}
	}

	// 自定义比例
	e = CharEstimator{CharsPerToken: 1}
	if got := e.Estimate("hello"); got != 5 {
		t.Errorf("1 字符比例: got %d, want 5", got)
	}
}

// TestEstimatorMonotonic 更长的文本不会得到更少的 token
func TestEstimatorMonotonic(t *testing.T) {
	estimators := []Estimator{
		CharEstimator{},
		ForModel("gpt-4"),
	}

	for _, e := range estimators {
		prev := 0
		text := ""
		for i := 0; i < 50; i++ {
			text += "hello world "
			n := e.Estimate(text)
			if n < prev {
				t.Errorf("单调性破坏: %d 字符 %d token，此前 %d", len(text), n, prev)
			}
			prev = n
		}
	}
}

// TestEstimatorDeterministic 相同输入相同结果
func TestEstimatorDeterministic(t *testing.T) {
	e := ForModel("gpt-4")
	text := "The quick brown fox jumps over the lazy dog."
	first := e.Estimate(text)
	for i := 0; i < 5; i++ {
		if got := e.Estimate(text); got != first {
			t.Errorf("结果不稳定: got %d, want %d", got, first)
		}
	}
}

// TestForModelFallback 未识别的模型也能拿到估算器
func TestForModelFallback(t *testing.T) {
	e := ForModel("definitely-not-a-real-model")
	if e == nil {
		t.Fatalf("ForModel 不应返回 nil")
	}
	if got := e.Estimate("hello world"); got <= 0 {
		t.Errorf("估算结果应为正: %d", got)
	}
}

// TestMessageTokensOverhead 每条消息计入结构开销，列表计入结束开销
func TestMessageTokensOverhead(t *testing.T) {
	e := CharEstimator{CharsPerToken: 1}

	m := message.NewUser("hello")
	if got := MessageTokens(e, m); got != 5+4 {
		t.Errorf("单条消息: got %d, want 9", got)
	}

	msgs := []*message.Message{
		message.NewUser("hello"),
		message.NewAssistant("world!!"),
	}
	want := (5 + 4) + (7 + 4) + 2
	if got := MessagesTokens(e, msgs); got != want {
		t.Errorf("消息列表: got %d, want %d", got, want)
	}
}

// TestMessageTokensCached 首次估算后缓存，后续读取不再编码
func TestMessageTokensCached(t *testing.T) {
	e := CharEstimator{CharsPerToken: 1}

	m := message.NewUser("hello")
	MessageTokens(e, m)

	if n, ok := m.CachedTokens(); !ok || n != 5 {
		t.Fatalf("缓存未写入: got %d, %v", n, ok)
	}

	// 换一个估算器也应命中缓存（消息不可变，估算值只算一次）
	other := CharEstimator{CharsPerToken: 100}
	if got := MessageTokens(other, m); got != 5+4 {
		t.Errorf("缓存未命中: got %d, want 9", got)
	}
}
