package provider

import (
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

// TestWrapAPIError HTTP 状态码归类
func TestWrapAPIError(t *testing.T) {
	cases := []struct {
		status    int
		wantType  ErrorType
		retryable bool
	}{
		{401, ErrorTypeAuth, false},
		{403, ErrorTypeAuth, false},
		{429, ErrorTypeRateLimit, true},
		{500, ErrorTypeServerError, true},
		{503, ErrorTypeServerError, true},
		{400, ErrorTypeInvalidParams, false},
		{422, ErrorTypeInvalidParams, false},
	}

	for _, c := range cases {
		err := &openai.APIError{HTTPStatusCode: c.status}
		ce := wrapError(err)
		if ce.Type != c.wantType {
			t.Errorf("状态码 %d: got %s, want %s", c.status, ce.Type, c.wantType)
		}
		if ce.Retryable() != c.retryable {
			t.Errorf("状态码 %d 可重试性错误: got %v", c.status, ce.Retryable())
		}
		if !errors.Is(ce, err) {
			t.Errorf("状态码 %d: 底层错误应可通过 Unwrap 取出", c.status)
		}
	}
}

// TestWrapUnknownError 无法识别的错误归为 unknown，不重试
func TestWrapUnknownError(t *testing.T) {
	ce := wrapError(errors.New("something odd"))
	if ce.Type != ErrorTypeUnknown {
		t.Errorf("归类错误: %s", ce.Type)
	}
	if ce.Retryable() {
		t.Errorf("未知错误不应重试")
	}
}

// TestWrapConnectionRefused 连接拒绝归为网络错误
func TestWrapConnectionRefused(t *testing.T) {
	ce := wrapError(errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"))
	if ce.Type != ErrorTypeNetwork {
		t.Errorf("归类错误: %s", ce.Type)
	}
	if !ce.Retryable() {
		t.Errorf("网络错误应可重试")
	}
}

// TestWrapAlreadyWrapped 已包装的错误不再二次包装
func TestWrapAlreadyWrapped(t *testing.T) {
	orig := &ClientError{Type: ErrorTypeAuth, Message: "认证失败"}
	if got := wrapError(orig); got != orig {
		t.Errorf("不应二次包装")
	}
}
