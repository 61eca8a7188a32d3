package provider

import (
	"errors"
	"fmt"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorType 客户端错误分类
type ErrorType string

const (
	ErrorTypeAuth          ErrorType = "auth"
	ErrorTypeRateLimit     ErrorType = "rate_limit"
	ErrorTypeInvalidParams ErrorType = "invalid_params"
	ErrorTypeServerError   ErrorType = "server_error"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// ClientError 模型客户端错误
type ClientError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ClientError) Unwrap() error { return e.Err }

// Retryable 该错误是否值得重试
func (e *ClientError) Retryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	}
	return false
}

// wrapError 把底层错误归类为 ClientError
func wrapError(err error) *ClientError {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return &ClientError{Type: ErrorTypeAuth, Message: "认证失败", Err: err}
		case apiErr.HTTPStatusCode == 429:
			return &ClientError{Type: ErrorTypeRateLimit, Message: "请求频率超限", Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &ClientError{Type: ErrorTypeServerError, Message: "服务端错误", Err: err}
		case apiErr.HTTPStatusCode >= 400:
			return &ClientError{Type: ErrorTypeInvalidParams, Message: "请求参数非法", Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &ClientError{Type: ErrorTypeTimeout, Message: "请求超时", Err: err}
		}
		return &ClientError{Type: ErrorTypeNetwork, Message: "网络错误", Err: err}
	}
	if strings.Contains(err.Error(), "connection refused") {
		return &ClientError{Type: ErrorTypeNetwork, Message: "网络错误", Err: err}
	}

	return &ClientError{Type: ErrorTypeUnknown, Message: "未知错误", Err: err}
}
