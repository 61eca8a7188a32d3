package provider

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrURI 模型 URI 解析或校验失败
var ErrURI = errors.New("invalid model URI")

// ParsedURI 模型 URI 的各组成部分
type ParsedURI struct {
	Provider string
	// BaseURL 为空表示使用提供方默认地址
	BaseURL string
	Model   string
	Params  map[string]string
}

// ParseURI 解析模型 URI。
//
// 支持两种格式：
//  1. 简单格式 provider/model，使用提供方默认 base_url
//     例："deepseek/deepseek-chat"
//  2. 完整格式 provider@base_url:model?params，"~" 表示默认 base_url
//     例："openai@https://api.openai.com/v1:gpt-4?temperature=0.7"
//
// 难点在于 base_url 可能带端口（localhost:8080），model 也可能带冒号
// （ollama 的 qwen3:8b），分隔冒号需要按上下文判断。
func ParseURI(uri string) (*ParsedURI, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrURI)
	}
	if strings.Contains(uri, "@") {
		return parseFullURI(uri)
	}
	if strings.Contains(uri, "/") {
		return parseSimpleURI(uri)
	}
	return nil, fmt.Errorf("%w: %q (expected provider/model or provider@base_url:model)", ErrURI, uri)
}

// BuildURI 从组成部分构造完整格式 URI，base_url 为空时使用 "~"
func BuildURI(provider, model, baseURL string) (string, error) {
	if provider == "" || model == "" {
		return "", fmt.Errorf("%w: provider and model are required", ErrURI)
	}
	if strings.ContainsAny(provider, "@:~?#") {
		return "", fmt.Errorf("%w: provider contains special characters: %q", ErrURI, provider)
	}
	if strings.ContainsAny(model, "@~?#") {
		return "", fmt.Errorf("%w: model contains special characters: %q", ErrURI, model)
	}
	authority := "~"
	if baseURL != "" {
		authority = strings.TrimRight(baseURL, "/")
	}
	return fmt.Sprintf("%s@%s:%s", provider, authority, model), nil
}

func parseSimpleURI(uri string) (*ParsedURI, error) {
	if strings.Contains(uri, "?") {
		return nil, fmt.Errorf("%w: simple format cannot carry query parameters: %q", ErrURI, uri)
	}
	parts := strings.SplitN(uri, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("%w: %q (expected provider/model)", ErrURI, uri)
	}
	if strings.ContainsAny(parts[0], "@:~?#/") {
		return nil, fmt.Errorf("%w: invalid provider name %q", ErrURI, parts[0])
	}
	return &ParsedURI{
		Provider: parts[0],
		Model:    parts[1],
		Params:   map[string]string{},
	}, nil
}

func parseFullURI(uri string) (*ParsedURI, error) {
	uriPart := uri
	query := ""
	if i := strings.Index(uri, "?"); i >= 0 {
		uriPart, query = uri[:i], uri[i+1:]
	}

	providerName, rest, ok := strings.Cut(uriPart, "@")
	if !ok || providerName == "" {
		return nil, fmt.Errorf("%w: missing '@' separator in %q", ErrURI, uri)
	}
	if !strings.Contains(rest, ":") {
		return nil, fmt.Errorf("%w: missing ':' separator in %q", ErrURI, uri)
	}

	baseURL, model := splitBaseURLModel(rest)
	if model == "" {
		return nil, fmt.Errorf("%w: missing model in %q", ErrURI, uri)
	}
	if baseURL == "~" {
		baseURL = ""
	}

	params := map[string]string{}
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return nil, fmt.Errorf("%w: bad query string in %q: %v", ErrURI, uri, err)
		}
		for k, vs := range values {
			if len(vs) > 0 {
				params[k] = vs[0]
			}
		}
	}

	return &ParsedURI{
		Provider: providerName,
		BaseURL:  baseURL,
		Model:    model,
		Params:   params,
	}, nil
}

// splitBaseURLModel 在 rest（base_url:model）中定位分隔冒号。
// 规则：完整 URL 里冒号后只会跟端口数字或路径 '/'，
// 其他冒号即是模型名分隔符。
func splitBaseURLModel(rest string) (string, string) {
	// 情况 1：~ 占位
	if after, ok := strings.CutPrefix(rest, "~:"); ok {
		return "~", after
	}

	// 情况 2：完整 HTTP(S) URL
	if strings.HasPrefix(rest, "http://") || strings.HasPrefix(rest, "https://") {
		protoEnd := strings.Index(rest, "//") + 2
		for i := protoEnd; i < len(rest); i++ {
			if rest[i] != ':' {
				continue
			}
			if i+1 >= len(rest) {
				break
			}
			next := rest[i+1]
			if next >= '0' && next <= '9' || next == '/' {
				continue
			}
			return rest[:i], rest[i+1:]
		}
		// 未找到，回退到最后一个冒号
		last := strings.LastIndex(rest, ":")
		return rest[:last], rest[last+1:]
	}

	// 情况 3：host:port 或裸主机名
	first := strings.Index(rest, ":")
	after := rest[first+1:]
	if after != "" && after[0] >= '0' && after[0] <= '9' {
		// 第一个冒号后是端口号，找端口结束后的冒号
		portEnd := first + 1
		for portEnd < len(rest) && rest[portEnd] >= '0' && rest[portEnd] <= '9' {
			portEnd++
		}
		if portEnd < len(rest) && rest[portEnd] == ':' {
			return rest[:portEnd], rest[portEnd+1:]
		}
		last := strings.LastIndex(rest, ":")
		return rest[:last], rest[last+1:]
	}
	return rest[:first], rest[first+1:]
}
