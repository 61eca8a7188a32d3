package provider

import "fmt"

// defaultBaseURLs 已知提供方的默认 OpenAI 兼容接口地址。
// 所有提供方都通过 OpenAI 兼容协议接入，差异只在 base_url。
var defaultBaseURLs = map[string]string{
	"openai":      "https://api.openai.com/v1",
	"deepseek":    "https://api.deepseek.com",
	"moonshot":    "https://api.moonshot.cn/v1",
	"zhipu":       "https://open.bigmodel.cn/api/paas/v4",
	"bailian":     "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"dashscope":   "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"siliconflow": "https://api.siliconflow.cn/v1",
	"volcengine":  "https://ark.cn-beijing.volces.com/api/v3",
	"minimax":     "https://api.minimaxi.com/v1",
	"mistral":     "https://api.mistral.ai/v1",
	"xai":         "https://api.x.ai/v1",
	"tencent":     "https://api.hunyuan.cloud.tencent.com/v1",
	"baidu":       "https://qianfan.baidubce.com/v2",
	"google":      "https://generativelanguage.googleapis.com/v1beta/openai",
	"ollama":      "http://localhost:11434/v1",
}

// ResolveBaseURL 返回应使用的 base_url。
// URI 指定了 base_url 时直接使用；否则查提供方默认地址。
func ResolveBaseURL(parsed *ParsedURI) (string, error) {
	if parsed.BaseURL != "" {
		return parsed.BaseURL, nil
	}
	if base, ok := defaultBaseURLs[parsed.Provider]; ok {
		return base, nil
	}
	return "", fmt.Errorf("%w: unknown provider %q and no base_url given", ErrURI, parsed.Provider)
}

// KnownProviders 返回所有内置提供方名称
func KnownProviders() []string {
	names := make([]string, 0, len(defaultBaseURLs))
	for name := range defaultBaseURLs {
		names = append(names, name)
	}
	return names
}
