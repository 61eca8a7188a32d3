package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// ProvidersConfig 模型提供方配置。
// APIKeys 的键支持两种格式：
//   - "provider"           使用默认 base_url
//   - "provider@base_url"  使用自定义 base_url
//
// 值支持 ${ENV_VAR} 语法，从环境变量读取真实 Key。
type ProvidersConfig struct {
	APIKeys map[string]string `mapstructure:"api_keys"`
}

// StrategyConfig 默认上下文策略配置，连接初始化时可覆盖
type StrategyConfig struct {
	// Name 默认策略：noop, fifo, summarize, lru
	Name string `mapstructure:"name"`
	// KeepRecentTurns FIFO 保留的最近轮次数
	KeepRecentTurns int `mapstructure:"keep_recent_turns"`
	// MaxInputTokens 模型输入 token 上限
	MaxInputTokens int `mapstructure:"max_input_tokens"`
	// Threshold 摘要触发阈值（0-1）
	Threshold float64 `mapstructure:"threshold"`
	// PreferRecentTurns 摘要策略逐字保留的最近轮次数
	PreferRecentTurns int `mapstructure:"prefer_recent_turns"`
	// SummarizerModelURI 摘要模型 URI（可用更便宜的模型）
	SummarizerModelURI string `mapstructure:"summarizer_model_uri"`
	// SummarizerAPIKey 摘要模型 API Key，支持 ${ENV_VAR}
	SummarizerAPIKey string `mapstructure:"summarizer_api_key"`
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 环境变量优先级高于配置文件
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_SERVER_PORT

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// ProviderEntry 单个提供方的解析结果
type ProviderEntry struct {
	APIKey  string
	BaseURL string
}

// ProviderEntry 按提供方名查找 API Key 和可选的自定义 base_url。
// 先精确匹配简单格式，再匹配 "provider@base_url" 格式。
func (p *ProvidersConfig) ProviderEntry(provider string) (ProviderEntry, bool) {
	if raw, ok := p.APIKeys[provider]; ok {
		if key := ResolveEnvValue(raw); key != "" {
			return ProviderEntry{APIKey: key}, true
		}
	}
	for configKey, raw := range p.APIKeys {
		name, baseURL, found := strings.Cut(configKey, "@")
		if !found || name != provider {
			continue
		}
		if key := ResolveEnvValue(raw); key != "" {
			return ProviderEntry{APIKey: key, BaseURL: baseURL}, true
		}
	}
	return ProviderEntry{}, false
}

// APIKey 按提供方名查找 API Key
func (p *ProvidersConfig) APIKey(provider string) (string, bool) {
	entry, ok := p.ProviderEntry(provider)
	return entry.APIKey, ok
}

// ResolveEnvValue 解析 ${ENV_VAR} 语法的配置值。
// 非该语法的值原样返回（生产环境不推荐明文 Key）。
func ResolveEnvValue(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		name := strings.TrimSpace(value[2 : len(value)-1])
		return os.Getenv(name)
	}
	return value
}
