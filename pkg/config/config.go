package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Auth      AuthConfig      `json:"auth" yaml:"auth" toml:"auth"`
	Session   SessionConfig   `json:"session" yaml:"session" toml:"session"`
	Chat      ChatConfig      `json:"chat" yaml:"chat" toml:"chat"`
	Providers ProvidersConfig `json:"providers" yaml:"providers" toml:"providers" envPrefix:"LOGINCHAT_PROVIDERS_"`
	WebChat   WebChatConfig   `json:"webchat" yaml:"webchat" toml:"webchat"`
	Log       LogConfig       `json:"log" yaml:"log" toml:"log"`
	mu        sync.RWMutex
}

type AuthConfig struct {
	APIBase                 string `json:"api_base" yaml:"api_base" toml:"api_base" env:"LOGINCHAT_AUTH_API_BASE"`
	TimeoutSeconds          int    `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds" env:"LOGINCHAT_AUTH_TIMEOUT_SECONDS"`
	LoginPath               string `json:"login_path" yaml:"login_path" toml:"login_path" env:"LOGINCHAT_AUTH_LOGIN_PATH"`
	SendCodeCooldownSeconds int    `json:"send_code_cooldown_seconds" yaml:"send_code_cooldown_seconds" toml:"send_code_cooldown_seconds" env:"LOGINCHAT_AUTH_SEND_CODE_COOLDOWN_SECONDS"`
}

type SessionConfig struct {
	StorePath string `json:"store_path" yaml:"store_path" toml:"store_path" env:"LOGINCHAT_SESSION_STORE_PATH"`
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty" toml:"session_id,omitempty" env:"LOGINCHAT_SESSION_ID"`
}

type ChatConfig struct {
	Provider          string           `json:"provider" yaml:"provider" toml:"provider" env:"LOGINCHAT_CHAT_PROVIDER"`
	Model             string           `json:"model" yaml:"model" toml:"model" env:"LOGINCHAT_CHAT_MODEL"`
	Temperature       float64          `json:"temperature" yaml:"temperature" toml:"temperature" env:"LOGINCHAT_CHAT_TEMPERATURE"`
	MaxTokens         int              `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens" env:"LOGINCHAT_CHAT_MAX_TOKENS"`
	RevealDelayMS     int              `json:"reveal_delay_ms" yaml:"reveal_delay_ms" toml:"reveal_delay_ms" env:"LOGINCHAT_CHAT_REVEAL_DELAY_MS"`
	FallbackProviders []FallbackConfig `json:"fallback_providers,omitempty" yaml:"fallback_providers,omitempty" toml:"fallback_providers,omitempty"`
}

// FallbackConfig defines an alternative provider+model to try when the primary fails.
type FallbackConfig struct {
	Provider string `json:"provider" yaml:"provider" toml:"provider"`
	Model    string `json:"model" yaml:"model" toml:"model"`
}

type ProvidersConfig struct {
	DeepSeek   ProviderConfig `json:"deepseek" yaml:"deepseek" toml:"deepseek" envPrefix:"DEEPSEEK_"`
	OpenAI     ProviderConfig `json:"openai" yaml:"openai" toml:"openai" envPrefix:"OPENAI_"`
	OpenRouter ProviderConfig `json:"openrouter" yaml:"openrouter" toml:"openrouter" envPrefix:"OPENROUTER_"`
	Groq       ProviderConfig `json:"groq" yaml:"groq" toml:"groq" envPrefix:"GROQ_"`
	Anthropic  ProviderConfig `json:"anthropic" yaml:"anthropic" toml:"anthropic" envPrefix:"ANTHROPIC_"`
}

// GetByName returns the provider config and default API base for a given provider name.
// Returns zero ProviderConfig and empty string if the name is not recognized.
func (p *ProvidersConfig) GetByName(name string) (ProviderConfig, string) {
	switch strings.ToLower(name) {
	case "deepseek":
		return p.DeepSeek, "https://api.deepseek.com/v1"
	case "openai":
		return p.OpenAI, "https://api.openai.com/v1"
	case "openrouter":
		return p.OpenRouter, "https://openrouter.ai/api/v1"
	case "groq":
		return p.Groq, "https://api.groq.com/openai/v1"
	case "anthropic":
		return p.Anthropic, "https://api.anthropic.com"
	default:
		return ProviderConfig{}, ""
	}
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key" toml:"api_key" env:"API_KEY"`
	APIBase string `json:"api_base" yaml:"api_base" toml:"api_base" env:"API_BASE"`
}

type WebChatConfig struct {
	Host     string `json:"host" yaml:"host" toml:"host" env:"LOGINCHAT_WEBCHAT_HOST"`
	Port     int    `json:"port" yaml:"port" toml:"port" env:"LOGINCHAT_WEBCHAT_PORT"`
	Username string `json:"username" yaml:"username" toml:"username" env:"LOGINCHAT_WEBCHAT_USERNAME"`
	Password string `json:"password" yaml:"password" toml:"password" env:"LOGINCHAT_WEBCHAT_PASSWORD"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level" toml:"level" env:"LOGINCHAT_LOG_LEVEL"`
	JSON  bool   `json:"json" yaml:"json" toml:"json" env:"LOGINCHAT_LOG_JSON"`
}

func DefaultConfig() *Config {
	return &Config{
		Auth: AuthConfig{
			APIBase:                 "http://localhost:8080/api",
			TimeoutSeconds:          15,
			LoginPath:               "/login",
			SendCodeCooldownSeconds: 60,
		},
		Session: SessionConfig{
			StorePath: "~/.loginchat/session.db",
		},
		Chat: ChatConfig{
			Provider:      "deepseek",
			Model:         "deepseek-chat",
			Temperature:   0.5,
			MaxTokens:     2048,
			RevealDelayMS: 50,
		},
		WebChat: WebChatConfig{
			Host: "127.0.0.1",
			Port: 18800,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath is the config location used when none is given on the command line.
func DefaultPath() string {
	return expandHome("~/.loginchat/config.json")
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Support full config from env var (for containers / serverless)
	if cfgJSON := os.Getenv("LOGINCHAT_CONFIG_JSON"); cfgJSON != "" {
		if err := json.Unmarshal([]byte(cfgJSON), cfg); err != nil {
			return nil, fmt.Errorf("parsing LOGINCHAT_CONFIG_JSON: %w", err)
		}
		if err := env.Parse(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	switch format(path) {
	case "yaml":
		err = yaml.Unmarshal(data, cfg)
	case "toml":
		err = toml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	var (
		data []byte
		err  error
	)
	switch format(path) {
	case "yaml":
		data, err = yaml.Marshal(cfg)
	case "toml":
		data, err = toml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) StorePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Session.StorePath)
}

func (c *Config) AuthTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Auth.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Auth.TimeoutSeconds) * time.Second
}

func (c *Config) SendCodeCooldown() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Auth.SendCodeCooldownSeconds) * time.Second
}

func (c *Config) RevealDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Chat.RevealDelayMS <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.Chat.RevealDelayMS) * time.Millisecond
}

// ProviderEndpoint resolves the API key and base URL for a provider name,
// falling back to the provider's public default base.
func (c *Config) ProviderEndpoint(name string) (apiKey, apiBase string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pc, def := c.Providers.GetByName(name)
	apiBase = pc.APIBase
	if apiBase == "" {
		apiBase = def
	}
	return pc.APIKey, apiBase
}

// format picks the file syntax from the extension; anything else is JSON.
func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	}
	return "json"
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
