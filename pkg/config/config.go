package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Providers ProvidersConfig `json:"providers"`
	Channels  ChannelsConfig  `json:"channels"`
	Storage   StorageConfig   `json:"storage"`
	Briefing  BriefingConfig  `json:"briefing"`
	Gateway   GatewayConfig   `json:"gateway"`
	Logging   LoggingConfig   `json:"logging"`
	mu        sync.RWMutex
}

type AgentConfig struct {
	Provider     string  `json:"provider" env:"SECRETARY_AGENT_PROVIDER"`
	Model        string  `json:"model" env:"SECRETARY_AGENT_MODEL"`
	MaxTokens    int     `json:"max_tokens" env:"SECRETARY_AGENT_MAX_TOKENS"`
	Temperature  float64 `json:"temperature" env:"SECRETARY_AGENT_TEMPERATURE"`
	HistoryLimit int     `json:"history_limit" env:"SECRETARY_AGENT_HISTORY_LIMIT"`
	SystemPrompt string  `json:"system_prompt,omitempty" env:"SECRETARY_AGENT_SYSTEM_PROMPT"`
}

type ProvidersConfig struct {
	OpenRouter OpenRouterConfig `json:"openrouter"`
	OpenAI     OpenAIConfig     `json:"openai"`
	Anthropic  AnthropicConfig  `json:"anthropic"`
	Ollama     OllamaConfig     `json:"ollama"`
}

type OpenRouterConfig struct {
	APIKey  string `json:"api_key" env:"SECRETARY_PROVIDERS_OPENROUTER_API_KEY"`
	APIBase string `json:"api_base" env:"SECRETARY_PROVIDERS_OPENROUTER_API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"SECRETARY_PROVIDERS_OPENROUTER_PROXY"`
}

type OpenAIConfig struct {
	APIKey       string `json:"api_key" env:"SECRETARY_PROVIDERS_OPENAI_API_KEY"`
	APIBase      string `json:"api_base" env:"SECRETARY_PROVIDERS_OPENAI_API_BASE"`
	Organization string `json:"organization,omitempty" env:"SECRETARY_PROVIDERS_OPENAI_ORGANIZATION"`
	Project      string `json:"project,omitempty" env:"SECRETARY_PROVIDERS_OPENAI_PROJECT"`
}

type AnthropicConfig struct {
	APIKey  string `json:"api_key" env:"SECRETARY_PROVIDERS_ANTHROPIC_API_KEY"`
	APIBase string `json:"api_base" env:"SECRETARY_PROVIDERS_ANTHROPIC_API_BASE"`
}

type OllamaConfig struct {
	APIBase string `json:"api_base" env:"SECRETARY_PROVIDERS_OLLAMA_API_BASE"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WeCom    WeComConfig    `json:"wecom"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Token       string              `json:"token" env:"SECRETARY_CHANNELS_TELEGRAM_TOKEN"`
	APIBase     string              `json:"api_base,omitempty" env:"SECRETARY_CHANNELS_TELEGRAM_API_BASE"`
	PollTimeout int                 `json:"poll_timeout" env:"SECRETARY_CHANNELS_TELEGRAM_POLL_TIMEOUT"` // seconds
	SendRate    float64             `json:"send_rate" env:"SECRETARY_CHANNELS_TELEGRAM_SEND_RATE"`       // messages per second
	ParseMode   string              `json:"parse_mode,omitempty" env:"SECRETARY_CHANNELS_TELEGRAM_PARSE_MODE"`
	AllowFrom   FlexibleStringSlice `json:"allow_from" env:"SECRETARY_CHANNELS_TELEGRAM_ALLOW_FROM"`
}

type WeComConfig struct {
	WebhookURL string `json:"webhook_url" env:"SECRETARY_CHANNELS_WECOM_WEBHOOK_URL"`
}

// DiscordConfig configures the Discord mirror. Messages sent to Telegram are
// copied to MirrorChannelID when both fields are set.
type DiscordConfig struct {
	Token           string `json:"token" env:"SECRETARY_CHANNELS_DISCORD_TOKEN"`
	MirrorChannelID string `json:"mirror_channel_id" env:"SECRETARY_CHANNELS_DISCORD_MIRROR_CHANNEL_ID"`
}

type StorageConfig struct {
	DataDir string `json:"data_dir" env:"SECRETARY_STORAGE_DATA_DIR"`
}

type BriefingConfig struct {
	Enabled bool   `json:"enabled" env:"SECRETARY_BRIEFING_ENABLED"`
	Cron    string `json:"cron" env:"SECRETARY_BRIEFING_CRON"`
	ChatID  int64  `json:"chat_id" env:"SECRETARY_BRIEFING_CHAT_ID"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"SECRETARY_GATEWAY_HOST"`
	Port int    `json:"port" env:"SECRETARY_GATEWAY_PORT"`
}

type LoggingConfig struct {
	Level string `json:"level" env:"SECRETARY_LOGGING_LEVEL"`
}

func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Provider:     "openrouter",
			Model:        "openai/gpt-4o-mini",
			MaxTokens:    2048,
			Temperature:  0.3,
			HistoryLimit: 20,
		},
		Providers: ProvidersConfig{
			Ollama: OllamaConfig{APIBase: "http://localhost:11434/v1"},
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				PollTimeout: 25,
				SendRate:    1,
				ParseMode:   "Markdown",
				AllowFrom:   FlexibleStringSlice{},
			},
		},
		Storage: StorageConfig{
			DataDir: "~/.secretary/data",
		},
		Briefing: BriefingConfig{
			Enabled: false,
			Cron:    "0 9 * * *",
		},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 18790,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) DataPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Storage.DataDir)
}

func (c *Config) HistoryDir() string {
	return filepath.Join(c.DataPath(), "history")
}

func (c *Config) RunLogDir() string {
	return filepath.Join(c.DataPath(), "agent_runs")
}

func (c *Config) ProcessedDir() string {
	return filepath.Join(c.DataPath(), "processed")
}

func (c *Config) ScheduleDBPath() string {
	return filepath.Join(c.DataPath(), "schedule.db")
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
