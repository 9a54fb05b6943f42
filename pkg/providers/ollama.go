package providers

import (
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/config"
)

const (
	defaultOllamaAPIBase = "http://localhost:11434/v1"
	defaultOllamaModel   = "qwen2.5:7b"
)

// A local Ollama needs no key; it serves chat completions under /v1.
func init() {
	RegisterBackend(ProviderOllama, Backend{
		Build: func(cfg *config.Config) (LLMProvider, error) {
			return newCompatProvider(compatEndpoint{
				Name:    ProviderOllama,
				BaseURL: valueOr(cfg.Providers.Ollama.APIBase, defaultOllamaAPIBase),
				Model:   valueOr(cfg.Agent.Model, defaultOllamaModel),
				Auth:    NewNoAuth(),
			})
		},
		Credentials: func(*config.Config) (bool, string) { return true, authModeNone },
	})
}
