package providers

import (
	"fmt"
	"strings"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/config"
)

const (
	defaultOpenRouterAPIBase = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openai/gpt-4o-mini"
)

func init() {
	RegisterBackend(ProviderOpenRouter, Backend{
		Build:    buildOpenRouter,
		Validate: validateOpenRouterConfig,
		Credentials: func(cfg *config.Config) (bool, string) {
			if validateOpenRouterConfig(cfg) != nil {
				return false, ""
			}
			return true, authModeAPIKey
		},
	})
}

func validateOpenRouterConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.OpenRouter.APIKey) == "" {
		return fmt.Errorf("%w: OpenRouter API key is required (set providers.openrouter.api_key or SECRETARY_PROVIDERS_OPENROUTER_API_KEY)", ErrNoProvider)
	}
	return nil
}

func buildOpenRouter(cfg *config.Config) (LLMProvider, error) {
	or := cfg.Providers.OpenRouter
	return newCompatProvider(compatEndpoint{
		Name:    ProviderOpenRouter,
		BaseURL: valueOr(or.APIBase, defaultOpenRouterAPIBase),
		Model:   valueOr(cfg.Agent.Model, defaultOpenRouterModel),
		Proxy:   or.Proxy,
		Auth:    NewBearerAuth(or.APIKey, "providers.openrouter.api_key"),
		// OpenRouter attributes traffic by X-Title.
		Headers: map[string]string{"X-Title": "secretary"},
	})
}

func valueOr(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
