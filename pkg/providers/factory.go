package providers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/config"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
)

// Backend describes one selectable model backend. Validate and Credentials
// are optional.
type Backend struct {
	Build       func(cfg *config.Config) (LLMProvider, error)
	Validate    func(cfg *config.Config) error
	Credentials func(cfg *config.Config) (configured bool, mode string)
}

// CredentialStatus is what `secretary status` prints for the active backend.
type CredentialStatus struct {
	Provider   string
	Configured bool
	Mode       string
}

var (
	registryMu sync.RWMutex
	backends   = map[string]Backend{}
	// Registration happens from init functions, so bad entries are kept
	// here and reported by the first lookup instead of panicking.
	registerErr error
)

func RegisterBackend(name string, b Backend) {
	name = NormalizeProviderName(name)
	registryMu.Lock()
	defer registryMu.Unlock()
	switch {
	case strings.TrimSpace(name) == "":
		registerErr = errors.Join(registerErr, fmt.Errorf("providers: backend name is required"))
	case b.Build == nil:
		registerErr = errors.Join(registerErr, fmt.Errorf("providers: backend %q has no build func", name))
	default:
		backends[name] = b
	}
}

func SupportedProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeProviderName lowercases name; empty selects OpenRouter.
func NormalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderOpenRouter
	}
	return name
}

func ActiveProviderName(cfg *config.Config) string {
	if cfg == nil {
		return ProviderOpenRouter
	}
	return NormalizeProviderName(cfg.Agent.Provider)
}

func ValidateProviderConfig(cfg *config.Config) error {
	b, _, err := lookupBackend(cfg)
	if err != nil {
		return err
	}
	if b.Validate == nil {
		return nil
	}
	return b.Validate(cfg)
}

func ProviderCredentialStatus(cfg *config.Config) (CredentialStatus, error) {
	b, name, err := lookupBackend(cfg)
	status := CredentialStatus{Provider: name}
	if err != nil {
		return status, err
	}
	if b.Credentials != nil {
		status.Configured, status.Mode = b.Credentials(cfg)
		return status, nil
	}
	status.Configured = b.Validate == nil || b.Validate(cfg) == nil
	return status, nil
}

// CreateProvider builds the configured backend. Missing credentials surface
// as an error wrapping ErrNoProvider so callers can start without a model.
func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	b, _, err := lookupBackend(cfg)
	if err != nil {
		return nil, err
	}
	if b.Validate != nil {
		if err := b.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return b.Build(cfg)
}

func lookupBackend(cfg *config.Config) (Backend, string, error) {
	name := ActiveProviderName(cfg)

	registryMu.RLock()
	b, ok := backends[name]
	err := registerErr
	registryMu.RUnlock()

	if err != nil {
		return Backend{}, name, fmt.Errorf("provider registration failed: %w", err)
	}
	if !ok {
		return Backend{}, name, fmt.Errorf("unsupported provider %q: supported providers are %s", name, strings.Join(SupportedProviders(), ", "))
	}
	return b, name, nil
}
