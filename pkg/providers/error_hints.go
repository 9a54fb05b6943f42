package providers

import "strings"

// errorHint appends Hint to a backend error whose lowercased text contains
// every entry of Match.
type errorHint struct {
	Match []string
	Hint  string
}

var providerErrorHints = map[string][]errorHint{
	ProviderOpenRouter: {
		{Match: []string{"no endpoints found that support tool use"}, Hint: "pick an OpenRouter model with tool calling support (agent.model)."},
		{Match: []string{"insufficient credits"}, Hint: "the OpenRouter account has no remaining credits."},
	},
	ProviderOpenAI: {
		{Match: []string{"incorrect api key provided"}, Hint: "provider openai expects a Platform API key in providers.openai.api_key."},
	},
	ProviderAnthropic: {
		{Match: []string{"invalid x-api-key"}, Hint: "check providers.anthropic.api_key."},
	},
	ProviderOllama: {
		{Match: []string{"model", "not found"}, Hint: "pull the model first with `ollama pull <model>`."},
	},
}

func augmentProviderError(providerName, message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return msg
	}
	lower := strings.ToLower(msg)
	for _, h := range providerErrorHints[NormalizeProviderName(providerName)] {
		if containsAll(lower, h.Match) {
			return msg + " Hint: " + h.Hint
		}
	}
	return msg
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
