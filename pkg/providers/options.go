package providers

import (
	"encoding/json"
	"strings"
)

// callSettings are the per-call knobs the agent passes in Chat options.
type callSettings struct {
	MaxTokens   int
	Temperature *float64
}

func readCallSettings(options map[string]interface{}) callSettings {
	var s callSettings
	if v, ok := optionAsFloat(options, "max_tokens"); ok && v > 0 {
		s.MaxTokens = int(v)
	}
	if v, ok := optionAsFloat(options, "temperature"); ok {
		s.Temperature = &v
	}
	return s
}

func optionAsInt(options map[string]interface{}, key string) (int, bool) {
	v, ok := optionAsFloat(options, key)
	return int(v), ok
}

func optionAsFloat(options map[string]interface{}, key string) (float64, bool) {
	switch v := options[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// decodeArguments parses a tool call's JSON argument payload. Anything that
// is not a JSON object is kept under "raw".
func decodeArguments(raw string) map[string]interface{} {
	args := map[string]interface{}{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]interface{}{"raw": raw}
	}
	return args
}
