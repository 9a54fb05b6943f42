package tools

import "strings"

const (
	maxLoggedString = 256
	maxLoggedDepth  = 6
)

// Argument keys containing any of these are logged as <redacted>.
var secretKeyFragments = []string{
	"api_key", "apikey", "auth", "bearer", "cookie",
	"password", "secret", "session", "token", "webhook",
}

// redactArgs copies tool arguments for logging with secrets masked and
// long strings cut.
func redactArgs(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return nil
	}
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = redactValue(k, v, 0)
	}
	return out
}

func redactValue(key string, value interface{}, depth int) interface{} {
	if depth > maxLoggedDepth {
		return "<omitted>"
	}
	if isSecretKey(key) {
		return "<redacted>"
	}
	switch v := value.(type) {
	case string:
		return clipForLog(v)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, item := range v {
			out[k] = redactValue(k, item, depth+1)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = redactValue(key, item, depth+1)
		}
		return out
	default:
		return value
	}
}

func isSecretKey(key string) bool {
	k := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "-", "_"))
	for _, fragment := range secretKeyFragments {
		if strings.Contains(k, fragment) {
			return true
		}
	}
	return false
}

func clipForLog(s string) string {
	if len(s) <= maxLoggedString {
		return s
	}
	return s[:maxLoggedString] + "...(truncated)"
}
