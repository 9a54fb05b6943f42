package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	authModeAPIKey = "api_key"
	authModeNone   = "none"
)

// apiKey is a configured secret together with the config field it was read
// from, so errors point the user at the right setting.
type apiKey struct {
	value string
	field string
}

func newAPIKey(value, field string) apiKey {
	return apiKey{value: strings.TrimSpace(value), field: strings.TrimSpace(field)}
}

func (k apiKey) fieldName() string {
	if k.field == "" {
		return "api_key"
	}
	return k.field
}

// resolve rejects empty keys and template values such as <API_KEY> or
// ${API_KEY} left in a config file.
func (k apiKey) resolve() (string, error) {
	switch v := k.value; {
	case v == "":
		return "", fmt.Errorf("%s is empty", k.fieldName())
	case strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">"),
		strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}"):
		return "", fmt.Errorf("%s looks like an unfilled placeholder (%s)", k.fieldName(), v)
	default:
		return v, nil
	}
}

// AuthStrategy decorates provider HTTP requests.
type AuthStrategy interface {
	Mode() string
	Apply(ctx context.Context, req *http.Request) error
}

type bearerAuth struct {
	key apiKey
}

func NewBearerAuth(value, field string) AuthStrategy {
	return bearerAuth{key: newAPIKey(value, field)}
}

func (bearerAuth) Mode() string { return authModeAPIKey }

func (a bearerAuth) Apply(_ context.Context, req *http.Request) error {
	tok, err := a.key.resolve()
	if err != nil {
		return fmt.Errorf("resolve auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

type noAuth struct{}

func NewNoAuth() AuthStrategy { return noAuth{} }

func (noAuth) Mode() string { return authModeNone }

func (noAuth) Apply(context.Context, *http.Request) error { return nil }
