package providers

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func TestAPIKey_Resolve(t *testing.T) {
	cases := []struct {
		name    string
		value   string
		want    string
		wantErr string
	}{
		{name: "plain", value: "sk-123", want: "sk-123"},
		{name: "trimmed", value: "  sk-123 \n", want: "sk-123"},
		{name: "empty", value: "  ", wantErr: "is empty"},
		{name: "angle placeholder", value: "<OPENROUTER_API_KEY>", wantErr: "placeholder"},
		{name: "env reference", value: "${OPENROUTER_API_KEY}", wantErr: "placeholder"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := newAPIKey(tc.value, "providers.openrouter.api_key").resolve()
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				if !strings.Contains(err.Error(), "providers.openrouter.api_key") {
					t.Fatalf("expected error to name the config field, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("expected %q, got %q (%v)", tc.want, got, err)
			}
		})
	}
}

func TestBearerAuth_SetsHeader(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	auth := NewBearerAuth("sk-abc", "test")
	if err := auth.Apply(context.Background(), req); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer sk-abc" {
		t.Fatalf("expected bearer header, got %q", got)
	}
	if auth.Mode() != authModeAPIKey {
		t.Fatalf("unexpected mode %q", auth.Mode())
	}
}

func TestBearerAuth_PlaceholderFailsRequest(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	if err := NewBearerAuth("<KEY>", "").Apply(context.Background(), req); err == nil {
		t.Fatalf("expected placeholder key to fail")
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Fatalf("expected no header on failure, got %q", got)
	}
}

func TestNoAuth_LeavesRequestUntouched(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid", nil)
	if err := NewNoAuth().Apply(context.Background(), req); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Fatalf("expected no auth header, got %q", got)
	}
}
