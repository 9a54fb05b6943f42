package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func get(t *testing.T, h http.Handler, path string) (int, statusResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s body: %v", path, err)
	}
	return rec.Code, body
}

func TestHealthAlwaysOK(t *testing.T) {
	s := NewServer("127.0.0.1", 0, func() (bool, map[string]interface{}) { return false, nil })
	code, body := get(t, s.Handler(), "/health")
	if code != http.StatusOK || body.Status != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", code, body.Status)
	}
}

func TestReadyReflectsChannels(t *testing.T) {
	ready := false
	s := NewServer("127.0.0.1", 0, func() (bool, map[string]interface{}) {
		return ready, map[string]interface{}{"telegram": ready}
	})

	code, body := get(t, s.Handler(), "/ready")
	if code != http.StatusServiceUnavailable || body.Status != "not ready" {
		t.Fatalf("expected 503 not ready, got %d %q", code, body.Status)
	}
	if body.Checks["telegram"] != false {
		t.Fatalf("expected checks in body, got %v", body.Checks)
	}

	ready = true
	code, body = get(t, s.Handler(), "/ready")
	if code != http.StatusOK || body.Status != "ready" {
		t.Fatalf("expected 200 ready, got %d %q", code, body.Status)
	}
}
