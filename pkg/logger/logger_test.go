package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DEBUG},
		{"info", INFO},
		{"warn", WARN},
		{"warning", WARN},
		{"ERROR", ERROR},
		{"unknown", INFO},
		{"", INFO},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestInfoCF_WritesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetLevel(INFO)

	InfoCF("history", "Entry appended", map[string]interface{}{"chat_id": 42})

	var record map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", buf.String(), err)
	}
	if record["component"] != "history" {
		t.Fatalf("expected component history, got %v", record["component"])
	}
	if record["msg"] != "Entry appended" {
		t.Fatalf("expected message, got %v", record["msg"])
	}
	if record["chat_id"] != float64(42) {
		t.Fatalf("expected chat_id field 42, got %v", record["chat_id"])
	}
}

func TestSetLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLevel(INFO)
	DebugC("agent", "hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected debug record to be filtered, got %q", buf.String())
	}

	SetLevel(DEBUG)
	defer SetLevel(INFO)
	DebugC("agent", "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected debug record after SetLevel(DEBUG), got %q", buf.String())
	}
	if GetLevel() != DEBUG {
		t.Fatalf("expected GetLevel DEBUG, got %d", GetLevel())
	}
}
