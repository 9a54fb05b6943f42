package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// TestDefaultConfig_Agent verifies agent defaults
func TestDefaultConfig_Agent(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Agent.Provider != "openrouter" {
		t.Errorf("Provider = %q, want %q", cfg.Agent.Provider, "openrouter")
	}
	if cfg.Agent.Model == "" {
		t.Error("Model should not be empty")
	}
	if cfg.Agent.Temperature == 0 {
		t.Error("Temperature should not be zero")
	}
	if cfg.Agent.HistoryLimit == 0 {
		t.Error("HistoryLimit should not be zero")
	}
}

// TestDefaultConfig_Telegram verifies polling defaults match the Bot API long-poll window
func TestDefaultConfig_Telegram(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Channels.Telegram.Token != "" {
		t.Error("Telegram token should be empty by default")
	}
	if cfg.Channels.Telegram.PollTimeout != 25 {
		t.Errorf("PollTimeout = %d, want 25", cfg.Channels.Telegram.PollTimeout)
	}
	if cfg.Channels.Telegram.SendRate <= 0 {
		t.Error("SendRate should be positive")
	}
}

// TestDefaultConfig_Briefing verifies the daily briefing is off until a chat is configured
func TestDefaultConfig_Briefing(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Briefing.Enabled {
		t.Error("Briefing should be disabled by default")
	}
	if cfg.Briefing.Cron != "0 9 * * *" {
		t.Errorf("Briefing cron = %q, want %q", cfg.Briefing.Cron, "0 9 * * *")
	}
}

func TestConfig_StoragePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.DataDir = "/srv/secretary"

	if got := cfg.HistoryDir(); got != filepath.Join("/srv/secretary", "history") {
		t.Fatalf("unexpected history dir %q", got)
	}
	if got := cfg.RunLogDir(); got != filepath.Join("/srv/secretary", "agent_runs") {
		t.Fatalf("unexpected run log dir %q", got)
	}
	if got := cfg.ScheduleDBPath(); got != filepath.Join("/srv/secretary", "schedule.db") {
		t.Fatalf("unexpected schedule db path %q", got)
	}
}

func TestConfig_DataPathExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	if strings.HasPrefix(cfg.DataPath(), "~") {
		t.Fatalf("expected home to be expanded, got %q", cfg.DataPath())
	}
}

func TestSaveConfig_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permission bits are not enforced on Windows")
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("config file has permission %04o, want 0600", perm)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"agent":{"model":"file/model","history_limit":7},"channels":{"telegram":{"allow_from":[12345,"alice"]}}}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SECRETARY_AGENT_MODEL", "env/model")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Agent.Model; got != "env/model" {
		t.Fatalf("expected env override model, got %q", got)
	}
	if got := cfg.Agent.HistoryLimit; got != 7 {
		t.Fatalf("expected history limit from file, got %d", got)
	}
	if got := cfg.Agent.Temperature; got != 0.3 {
		t.Fatalf("expected default temperature to survive partial file, got %v", got)
	}
	allow := cfg.Channels.Telegram.AllowFrom
	if len(allow) != 2 || allow[0] != "12345" || allow[1] != "alice" {
		t.Fatalf("expected mixed allow_from to decode as strings, got %v", allow)
	}
}

func TestLoadConfig_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("SECRETARY_AGENT_PROVIDER", "anthropic")
	t.Setenv("SECRETARY_PROVIDERS_ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("SECRETARY_BRIEFING_CHAT_ID", "987654")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Agent.Provider; got != "anthropic" {
		t.Fatalf("expected provider anthropic, got %q", got)
	}
	if got := cfg.Providers.Anthropic.APIKey; got != "sk-ant" {
		t.Fatalf("expected anthropic api key from env, got %q", got)
	}
	if got := cfg.Briefing.ChatID; got != 987654 {
		t.Fatalf("expected briefing chat id from env, got %d", got)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error for invalid JSON")
	}
}
