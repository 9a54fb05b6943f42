package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/history"
)

func runRootCommandForTest(args ...string) (string, error) {
	root := buildRootCommand()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelpListsCommands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want []string
	}{
		{"root_help", []string{"--help"}, []string{"gateway", "chat", "status", "blocks", "history", "briefing", "onboard", "version", "--config"}},
		{"blocks_help", []string{"blocks", "--help"}, []string{"list", "add", "cancel"}},
		{"history_help", []string{"history", "--help"}, []string{"clear"}},
		{"chat_help", []string{"chat", "--help"}, []string{"--message", "--chat-id", "--debug"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			output, err := runRootCommandForTest(tc.args...)
			if err != nil {
				t.Fatalf("execute command %v: %v\nOutput:\n%s", tc.args, err, output)
			}
			for _, want := range tc.want {
				if !strings.Contains(output, want) {
					t.Fatalf("expected %q in help output:\n%s", want, output)
				}
			}
		})
	}
}

func TestRootWithoutSubcommandFails(t *testing.T) {
	if _, err := runRootCommandForTest(); err == nil {
		t.Fatal("expected error when no subcommand is given")
	}
}

func TestVersionCommand(t *testing.T) {
	output, err := runRootCommandForTest("version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(output, appName+" ") {
		t.Fatalf("unexpected version output %q", output)
	}
}

func TestBlocksAddRequiresChatID(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	_, err := runRootCommandForTest("--config", cfgPath, "blocks", "add", "--start", "14:00", "--end", "15:00")
	if err == nil || !strings.Contains(err.Error(), "--chat-id") {
		t.Fatalf("expected chat id error, got %v", err)
	}
}

func TestBlocksAddListCancel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SECRETARY_STORAGE_DATA_DIR", dir)
	t.Setenv("SECRETARY_AGENT_PROVIDER", "openrouter")
	t.Setenv("SECRETARY_PROVIDERS_OPENROUTER_API_KEY", "")
	cfgPath := filepath.Join(dir, "config.json")

	out, err := runRootCommandForTest("--config", cfgPath, "blocks", "add", "--chat-id", "9",
		"--start", "2099-01-01 14:00", "--end", "2099-01-01 16:00", "--task", "Magnet")
	if err != nil {
		t.Fatalf("blocks add failed: %v\n%s", err, out)
	}
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "Added" {
		t.Fatalf("unexpected add output %q", out)
	}
	id := fields[1]

	out, err = runRootCommandForTest("--config", cfgPath, "blocks", "list", "--chat-id", "9")
	if err != nil {
		t.Fatalf("blocks list failed: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "Magnet") {
		t.Fatalf("expected window in listing, got %q", out)
	}

	if _, err := runRootCommandForTest("--config", cfgPath, "blocks", "cancel", id); err != nil {
		t.Fatalf("blocks cancel failed: %v", err)
	}
	if _, err := runRootCommandForTest("--config", cfgPath, "blocks", "cancel", id); err == nil {
		t.Fatal("expected second cancel to report a missing window")
	}
}

func TestSessionHistory(t *testing.T) {
	h := newSessionHistory()
	h.add(1, history.DirectionUser, "a")
	h.add(1, history.DirectionBot, "b")
	h.add(1, history.DirectionUser, "c")
	h.add(2, history.DirectionUser, "other")

	got := h.GetHistory(1, 2)
	if len(got) != 2 || got[0].Text != "b" || got[1].Text != "c" {
		t.Fatalf("expected last two entries, got %+v", got)
	}
	if err := h.ClearChat(1); err != nil {
		t.Fatalf("ClearChat failed: %v", err)
	}
	if len(h.GetHistory(1, 10)) != 0 || len(h.GetHistory(2, 10)) != 1 {
		t.Fatal("expected only chat 1 to be cleared")
	}
}
