package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/history"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/tools"
)

type fakeHistory struct {
	entries   []history.Entry
	lastLimit int
}

func (f *fakeHistory) GetHistory(chatID int64, limit int) []history.Entry {
	f.lastLimit = limit
	return f.entries
}

func TestBuildMessages_MapsDirectionsAndSkipsDuplicateUserText(t *testing.T) {
	src := &fakeHistory{entries: []history.Entry{
		{Direction: history.DirectionUser, Text: "早上好"},
		{Direction: history.DirectionBot, Text: "早，今天有 3 个任务"},
		{Direction: history.DirectionUser, Text: ""},
		{Direction: history.DirectionUser, Text: "列一下任务"},
	}}
	cb := NewContextBuilder(src, 12, "")

	msgs := cb.BuildMessages(1, "列一下任务")
	if src.lastLimit != 12 {
		t.Fatalf("expected history limit 12, got %d", src.lastLimit)
	}
	roles := make([]string, 0, len(msgs))
	for _, m := range msgs {
		roles = append(roles, m.Role)
	}
	if strings.Join(roles, ",") != "system,user,assistant,user" {
		t.Fatalf("unexpected roles %v", roles)
	}
	if msgs[len(msgs)-1].Content != "列一下任务" {
		t.Fatalf("expected user text last, got %q", msgs[len(msgs)-1].Content)
	}
}

func TestBuildMessages_AppendsUserTextWhenHistoryLags(t *testing.T) {
	cb := NewContextBuilder(&fakeHistory{}, 5, "persona")
	msgs := cb.BuildMessages(1, "hello")
	if len(msgs) != 2 || msgs[1].Role != "user" || msgs[1].Content != "hello" {
		t.Fatalf("expected system + user, got %+v", msgs)
	}
}

func TestBuildSystemPrompt_IncludesPersonaTimeAndTools(t *testing.T) {
	cb := NewContextBuilder(nil, 5, "custom persona")
	cb.now = func() time.Time { return time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC) }
	registry := tools.NewToolRegistry()
	registry.Register(&echoTool{})
	cb.SetToolsRegistry(registry)

	prompt := cb.BuildSystemPrompt()
	if !strings.HasPrefix(prompt, "custom persona") {
		t.Fatalf("expected persona first, got %q", prompt)
	}
	if !strings.Contains(prompt, "2026-03-01 08:30") {
		t.Fatalf("expected Beijing time in prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "echo") {
		t.Fatalf("expected tool summary in prompt, got %q", prompt)
	}
}

func TestNewContextBuilder_DefaultPersona(t *testing.T) {
	cb := NewContextBuilder(nil, 5, "  ")
	if !strings.HasPrefix(cb.BuildSystemPrompt(), defaultPersona) {
		t.Fatal("expected default persona when none configured")
	}
}
