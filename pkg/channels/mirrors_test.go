package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

func TestWeComMirror_PostsTextPayload(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer server.Close()

	mirror := NewWeComMirror(server.URL, server.Client())
	if err := mirror.Mirror(context.Background(), "任务提醒"); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}
	if got["msgtype"] != "text" {
		t.Fatalf("expected msgtype text, got %v", got["msgtype"])
	}
	text, _ := got["text"].(map[string]interface{})
	if text["content"] != "任务提醒" {
		t.Fatalf("expected content to be forwarded, got %v", got)
	}
}

func TestWeComMirror_ErrCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errcode":93000,"errmsg":"invalid webhook url"}`))
	}))
	defer server.Close()

	err := NewWeComMirror(server.URL, server.Client()).Mirror(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "93000") {
		t.Fatalf("expected errcode error, got %v", err)
	}
}

func TestWeComMirror_HTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	if err := NewWeComMirror(server.URL, server.Client()).Mirror(context.Background(), "x"); err == nil {
		t.Fatal("expected status error")
	}
}

type fakeDiscord struct {
	mu       sync.Mutex
	channels []string
	contents []string
}

func (f *fakeDiscord) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channelID)
	f.contents = append(f.contents, content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func TestDiscordMirror_SplitsLongText(t *testing.T) {
	fake := &fakeDiscord{}
	mirror := &DiscordMirror{session: fake, channelID: "chan-1"}

	long := strings.Repeat("line of text\n", 300)
	if err := mirror.Mirror(context.Background(), long); err != nil {
		t.Fatalf("Mirror failed: %v", err)
	}
	if len(fake.contents) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(fake.contents))
	}
	for i, c := range fake.contents {
		if len(c) > discordChunkLimit {
			t.Fatalf("chunk %d exceeds limit: %d", i, len(c))
		}
		if fake.channels[i] != "chan-1" {
			t.Fatalf("expected mirror channel, got %q", fake.channels[i])
		}
	}

	sent := len(fake.contents)
	if err := mirror.Mirror(context.Background(), "   "); err != nil {
		t.Fatalf("blank text should be a no-op: %v", err)
	}
	if len(fake.contents) != sent {
		t.Fatalf("expected nothing sent for blank text, got %d new chunks", len(fake.contents)-sent)
	}
}

func TestNewDiscordMirror_RequiresTokenAndChannel(t *testing.T) {
	if _, err := NewDiscordMirror("token", ""); err == nil {
		t.Fatal("expected error without channel id")
	}
}

func TestSplitMessage_KeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("日", 1000)
	for _, chunk := range splitMessage(text, 100) {
		if !utf8.ValidString(chunk) {
			t.Fatalf("chunk split inside a rune: %q", chunk)
		}
	}
}

func TestSplitMessage_KeepsCodeFenceTogether(t *testing.T) {
	text := strings.Repeat("a", 90) + "\n```\n" + strings.Repeat("b ", 20) + "\n```\nafter"
	chunks := splitMessage(text, 100)
	for _, c := range chunks {
		if strings.Count(c, "```")%2 != 0 {
			t.Fatalf("chunk breaks a code fence: %q", c)
		}
	}
}
