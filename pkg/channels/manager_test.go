package channels

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/bus"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/config"
)

type recordingChannel struct {
	*BaseChannel
	mu   sync.Mutex
	sent []bus.OutboundMessage
}

func newRecordingChannel(name string, msgBus *bus.MessageBus) *recordingChannel {
	return &recordingChannel{BaseChannel: NewBaseChannel(name, msgBus, nil)}
}

func (c *recordingChannel) Start(ctx context.Context) error {
	c.setRunning(true)
	return nil
}

func (c *recordingChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

func (c *recordingChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestManager_DispatchesOutboundByChannel(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m := NewManager(msgBus)
	ch := newRecordingChannel("telegram", msgBus)
	m.RegisterChannel(ch)

	if m.Ready() {
		t.Fatal("expected manager not ready before start")
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if !m.Ready() {
		t.Fatal("expected manager ready after start")
	}

	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "unknown", ChatID: "1", Content: "dropped"})
	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "telegram", ChatID: "1", Content: "hi"})

	deadline := time.Now().Add(2 * time.Second)
	for ch.sentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ch.sentCount() != 1 || ch.sent[0].Content != "hi" {
		t.Fatalf("expected one dispatched message, got %+v", ch.sent)
	}

	if err := m.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if m.Ready() {
		t.Fatal("expected manager not ready after stop")
	}
	status := m.GetStatus()["telegram"].(map[string]interface{})
	if status["running"] != false {
		t.Fatalf("unexpected status %v", status)
	}
}

func TestManager_SendToChannel(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m := NewManager(msgBus)
	ch := newRecordingChannel("telegram", msgBus)
	m.RegisterChannel(ch)

	if err := m.SendToChannel(context.Background(), "telegram", "5", "direct"); err != nil {
		t.Fatalf("SendToChannel failed: %v", err)
	}
	if err := m.SendToChannel(context.Background(), "slack", "5", "x"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
	if names := m.GetEnabledChannels(); len(names) != 1 || names[0] != "telegram" {
		t.Fatalf("unexpected channels %v", names)
	}
}

func TestBuildMirrors(t *testing.T) {
	mirrors, err := BuildMirrors(config.ChannelsConfig{}, nil)
	if err != nil || len(mirrors) != 0 {
		t.Fatalf("expected no mirrors by default, got %v (%v)", mirrors, err)
	}

	cfg := config.ChannelsConfig{
		WeCom:   config.WeComConfig{WebhookURL: "https://qyapi.example/webhook"},
		Discord: config.DiscordConfig{Token: "t", MirrorChannelID: "c"},
	}
	mirrors, err = BuildMirrors(cfg, nil)
	if err != nil {
		t.Fatalf("BuildMirrors failed: %v", err)
	}
	if len(mirrors) != 2 || mirrors[0].Name() != "wecom" || mirrors[1].Name() != "discord" {
		t.Fatalf("unexpected mirrors %v", mirrors)
	}

	if _, err := BuildMirrors(config.ChannelsConfig{Discord: config.DiscordConfig{Token: "t"}}, nil); err == nil {
		t.Fatal("expected error for Discord token without channel")
	}
}
