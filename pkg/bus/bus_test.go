package bus

import (
	"context"
	"testing"
)

func TestMessageBus_PublishInboundDropsWhenBufferFull(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	for i := 0; i < cap(mb.inbound.ch); i++ {
		mb.PublishInbound(InboundMessage{Channel: "test", SenderID: "u", ChatID: "1", Content: "msg"})
	}

	mb.PublishInbound(InboundMessage{Channel: "test", SenderID: "u", ChatID: "1", Content: "overflow"})
	if mb.DroppedInbound() != 1 {
		t.Fatalf("expected dropped inbound count 1, got %d", mb.DroppedInbound())
	}
}

func TestMessageBus_PublishOutboundDropsWhenBufferFull(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	for i := 0; i < cap(mb.outbound.ch); i++ {
		mb.PublishOutbound(OutboundMessage{Channel: "test", ChatID: "1", Content: "msg"})
	}

	mb.PublishOutbound(OutboundMessage{Channel: "test", ChatID: "1", Content: "overflow"})
	if mb.DroppedOutbound() != 1 {
		t.Fatalf("expected dropped outbound count 1, got %d", mb.DroppedOutbound())
	}
}

func TestMessageBus_ClosedChannelsReturnFalse(t *testing.T) {
	mb := NewMessageBus()
	mb.Close()

	if _, ok := mb.ConsumeInbound(context.Background()); ok {
		t.Fatalf("expected closed inbound consume to return ok=false")
	}
	if _, ok := mb.SubscribeOutbound(context.Background()); ok {
		t.Fatalf("expected closed outbound subscribe to return ok=false")
	}
}

func TestMessageBus_RoundTripAndStats(t *testing.T) {
	mb := NewMessageBusWithSize(2)
	defer mb.Close()

	mb.PublishInbound(InboundMessage{Channel: "telegram", ChatID: "42", Content: "hi"})
	if got := mb.Stats()["inbound_queued"]; got != 1 {
		t.Fatalf("expected 1 queued inbound message, got %v", got)
	}
	msg, ok := mb.ConsumeInbound(context.Background())
	if !ok || msg.Content != "hi" || msg.ChatID != "42" {
		t.Fatalf("unexpected inbound message %+v (ok=%v)", msg, ok)
	}

	mb.PublishOutbound(OutboundMessage{Channel: "telegram", ChatID: "42", Content: "hello"})
	out, ok := mb.SubscribeOutbound(context.Background())
	if !ok || out.Content != "hello" {
		t.Fatalf("unexpected outbound message %+v (ok=%v)", out, ok)
	}
}

func TestMessageBus_ConsumeStopsOnContextCancel(t *testing.T) {
	mb := NewMessageBus()
	defer mb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := mb.ConsumeInbound(ctx); ok {
		t.Fatalf("expected cancelled consume to return ok=false")
	}
}
