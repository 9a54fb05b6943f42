package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/bus"
)

// Channel is a chat transport the manager can start, stop and deliver
// replies through.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// BaseChannel carries the allow list and inbound publishing shared by
// concrete channels.
type BaseChannel struct {
	name    string
	bus     *bus.MessageBus
	allowed map[string]struct{}
	running atomic.Bool
}

// NewBaseChannel normalizes allowList entries: surrounding space and a
// leading "@" are dropped, blanks are ignored.
func NewBaseChannel(name string, msgBus *bus.MessageBus, allowList []string) *BaseChannel {
	allowed := make(map[string]struct{}, len(allowList))
	for _, entry := range allowList {
		entry = strings.TrimPrefix(strings.TrimSpace(entry), "@")
		if entry != "" {
			allowed[entry] = struct{}{}
		}
	}
	return &BaseChannel{name: name, bus: msgBus, allowed: allowed}
}

func (c *BaseChannel) Name() string { return c.name }

func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

func (c *BaseChannel) setRunning(running bool) { c.running.Store(running) }

// IsAllowed reports whether senderID may talk to the bot. Telegram senders
// are "<user id>|<username>" and match on either half. An empty allow list
// admits everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowed) == 0 {
		return true
	}
	candidates := []string{senderID}
	if id, username, ok := strings.Cut(senderID, "|"); ok && id != "" {
		candidates = append(candidates, id, username)
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, ok := c.allowed[candidate]; ok {
			return true
		}
	}
	return false
}

// HandleMessage publishes an allowed message to the inbound queue and
// reports whether it was published.
func (c *BaseChannel) HandleMessage(senderID, chatID, content string, metadata map[string]string) bool {
	if !c.IsAllowed(senderID) {
		return false
	}
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:    c.name,
		SenderID:   senderID,
		ChatID:     chatID,
		Content:    content,
		SessionKey: c.name + ":" + chatID,
		Metadata:   metadata,
	})
	return true
}
