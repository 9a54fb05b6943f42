// Secretary - Telegram task secretary bot
// License: MIT
//
// Copyright (c) 2026 Secretary contributors

package channels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/bus"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/config"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/telegram"
)

// Manager owns the registered channels and the goroutine that routes
// outbound bus messages to them.
type Manager struct {
	bus *bus.MessageBus

	mu       sync.RWMutex
	channels map[string]Channel
	// stopDispatch is set while the outbound dispatcher runs.
	stopDispatch func()
}

func NewManager(messageBus *bus.MessageBus) *Manager {
	return &Manager{
		bus:      messageBus,
		channels: make(map[string]Channel),
	}
}

// BuildMirrors returns the outbound mirrors enabled in cfg.
func BuildMirrors(cfg config.ChannelsConfig, httpClient *http.Client) ([]telegram.Mirror, error) {
	var mirrors []telegram.Mirror
	if strings.TrimSpace(cfg.WeCom.WebhookURL) != "" {
		mirrors = append(mirrors, NewWeComMirror(cfg.WeCom.WebhookURL, httpClient))
		logger.InfoC("channels", "WeCom mirror enabled")
	}
	if strings.TrimSpace(cfg.Discord.Token) != "" || strings.TrimSpace(cfg.Discord.MirrorChannelID) != "" {
		discord, err := NewDiscordMirror(cfg.Discord.Token, cfg.Discord.MirrorChannelID)
		if err != nil {
			return nil, fmt.Errorf("initialize Discord mirror: %w", err)
		}
		mirrors = append(mirrors, discord)
		logger.InfoC("channels", "Discord mirror enabled")
	}
	return mirrors, nil
}

func (m *Manager) RegisterChannel(channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channel.Name()] = channel
}

// snapshot returns the registered channels in name order.
func (m *Manager) snapshot() []Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		list = append(list, ch)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// StartAll starts every channel and then the outbound dispatcher. If any
// channel fails, the ones already started are stopped again.
func (m *Manager) StartAll(ctx context.Context) error {
	all := m.snapshot()
	if len(all) == 0 {
		logger.WarnC("channels", "No channels enabled")
		return nil
	}

	var started []Channel
	var errs []error
	for _, ch := range all {
		if err := ch.Start(ctx); err != nil {
			logger.ErrorCF("channels", "Failed to start channel",
				map[string]interface{}{"channel": ch.Name(), "error": err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name(), err))
			continue
		}
		started = append(started, ch)
	}
	if len(errs) > 0 {
		for _, ch := range started {
			if err := ch.Stop(ctx); err != nil {
				logger.WarnCF("channels", "Failed to roll back channel start",
					map[string]interface{}{"channel": ch.Name(), "error": err.Error()})
			}
		}
		return fmt.Errorf("start channels: %w", errors.Join(errs...))
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.dispatchOutbound(dispatchCtx)
	}()

	m.mu.Lock()
	previous := m.stopDispatch
	m.stopDispatch = func() {
		cancel()
		<-done
	}
	m.mu.Unlock()
	if previous != nil {
		previous()
	}

	logger.InfoCF("channels", "Channels started", map[string]interface{}{"channels": m.GetEnabledChannels()})
	return nil
}

// StopAll stops the dispatcher first so no reply is routed to a channel
// that is shutting down.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	stop := m.stopDispatch
	m.stopDispatch = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}

	for _, ch := range m.snapshot() {
		if err := ch.Stop(ctx); err != nil {
			logger.ErrorCF("channels", "Error stopping channel",
				map[string]interface{}{"channel": ch.Name(), "error": err.Error()})
		}
	}
	logger.InfoC("channels", "Channels stopped")
	return nil
}

func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if err := m.SendToChannel(ctx, msg.Channel, msg.ChatID, msg.Content); err != nil {
			logger.ErrorCF("channels", "Outbound delivery failed",
				map[string]interface{}{
					"channel": msg.Channel,
					"chat_id": msg.ChatID,
					"error":   err.Error(),
				})
		}
	}
}

func (m *Manager) SendToChannel(ctx context.Context, channelName, chatID, content string) error {
	ch, ok := m.GetChannel(channelName)
	if !ok {
		return fmt.Errorf("channel %s not found", channelName)
	}
	return ch.Send(ctx, bus.OutboundMessage{Channel: channelName, ChatID: chatID, Content: content})
}

func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// GetStatus feeds the /ready endpoint's checks.
func (m *Manager) GetStatus() map[string]interface{} {
	status := make(map[string]interface{})
	for _, ch := range m.snapshot() {
		status[ch.Name()] = map[string]interface{}{"running": ch.IsRunning()}
	}
	return status
}

// Ready is true when at least one channel is registered and all are running.
func (m *Manager) Ready() bool {
	all := m.snapshot()
	for _, ch := range all {
		if !ch.IsRunning() {
			return false
		}
	}
	return len(all) > 0
}

func (m *Manager) GetEnabledChannels() []string {
	all := m.snapshot()
	names := make([]string, len(all))
	for i, ch := range all {
		names[i] = ch.Name()
	}
	return names
}
