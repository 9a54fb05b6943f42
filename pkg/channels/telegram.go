package channels

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/bus"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/telegram"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/utils"
)

const defaultPollRetryDelay = 3 * time.Second

// BotAPI is the part of the Telegram client the channel drives.
type BotAPI interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
}

// UpdateLog persists inbound updates and remembers the last one handled.
type UpdateLog interface {
	AppendUser(update telegram.Update) error
	LastCheckpoint() (int64, bool)
}

// TelegramChannel long-polls the Bot API. Every update is written to the
// update log before it is published, so a restart resumes after the last
// recorded update.
type TelegramChannel struct {
	*BaseChannel
	api        BotAPI
	updates    UpdateLog
	retryDelay time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTelegramChannel(api BotAPI, updates UpdateLog, msgBus *bus.MessageBus, allowFrom []string) *TelegramChannel {
	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", msgBus, allowFrom),
		api:         api,
		updates:     updates,
		retryDelay:  defaultPollRetryDelay,
	}
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("telegram channel already started")
	}

	pollCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.setRunning(true)

	offset := int64(0)
	if last, ok := c.updates.LastCheckpoint(); ok {
		offset = last + 1
	}
	logger.InfoCF("telegram", "Starting long polling", map[string]interface{}{
		"offset": offset,
	})

	go func() {
		defer close(c.done)
		c.pollLoop(pollCtx, offset)
	}()
	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	c.setRunning(false)
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}
	if _, err := c.api.SendMessage(ctx, chatID, msg.Content); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func (c *TelegramChannel) pollLoop(ctx context.Context, offset int64) {
	for ctx.Err() == nil {
		next, err := c.pollOnce(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WarnCF("telegram", "getUpdates failed", map[string]interface{}{
				"offset": offset,
				"error":  err.Error(),
			})
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}
		offset = next
	}
}

// pollOnce fetches one batch and returns the offset for the next request.
func (c *TelegramChannel) pollOnce(ctx context.Context, offset int64) (int64, error) {
	updates, err := c.api.GetUpdates(ctx, offset)
	if err != nil {
		return offset, err
	}
	for _, update := range updates {
		if err := c.updates.AppendUser(update); err != nil {
			logger.ErrorCF("telegram", "Failed to record update", map[string]interface{}{
				"update_id": update.UpdateID,
				"error":     err.Error(),
			})
		}
		if update.UpdateID >= offset {
			offset = update.UpdateID + 1
		}
		c.dispatch(update)
	}
	return offset, nil
}

func (c *TelegramChannel) dispatch(update telegram.Update) {
	msg := update.UserMessage()
	if msg == nil || msg.Text == "" {
		return
	}

	senderID := strconv.FormatInt(msg.Chat.ID, 10)
	username := msg.Chat.Username
	if msg.From != nil {
		senderID = strconv.FormatInt(msg.From.ID, 10)
		username = msg.From.Username
	}
	if username != "" {
		senderID += "|" + username
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	metadata := map[string]string{
		"update_id":  strconv.FormatInt(update.UpdateID, 10),
		"message_id": strconv.FormatInt(msg.MessageID, 10),
	}
	if update.EditedMessage != nil && update.Message == nil {
		metadata["edited"] = "true"
	}

	if !c.HandleMessage(senderID, chatID, msg.Text, metadata) {
		logger.DebugCF("telegram", "Message rejected by allowlist", map[string]interface{}{
			"sender_id": senderID,
		})
		return
	}
	logger.DebugCF("telegram", "Received message", map[string]interface{}{
		"chat_id": chatID,
		"preview": utils.Truncate(msg.Text, 50),
	})
}
