package channels

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const (
	sendTimeout       = 10 * time.Second
	discordChunkLimit = 1500 // Discord caps messages at 2000 characters
)

// discordSender is the discordgo call the mirror needs.
type discordSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordMirror copies outgoing text to one Discord channel over the REST
// API. No gateway connection is opened.
type DiscordMirror struct {
	session   discordSender
	channelID string
}

func NewDiscordMirror(token, channelID string) (*DiscordMirror, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(channelID) == "" {
		return nil, fmt.Errorf("discord mirror needs a token and a channel id")
	}
	session, err := discordgo.New("Bot " + strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &DiscordMirror{session: session, channelID: strings.TrimSpace(channelID)}, nil
}

func (m *DiscordMirror) Name() string {
	return "discord"
}

func (m *DiscordMirror) Mirror(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, chunk := range splitMessage(text, discordChunkLimit) {
		if err := m.sendChunk(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (m *DiscordMirror) sendChunk(ctx context.Context, content string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := m.session.ChannelMessageSend(m.channelID, content)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

// splitMessage splits long text into chunks of at most limit bytes,
// preferring newline then space boundaries and keeping ``` fences whole
// when the closing fence is close enough.
func splitMessage(content string, limit int) []string {
	var messages []string

	for len(content) > 0 {
		if len(content) <= limit {
			messages = append(messages, content)
			break
		}

		msgEnd := findLastNewline(content[:limit], 200)
		if msgEnd <= 0 {
			msgEnd = findLastSpace(content[:limit], 100)
		}
		if msgEnd <= 0 {
			msgEnd = limit
		}

		if unclosedIdx := findLastUnclosedCodeBlock(content[:msgEnd]); unclosedIdx >= 0 {
			extendedLimit := limit + 500
			if len(content) > extendedLimit {
				closingIdx := findNextClosingCodeBlock(content, msgEnd)
				if closingIdx > 0 && closingIdx <= extendedLimit {
					msgEnd = closingIdx
				} else {
					msgEnd = findLastNewline(content[:unclosedIdx], 200)
					if msgEnd <= 0 {
						msgEnd = findLastSpace(content[:unclosedIdx], 100)
					}
					if msgEnd <= 0 {
						msgEnd = unclosedIdx
					}
				}
			} else {
				msgEnd = len(content)
			}
		}

		if msgEnd <= 0 {
			msgEnd = limit
		}
		for msgEnd > 1 && msgEnd < len(content) && !utf8.RuneStart(content[msgEnd]) {
			msgEnd--
		}

		messages = append(messages, content[:msgEnd])
		content = strings.TrimSpace(content[msgEnd:])
	}

	return messages
}

// findLastUnclosedCodeBlock returns the offset of an opening ``` with no
// matching close, or -1.
func findLastUnclosedCodeBlock(text string) int {
	count := 0
	lastOpenIdx := -1

	for i := 0; i < len(text); i++ {
		if i+2 < len(text) && text[i] == '`' && text[i+1] == '`' && text[i+2] == '`' {
			if count%2 == 0 {
				lastOpenIdx = i
			}
			count++
			i += 2
		}
	}

	if count%2 == 1 {
		return lastOpenIdx
	}
	return -1
}

func findNextClosingCodeBlock(text string, startIdx int) int {
	for i := startIdx; i < len(text); i++ {
		if i+2 < len(text) && text[i] == '`' && text[i+1] == '`' && text[i+2] == '`' {
			return i + 3
		}
	}
	return -1
}

func findLastNewline(s string, searchWindow int) int {
	searchStart := len(s) - searchWindow
	if searchStart < 0 {
		searchStart = 0
	}
	for i := len(s) - 1; i >= searchStart; i-- {
		if s[i] == '\n' {
			return i
		}
	}
	return -1
}

func findLastSpace(s string, searchWindow int) int {
	searchStart := len(s) - searchWindow
	if searchStart < 0 {
		searchStart = 0
	}
	for i := len(s) - 1; i >= searchStart; i-- {
		if s[i] == ' ' || s[i] == '\t' {
			return i
		}
	}
	return -1
}
