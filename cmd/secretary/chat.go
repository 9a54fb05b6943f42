package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/agent"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/bus"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/history"
)

// sessionHistory keeps a local chat in memory so the Bot API cursor in
// the history store is never touched.
type sessionHistory struct {
	mu      sync.Mutex
	entries map[int64][]history.Entry
}

func newSessionHistory() *sessionHistory {
	return &sessionHistory{entries: map[int64][]history.Entry{}}
}

func (h *sessionHistory) add(chatID int64, direction, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[chatID] = append(h.entries[chatID], history.Entry{
		ChatID:    chatID,
		MessageID: int64(len(h.entries[chatID]) + 1),
		Direction: direction,
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *sessionHistory) GetHistory(chatID int64, limit int) []history.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries := h.entries[chatID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]history.Entry(nil), entries...)
}

func (h *sessionHistory) ClearChat(chatID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.entries, chatID)
	return nil
}

// consoleNotifier prints window reminders in the terminal.
type consoleNotifier struct {
	out io.Writer
}

func (n consoleNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := fmt.Fprintf(n.out, "\n%s\n\n", text)
	return err
}

type chatSession struct {
	loop    *agent.AgentLoop
	history *sessionHistory
	chatID  int64
	out     io.Writer
}

func (s *chatSession) handle(ctx context.Context, input string) {
	s.history.add(s.chatID, history.DirectionUser, input)
	for _, reply := range s.loop.ProcessDirect(ctx, s.chatID, input) {
		s.history.add(s.chatID, history.DirectionBot, reply)
		fmt.Fprintf(s.out, "\n%s %s\n\n", appName, reply)
	}
}

func runChat(out io.Writer, configPath string, debug bool, chatID int64, message string) error {
	cfg, err := loadConfig(configPath, debug)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, consoleNotifier{out: out})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.monitor.Bootstrap(ctx); err != nil {
		fmt.Fprintf(out, "Warning: could not restore window timers: %v\n", err)
	}

	sessions := newSessionHistory()
	ag := a.newAgent(sessions)
	session := &chatSession{
		loop:    a.newLoop(bus.NewMessageBus(), ag, sessions),
		history: sessions,
		chatID:  chatID,
		out:     out,
	}

	if strings.TrimSpace(message) != "" {
		session.handle(ctx, message)
		return nil
	}

	mode := "llm"
	if !ag.Enabled() {
		mode = "fallback"
	}
	fmt.Fprintf(out, "%s interactive mode, %s (Ctrl+C to exit)\n\n", appName, mode)
	interactiveMode(ctx, session)
	return nil
}

func interactiveMode(ctx context.Context, session *chatSession) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s You: ", appName),
		HistoryFile:     filepath.Join(os.TempDir(), ".secretary_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(session.out, "Error initializing readline: %v\n", err)
		fmt.Fprintln(session.out, "Falling back to simple input mode...")
		simpleInteractiveMode(ctx, session)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(session.out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(session.out, "Error reading input: %v\n", err)
			continue
		}
		if done := dispatchLine(ctx, session, line); done {
			return
		}
	}
}

func simpleInteractiveMode(ctx context.Context, session *chatSession) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprintf(session.out, "%s You: ", appName)
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(session.out, "\nGoodbye!")
				return
			}
			fmt.Fprintf(session.out, "Error reading input: %v\n", err)
			continue
		}
		if done := dispatchLine(ctx, session, line); done {
			return
		}
	}
}

// dispatchLine handles one input line and reports whether the session ended.
func dispatchLine(ctx context.Context, session *chatSession, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}
	if input == "exit" || input == "quit" {
		fmt.Fprintln(session.out, "Goodbye!")
		return true
	}
	session.handle(ctx, input)
	return false
}
