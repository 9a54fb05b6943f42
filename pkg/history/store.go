// Package history keeps an append-only JSONL log of every message per chat
// together with the Telegram update cursor.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/telegram"
)

const (
	DirectionUser = "user"
	DirectionBot  = "bot"

	metadataFile  = "metadata.json"
	archiveDir    = "archive"
	archiveLayout = "20060102T150405"
)

type Entry struct {
	ChatID    int64           `json:"chat_id"`
	MessageID int64           `json:"message_id"`
	Direction string          `json:"direction"`
	Text      string          `json:"text"`
	Timestamp string          `json:"timestamp"`
	ReplyTo   *int64          `json:"reply_to,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

type metadata struct {
	LastUpdateID *int64 `json:"last_update_id,omitempty"`
}

// chatLog is the in-memory state for one chat: the message ids already on
// disk. It is built from the file on first use and dropped on ClearChat.
type chatLog struct {
	mu   sync.Mutex
	seen map[int64]struct{}
}

// Store is safe for concurrent use. Writes for the same chat are serialized
// by that chat's lock; different chats only share the index lock.
type Store struct {
	root string
	now  func() time.Time

	mu    sync.Mutex
	chats map[int64]*chatLog

	cursorMu   sync.Mutex
	lastUpdate *int64
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	s := &Store{
		root:  root,
		now:   time.Now,
		chats: make(map[int64]*chatLog),
	}
	s.lastUpdate = s.loadCheckpoint()
	return s, nil
}

func (s *Store) chatPath(chatID int64) string {
	return filepath.Join(s.root, strconv.FormatInt(chatID, 10)+".jsonl")
}

// AppendUser stores the user message carried by update, if any, and then
// advances the cursor to update.UpdateID.
func (s *Store) AppendUser(update telegram.Update) error {
	if msg := update.UserMessage(); msg != nil {
		if err := s.append(s.toEntry(msg, DirectionUser)); err != nil {
			return err
		}
	}
	return s.RecordCheckpoint(update.UpdateID)
}

// AppendBot stores a message the bot sent. The cursor is left alone.
func (s *Store) AppendBot(msg *telegram.Message) error {
	if msg == nil {
		return nil
	}
	return s.append(s.toEntry(msg, DirectionBot))
}

func (s *Store) toEntry(msg *telegram.Message, direction string) Entry {
	ts := s.now()
	if msg.Date > 0 {
		ts = time.Unix(msg.Date, 0)
	}
	entry := Entry{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Direction: direction,
		Text:      msg.Text,
		Timestamp: ts.UTC().Format(time.RFC3339),
		Raw:       msg.RawJSON(),
	}
	if msg.ReplyToMessage != nil {
		id := msg.ReplyToMessage.MessageID
		entry.ReplyTo = &id
	}
	return entry
}

func (s *Store) chat(chatID int64) *chatLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		c = &chatLog{}
		s.chats[chatID] = c
	}
	return c
}

func (s *Store) append(entry Entry) error {
	c := s.chat(entry.ChatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen == nil {
		c.seen = make(map[int64]struct{})
		for _, e := range s.readEntries(entry.ChatID) {
			c.seen[e.MessageID] = struct{}{}
		}
	}
	if _, dup := c.seen[entry.MessageID]; dup {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	f, err := os.OpenFile(s.chatPath(entry.ChatID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync history log: %w", err)
	}
	c.seen[entry.MessageID] = struct{}{}
	return nil
}

// readEntries returns the chat's log in append order. A missing file is an
// empty log; undecodable lines are skipped.
func (s *Store) readEntries(chatID int64) []Entry {
	data, err := os.ReadFile(s.chatPath(chatID))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WarnCF("history", "Failed to read history log", map[string]interface{}{
				"chat_id": chatID,
				"error":   err.Error(),
			})
		}
		return nil
	}

	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			logger.WarnCF("history", "Skipping corrupt history line", map[string]interface{}{
				"chat_id": chatID,
				"line":    lineNo,
				"error":   err.Error(),
			})
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

// GetHistory returns every entry when there are at most limit of them.
// Otherwise it returns the first entry followed by the latest limit entries.
func (s *Store) GetHistory(chatID int64, limit int) []Entry {
	c := s.chat(chatID)
	c.mu.Lock()
	entries := s.readEntries(chatID)
	c.mu.Unlock()

	if limit < 0 {
		limit = 0
	}
	if len(entries) <= limit {
		return entries
	}
	out := make([]Entry, 0, limit+1)
	out = append(out, entries[0])
	out = append(out, entries[len(entries)-limit:]...)
	return out
}

// ClearChat moves the chat's log under archive/ and forgets its dedup state.
func (s *Store) ClearChat(chatID int64) error {
	c := s.chat(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen = nil
	src := s.chatPath(chatID)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dir := filepath.Join(s.root, archiveDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	dst := filepath.Join(dir, fmt.Sprintf("%d_%s.jsonl", chatID, s.now().UTC().Format(archiveLayout)))
	for i := 1; fileExists(dst); i++ {
		dst = filepath.Join(dir, fmt.Sprintf("%d_%s_%d.jsonl", chatID, s.now().UTC().Format(archiveLayout), i))
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("archive history: %w", err)
	}
	logger.InfoCF("history", "Archived chat history", map[string]interface{}{
		"chat_id": chatID,
		"archive": dst,
	})
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// RecordCheckpoint persists the update cursor. Ids lower than the stored one
// are ignored so a stale update cannot rewind polling.
func (s *Store) RecordCheckpoint(updateID int64) error {
	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()

	if s.lastUpdate != nil && updateID < *s.lastUpdate {
		logger.DebugCF("history", "Ignoring stale checkpoint", map[string]interface{}{
			"update_id": updateID,
			"stored":    *s.lastUpdate,
		})
		return nil
	}
	data, err := json.Marshal(metadata{LastUpdateID: &updateID})
	if err != nil {
		return err
	}
	if err := writeFileSync(filepath.Join(s.root, metadataFile), data); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	s.lastUpdate = &updateID
	return nil
}

// LastCheckpoint returns the stored cursor, loaded once at startup.
func (s *Store) LastCheckpoint() (int64, bool) {
	s.cursorMu.Lock()
	defer s.cursorMu.Unlock()
	if s.lastUpdate == nil {
		return 0, false
	}
	return *s.lastUpdate, true
}

func (s *Store) loadCheckpoint() *int64 {
	data, err := os.ReadFile(filepath.Join(s.root, metadataFile))
	if err != nil {
		return nil
	}
	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		logger.WarnCF("history", "Ignoring corrupt history metadata", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return meta.LastUpdateID
}

func writeFileSync(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
