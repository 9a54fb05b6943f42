// Package runlog appends one JSON record per agent turn to a per-chat file.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

type Logger struct {
	dir string
	now func() time.Time
	mu  sync.Mutex
}

func New(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create run log dir: %w", err)
	}
	return &Logger{dir: dir, now: time.Now}, nil
}

func (l *Logger) Path(chatID int64) string {
	return filepath.Join(l.dir, strconv.FormatInt(chatID, 10)+".jsonl")
}

// Log writes payload's fields with timestamp and chat_id added in front.
// payload must encode to a JSON object.
func (l *Logger) Log(chatID int64, payload interface{}) error {
	fields := map[string]interface{}{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode run record: %w", err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("run record is not an object: %w", err)
		}
	}
	fields["timestamp"] = l.now().UTC().Format(time.RFC3339)
	fields["chat_id"] = chatID

	line, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode run record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.Path(chatID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append run record: %w", err)
	}
	return nil
}
