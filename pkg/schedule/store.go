// Package schedule keeps time-boxed focus/rest windows and fires a reminder
// when a focus window ends.
package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	KindTask = "task"
	KindRest = "rest"
)

var ErrWindowNotFound = errors.New("schedule window not found")

type Window struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Kind      string    `json:"kind"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	TaskID    string    `json:"task_id,omitempty"`
	TaskName  string    `json:"task_name,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields every stored window must have.
func (w Window) Validate() error {
	if w.Kind != KindTask && w.Kind != KindRest {
		return fmt.Errorf("invalid window kind %q (want %q or %q)", w.Kind, KindTask, KindRest)
	}
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("window start and end are required")
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("window end %s must be after start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Store persists windows in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create schedule db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS windows (
			id TEXT PRIMARY KEY,
			chat_id INTEGER NOT NULL,
			kind TEXT NOT NULL,
			start_at_ms INTEGER NOT NULL,
			end_at_ms INTEGER NOT NULL,
			task_id TEXT NOT NULL DEFAULT '',
			task_name TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_windows_chat_end ON windows(chat_id, end_at_ms);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schedule db: %w", err)
		}
	}
	return nil
}

// Create stores a new window, assigning an id and creation time when absent.
func (s *Store) Create(ctx context.Context, w Window) (Window, error) {
	w.Kind = strings.ToLower(strings.TrimSpace(w.Kind))
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO windows
		(id, chat_id, kind, start_at_ms, end_at_ms, task_id, task_name, note, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.ChatID, w.Kind, w.Start.UnixMilli(), w.End.UnixMilli(),
		w.TaskID, w.TaskName, w.Note, w.CreatedAt.UnixMilli())
	if err != nil {
		return Window{}, fmt.Errorf("insert window: %w", err)
	}
	return normalize(w), nil
}

func (s *Store) Get(ctx context.Context, id string) (Window, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, chat_id, kind, start_at_ms, end_at_ms, task_id, task_name, note, created_at_ms
		FROM windows WHERE id = ?`, id)
	w, err := scanWindow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Window{}, ErrWindowNotFound
	}
	if err != nil {
		return Window{}, fmt.Errorf("get window %s: %w", id, err)
	}
	return w, nil
}

// Delete reports whether a window was removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM windows WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete window %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete window %s: %w", id, err)
	}
	return n > 0, nil
}

// ListByChat returns a chat's windows ordered by start time. Windows that
// already ended are skipped unless includePast is set.
func (s *Store) ListByChat(ctx context.Context, chatID int64, includePast bool) ([]Window, error) {
	query := `SELECT id, chat_id, kind, start_at_ms, end_at_ms, task_id, task_name, note, created_at_ms
		FROM windows WHERE chat_id = ?`
	args := []interface{}{chatID}
	if !includePast {
		query += ` AND end_at_ms > ?`
		args = append(args, s.now().UnixMilli())
	}
	query += ` ORDER BY start_at_ms, id`
	return s.query(ctx, query, args...)
}

// List returns windows across all chats ordered by end time.
func (s *Store) List(ctx context.Context, includePast bool) ([]Window, error) {
	query := `SELECT id, chat_id, kind, start_at_ms, end_at_ms, task_id, task_name, note, created_at_ms
		FROM windows`
	args := []interface{}{}
	if !includePast {
		query += ` WHERE end_at_ms > ?`
		args = append(args, s.now().UnixMilli())
	}
	query += ` ORDER BY end_at_ms, id`
	return s.query(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]Window, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close()

	out := []Window{}
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanWindow(row rowScanner) (Window, error) {
	var (
		w                        Window
		startMS, endMS, createMS int64
	)
	if err := row.Scan(&w.ID, &w.ChatID, &w.Kind, &startMS, &endMS, &w.TaskID, &w.TaskName, &w.Note, &createMS); err != nil {
		return Window{}, err
	}
	w.Start = time.UnixMilli(startMS).UTC()
	w.End = time.UnixMilli(endMS).UTC()
	w.CreatedAt = time.UnixMilli(createMS).UTC()
	return w, nil
}

// normalize truncates to the stored precision so returned values match reads.
func normalize(w Window) Window {
	w.Start = time.UnixMilli(w.Start.UnixMilli()).UTC()
	w.End = time.UnixMilli(w.End.UnixMilli()).UTC()
	w.CreatedAt = time.UnixMilli(w.CreatedAt.UnixMilli()).UTC()
	return w
}
