// Package logger provides component-tagged structured logging.
// Records are JSON lines written through log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	mu       sync.RWMutex
	levelVar = new(slog.LevelVar)
	base     = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar})
	return slog.New(handler).With("service", "secretary")
}

// SetOutput redirects all records to w. Used by tests and the chat REPL.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w)
}

func SetLevel(level LogLevel) {
	levelVar.Set(toSlogLevel(level))
}

func GetLevel() LogLevel {
	switch l := levelVar.Level(); {
	case l <= slog.LevelDebug:
		return DEBUG
	case l <= slog.LevelInfo:
		return INFO
	case l <= slog.LevelWarn:
		return WARN
	default:
		return ERROR
	}
}

// ParseLevel converts a config string to a LogLevel. Unknown values map to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logf(level LogLevel, component, message string, fields map[string]interface{}) {
	mu.RLock()
	l := base
	mu.RUnlock()

	lvl := toSlogLevel(level)
	if !l.Enabled(context.Background(), lvl) {
		return
	}
	attrs := make([]any, 0, 2+len(fields)*2)
	if component != "" {
		attrs = append(attrs, "component", component)
	}
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	l.Log(context.Background(), lvl, message, attrs...)
}

func Debug(message string) { logf(DEBUG, "", message, nil) }
func Info(message string)  { logf(INFO, "", message, nil) }
func Warn(message string)  { logf(WARN, "", message, nil) }
func Error(message string) { logf(ERROR, "", message, nil) }

func DebugC(component, message string) { logf(DEBUG, component, message, nil) }
func InfoC(component, message string)  { logf(INFO, component, message, nil) }
func WarnC(component, message string)  { logf(WARN, component, message, nil) }
func ErrorC(component, message string) { logf(ERROR, component, message, nil) }

func DebugCF(component, message string, fields map[string]interface{}) {
	logf(DEBUG, component, message, fields)
}

func InfoCF(component, message string, fields map[string]interface{}) {
	logf(INFO, component, message, fields)
}

func WarnCF(component, message string, fields map[string]interface{}) {
	logf(WARN, component, message, fields)
}

func ErrorCF(component, message string, fields map[string]interface{}) {
	logf(ERROR, component, message, fields)
}
