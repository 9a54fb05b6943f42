package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/utils"
)

// Service couples the window store with the monitor so that every write
// path (tools, chat commands, CLI) keeps timers in step with storage.
// monitor may be nil when no process is delivering reminders.
type Service struct {
	store   *Store
	monitor *Monitor
}

func NewService(store *Store, monitor *Monitor) *Service {
	return &Service{store: store, monitor: monitor}
}

// Add stores w and arms its reminder.
func (s *Service) Add(ctx context.Context, w Window) (Window, error) {
	created, err := s.store.Create(ctx, w)
	if err != nil {
		return Window{}, err
	}
	if s.monitor != nil {
		s.monitor.Schedule(created)
	}
	logger.InfoCF("schedule", "Window added",
		map[string]interface{}{
			"window_id": created.ID,
			"chat_id":   created.ChatID,
			"kind":      created.Kind,
			"end":       created.End.Format(time.RFC3339),
		})
	return created, nil
}

func (s *Service) List(ctx context.Context, chatID int64, includePast bool) ([]Window, error) {
	return s.store.ListByChat(ctx, chatID, includePast)
}

// Cancel disarms the reminder and deletes the window. It reports false when
// the window was already gone, which includes a reminder that won the race.
func (s *Service) Cancel(ctx context.Context, id string) (bool, error) {
	if s.monitor != nil {
		s.monitor.Cancel(id)
	}
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		logger.InfoCF("schedule", "Window cancelled", map[string]interface{}{"window_id": id})
	}
	return deleted, nil
}

// ParseRange resolves start/end strings into absolute times. Each value may
// be RFC 3339, "2006-01-02 15:04" or "15:04"; the last two are Beijing time,
// and a bare clock time is taken on now's Beijing date. A clock-only end at
// or before start rolls over to the next day.
func ParseRange(start, end string, now time.Time) (time.Time, time.Time, error) {
	startAt, _, err := parseTimeValue(start, now)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
	}
	endAt, endClock, err := parseTimeValue(end, now)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end: %w", err)
	}
	if endClock && !endAt.After(startAt) {
		endAt = endAt.Add(24 * time.Hour)
	}
	return startAt, endAt, nil
}

func parseTimeValue(value string, now time.Time) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, fmt.Errorf("time is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, false, nil
	}
	if t, err := time.ParseInLocation(utils.BeijingLayout, value, utils.Beijing); err == nil {
		return t, false, nil
	}
	clock, err := time.ParseInLocation("15:04", value, utils.Beijing)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("unrecognized time %q", value)
	}
	today := utils.ToBeijing(now)
	return time.Date(today.Year(), today.Month(), today.Day(), clock.Hour(), clock.Minute(), 0, 0, utils.Beijing), true, nil
}
