package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/utils"
)

// WindowSource is the slice of the window store the monitor needs.
type WindowSource interface {
	Get(ctx context.Context, id string) (Window, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, includePast bool) ([]Window, error)
}

// Notifier delivers a plain text message to a chat.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

const defaultMinDelay = time.Second

// timerEntry is one live countdown. claimed is set, under Monitor.mu, by the
// first of {expiry, Cancel} to reach it; the other side then backs off.
type timerEntry struct {
	timer   *time.Timer
	claimed bool
}

// Monitor keeps one countdown per task window and sends a reminder when the
// window ends.
type Monitor struct {
	source   WindowSource
	notifier Notifier

	mu     sync.Mutex
	timers map[string]*timerEntry

	inflight sync.WaitGroup
	ctx      context.Context
	stop     context.CancelFunc

	now      func() time.Time
	minDelay time.Duration
}

func NewMonitor(source WindowSource, notifier Notifier) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		source:   source,
		notifier: notifier,
		timers:   map[string]*timerEntry{},
		ctx:      ctx,
		stop:     cancel,
		now:      time.Now,
		minDelay: defaultMinDelay,
	}
}

// Bootstrap re-arms timers for every task window that has not ended yet.
func (m *Monitor) Bootstrap(ctx context.Context) error {
	windows, err := m.source.List(ctx, false)
	if err != nil {
		return fmt.Errorf("list windows: %w", err)
	}
	armed := 0
	for _, w := range windows {
		if w.Kind != KindTask {
			continue
		}
		m.Schedule(w)
		armed++
	}
	logger.InfoCF("schedule", "Session monitor bootstrapped",
		map[string]interface{}{
			"windows": len(windows),
			"armed":   armed,
		})
	return nil
}

// Schedule arms (or re-arms) the countdown for a task window. A window that
// has already ended is notified and deleted before Schedule returns.
func (m *Monitor) Schedule(w Window) {
	if w.Kind != KindTask {
		return
	}

	m.mu.Lock()
	m.cancelLocked(w.ID)
	now := m.now()
	if !w.End.After(now) {
		m.mu.Unlock()
		m.deliver(w)
		return
	}

	delay := w.End.Sub(now)
	if delay < m.minDelay {
		delay = m.minDelay
	}
	entry := &timerEntry{}
	entry.timer = time.AfterFunc(delay, func() { m.expire(w.ID, entry) })
	m.timers[w.ID] = entry
	m.mu.Unlock()

	logger.DebugCF("schedule", "Window timer armed",
		map[string]interface{}{
			"window_id": w.ID,
			"chat_id":   w.ChatID,
			"delay_ms":  delay.Milliseconds(),
		})
}

// Cancel stops the countdown for id. It returns false when there was no
// live countdown, including when the countdown has already begun firing.
func (m *Monitor) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelLocked(id)
}

func (m *Monitor) cancelLocked(id string) bool {
	entry, ok := m.timers[id]
	if !ok || entry.claimed {
		return false
	}
	entry.claimed = true
	entry.timer.Stop()
	delete(m.timers, id)
	return true
}

// Pending lists window ids with a live countdown.
func (m *Monitor) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.timers))
	for id, entry := range m.timers {
		if !entry.claimed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Stop disarms every countdown and waits for reminders already being sent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	for id, entry := range m.timers {
		if !entry.claimed {
			entry.claimed = true
			entry.timer.Stop()
		}
		delete(m.timers, id)
	}
	m.mu.Unlock()
	m.inflight.Wait()
	m.stop()
}

func (m *Monitor) expire(id string, entry *timerEntry) {
	m.mu.Lock()
	if m.timers[id] != entry || entry.claimed {
		m.mu.Unlock()
		return
	}
	entry.claimed = true
	m.inflight.Add(1)
	m.mu.Unlock()
	defer m.inflight.Done()

	w, err := m.source.Get(m.ctx, id)
	switch {
	case errors.Is(err, ErrWindowNotFound):
		logger.DebugCF("schedule", "Window gone before expiry",
			map[string]interface{}{"window_id": id})
	case err != nil:
		logger.WarnCF("schedule", "Window lookup failed at expiry",
			map[string]interface{}{
				"window_id": id,
				"error":     err.Error(),
			})
	default:
		m.deliver(w)
	}

	m.mu.Lock()
	if m.timers[id] == entry {
		delete(m.timers, id)
	}
	m.mu.Unlock()
}

// deliver sends the reminder and removes the window. It runs without m.mu.
func (m *Monitor) deliver(w Window) {
	if m.notifier != nil {
		if err := m.notifier.SendText(m.ctx, w.ChatID, ExpiryMessage(w)); err != nil {
			logger.ErrorCF("schedule", "Failed to send window reminder",
				map[string]interface{}{
					"window_id": w.ID,
					"chat_id":   w.ChatID,
					"error":     err.Error(),
				})
		}
	}
	if _, err := m.source.Delete(m.ctx, w.ID); err != nil {
		logger.ErrorCF("schedule", "Failed to delete expired window",
			map[string]interface{}{
				"window_id": w.ID,
				"error":     err.Error(),
			})
	}
}

// ExpiryMessage is the reminder sent when a focus window ends.
func ExpiryMessage(w Window) string {
	label := w.TaskName
	if label == "" {
		label = w.Note
	}
	if label == "" {
		label = "（未命名任务）"
	}
	return fmt.Sprintf("⏰ 任务专注窗口已结束：%s\n结束时间：%s\n请确认是否完成该任务，必要时重新规划新的时间段。",
		label, utils.FormatBeijing(w.End))
}

// FormatWindow renders a window as a one-line list item.
func FormatWindow(w Window) string {
	start := utils.ToBeijing(w.Start).Format("01-02 15:04")
	end := utils.ToBeijing(w.End).Format("01-02 15:04")
	prefix := "[休息]"
	if w.Kind == KindTask {
		label := w.TaskName
		if label == "" {
			label = w.TaskID
		}
		if label == "" {
			label = "未命名任务"
		}
		prefix = "[任务] " + label
	}
	note := ""
	if w.Note != "" {
		note = "｜备注:" + w.Note
	}
	return fmt.Sprintf("%s %s ~ %s%s", prefix, start, end, note)
}
