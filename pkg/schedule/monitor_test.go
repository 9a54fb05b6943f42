package schedule

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

type memorySource struct {
	mu      sync.Mutex
	windows map[string]Window
	deleted []string
}

func newMemorySource(windows ...Window) *memorySource {
	src := &memorySource{windows: map[string]Window{}}
	for _, w := range windows {
		src.windows[w.ID] = w
	}
	return src
}

func (s *memorySource) Get(ctx context.Context, id string) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[id]
	if !ok {
		return Window{}, ErrWindowNotFound
	}
	return w, nil
}

func (s *memorySource) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.windows[id]
	delete(s.windows, id)
	s.deleted = append(s.deleted, id)
	return ok, nil
}

func (s *memorySource) List(ctx context.Context, includePast bool) ([]Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Window{}
	for _, w := range s.windows {
		if includePast || w.End.After(time.Now()) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *memorySource) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.windows[id]
	return ok
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	chats []int64
	ch    chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan struct{}, 16)}
}

func (n *recordingNotifier) SendText(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	n.sent = append(n.sent, text)
	n.chats = append(n.chats, chatID)
	n.mu.Unlock()
	n.ch <- struct{}{}
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newTestMonitor(src WindowSource, n Notifier) *Monitor {
	m := NewMonitor(src, n)
	m.minDelay = 5 * time.Millisecond
	return m
}

func TestMonitor_ExpiredWindowFiresSynchronously(t *testing.T) {
	w := Window{ID: "w1", ChatID: 9, Kind: KindTask, End: time.Now().Add(-time.Minute), TaskName: "Deep work"}
	src := newMemorySource(w)
	notifier := newRecordingNotifier()
	m := newTestMonitor(src, notifier)
	defer m.Stop()

	m.Schedule(w)

	if notifier.count() != 1 {
		t.Fatalf("expected immediate notification, got %d", notifier.count())
	}
	if src.has("w1") {
		t.Fatalf("expected expired window to be deleted")
	}
	if pending := m.Pending(); len(pending) != 0 {
		t.Fatalf("expected no timer for expired window, got %v", pending)
	}
	if !strings.Contains(notifier.sent[0], "Deep work") || notifier.chats[0] != 9 {
		t.Fatalf("unexpected notification %q to %d", notifier.sent[0], notifier.chats[0])
	}
}

func TestMonitor_IgnoresRestWindows(t *testing.T) {
	w := Window{ID: "r1", ChatID: 9, Kind: KindRest, End: time.Now().Add(-time.Minute)}
	src := newMemorySource(w)
	notifier := newRecordingNotifier()
	m := newTestMonitor(src, notifier)
	defer m.Stop()

	m.Schedule(w)
	if notifier.count() != 0 || !src.has("r1") {
		t.Fatalf("rest windows must not be tracked")
	}
}

func TestMonitor_TimerFiresOnceAndClearsRegistry(t *testing.T) {
	w := Window{ID: "w2", ChatID: 3, Kind: KindTask, End: time.Now().Add(20 * time.Millisecond), Note: "stretch"}
	src := newMemorySource(w)
	notifier := newRecordingNotifier()
	m := newTestMonitor(src, notifier)
	defer m.Stop()

	m.Schedule(w)
	if pending := m.Pending(); len(pending) != 1 || pending[0] != "w2" {
		t.Fatalf("expected one pending timer, got %v", pending)
	}

	select {
	case <-notifier.ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not fire")
	}
	waitFor(t, func() bool { return len(m.Pending()) == 0 && !src.has("w2") })
	if notifier.count() != 1 {
		t.Fatalf("expected exactly one notification, got %d", notifier.count())
	}
	if !strings.Contains(notifier.sent[0], "stretch") {
		t.Fatalf("expected note as label, got %q", notifier.sent[0])
	}
}

func TestMonitor_WindowRemovedBeforeExpiryIsNoop(t *testing.T) {
	w := Window{ID: "w3", ChatID: 3, Kind: KindTask, End: time.Now().Add(10 * time.Millisecond)}
	src := newMemorySource(w)
	notifier := newRecordingNotifier()
	m := newTestMonitor(src, notifier)
	defer m.Stop()

	m.Schedule(w)
	_, _ = src.Delete(context.Background(), "w3")

	waitFor(t, func() bool { return len(m.Pending()) == 0 })
	time.Sleep(20 * time.Millisecond)
	if notifier.count() != 0 {
		t.Fatalf("expected no notification for vanished window, got %d", notifier.count())
	}
}

func TestMonitor_CancelBeforeExpiry(t *testing.T) {
	w := Window{ID: "w4", ChatID: 3, Kind: KindTask, End: time.Now().Add(time.Hour)}
	src := newMemorySource(w)
	notifier := newRecordingNotifier()
	m := newTestMonitor(src, notifier)
	defer m.Stop()

	m.Schedule(w)
	if !m.Cancel("w4") {
		t.Fatalf("expected cancel to win against a distant expiry")
	}
	if m.Cancel("w4") {
		t.Fatalf("second cancel must be a no-op")
	}
	if len(m.Pending()) != 0 || notifier.count() != 0 || !src.has("w4") {
		t.Fatalf("cancel must only drop the timer")
	}
}

func TestMonitor_CancelRacingExpiryHasOneWinner(t *testing.T) {
	for i := 0; i < 50; i++ {
		w := Window{ID: "race", ChatID: 1, Kind: KindTask, End: time.Now().Add(time.Millisecond)}
		src := newMemorySource(w)
		notifier := newRecordingNotifier()
		m := newTestMonitor(src, notifier)
		m.minDelay = time.Millisecond

		m.Schedule(w)
		time.Sleep(time.Duration(i%3) * time.Millisecond)
		cancelled := m.Cancel("race")
		m.Stop()

		fired := notifier.count()
		if cancelled && fired != 0 {
			t.Fatalf("iteration %d: cancel won but notification was sent", i)
		}
		if !cancelled && fired != 1 {
			t.Fatalf("iteration %d: expiry won but sent %d notifications", i, fired)
		}
		if !cancelled && src.has("race") {
			t.Fatalf("iteration %d: expiry won but window was kept", i)
		}
	}
}

func TestMonitor_RescheduleReplacesTimer(t *testing.T) {
	w := Window{ID: "w5", ChatID: 3, Kind: KindTask, End: time.Now().Add(time.Hour)}
	src := newMemorySource(w)
	notifier := newRecordingNotifier()
	m := newTestMonitor(src, notifier)
	defer m.Stop()

	m.Schedule(w)
	w.End = time.Now().Add(10 * time.Millisecond)
	m.Schedule(w)

	select {
	case <-notifier.ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("rescheduled timer did not fire")
	}
	waitFor(t, func() bool { return len(m.Pending()) == 0 })
	if notifier.count() != 1 {
		t.Fatalf("expected one notification after reschedule, got %d", notifier.count())
	}
}

func TestMonitor_BootstrapArmsFutureTaskWindows(t *testing.T) {
	src := newMemorySource(
		Window{ID: "a", ChatID: 1, Kind: KindTask, End: time.Now().Add(time.Hour)},
		Window{ID: "b", ChatID: 1, Kind: KindRest, End: time.Now().Add(time.Hour)},
		Window{ID: "c", ChatID: 1, Kind: KindTask, End: time.Now().Add(-time.Hour)},
	)
	m := newTestMonitor(src, newRecordingNotifier())
	defer m.Stop()

	if err := m.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if pending := m.Pending(); len(pending) != 1 || pending[0] != "a" {
		t.Fatalf("expected only the future task window to be armed, got %v", pending)
	}
}

func TestExpiryMessage(t *testing.T) {
	end := time.Date(2025, 3, 1, 6, 30, 0, 0, time.UTC)
	got := ExpiryMessage(Window{End: end})
	want := "⏰ 任务专注窗口已结束：（未命名任务）\n结束时间：2025-03-01 14:30\n请确认是否完成该任务，必要时重新规划新的时间段。"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}
