package schedule

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "schedule.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_CreateGetDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

	created, err := store.Create(ctx, Window{
		ChatID: 7, Kind: "Task", Start: start, End: start.Add(time.Hour), TaskName: "Write report",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, KindTask, created.Kind)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	removed, err := store.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrWindowNotFound)

	removed, err = store.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStore_RejectsInvalidWindows(t *testing.T) {
	store := openTestStore(t)
	start := time.Now()

	_, err := store.Create(context.Background(), Window{ChatID: 1, Kind: "nap", Start: start, End: start.Add(time.Minute)})
	assert.Error(t, err)
	_, err = store.Create(context.Background(), Window{ChatID: 1, Kind: KindRest, Start: start, End: start})
	assert.Error(t, err)
}

func TestStore_ListFiltersPastAndChat(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	mk := func(chat int64, kind string, startOffset, endOffset time.Duration) Window {
		w, err := store.Create(ctx, Window{ChatID: chat, Kind: kind, Start: now.Add(startOffset), End: now.Add(endOffset)})
		require.NoError(t, err)
		return w
	}
	past := mk(1, KindTask, -2*time.Hour, -time.Hour)
	later := mk(1, KindRest, 2*time.Hour, 3*time.Hour)
	sooner := mk(1, KindTask, time.Hour, 90*time.Minute)
	other := mk(2, KindTask, time.Hour, 2*time.Hour)

	upcoming, err := store.ListByChat(ctx, 1, false)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, sooner.ID, upcoming[0].ID)
	assert.Equal(t, later.ID, upcoming[1].ID)

	all, err := store.ListByChat(ctx, 1, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, past.ID, all[0].ID)

	global, err := store.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, global, 3)
	assert.Equal(t, sooner.ID, global[0].ID)
	assert.Contains(t, []string{global[1].ID, global[2].ID}, other.ID)
}
