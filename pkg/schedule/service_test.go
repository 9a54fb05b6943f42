package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/utils"
)

func TestService_AddArmsAndCancelDisarms(t *testing.T) {
	store := openTestStore(t)
	notifier := newRecordingNotifier()
	monitor := newTestMonitor(store, notifier)
	defer monitor.Stop()
	svc := NewService(store, monitor)
	ctx := context.Background()

	now := time.Now()
	w, err := svc.Add(ctx, Window{ChatID: 3, Kind: KindTask, Start: now, End: now.Add(time.Hour), TaskName: "Review"})
	require.NoError(t, err)
	assert.Equal(t, []string{w.ID}, monitor.Pending())

	rest, err := svc.Add(ctx, Window{ChatID: 3, Kind: KindRest, Start: now, End: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.NotContains(t, monitor.Pending(), rest.ID)

	listed, err := svc.List(ctx, 3, false)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	ok, err := svc.Cancel(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, monitor.Pending())

	ok, err = svc.Cancel(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, notifier.count())
}

func TestService_WorksWithoutMonitor(t *testing.T) {
	svc := NewService(openTestStore(t), nil)
	now := time.Now()
	w, err := svc.Add(context.Background(), Window{ChatID: 1, Kind: KindTask, Start: now, End: now.Add(time.Minute)})
	require.NoError(t, err)
	ok, err := svc.Cancel(context.Background(), w.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseRange(t *testing.T) {
	now := time.Date(2026, 4, 10, 2, 0, 0, 0, time.UTC) // 10:00 Beijing

	start, end, err := ParseRange("14:00", "16:00", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-10 14:00", utils.FormatBeijing(start))
	assert.Equal(t, "2026-04-10 16:00", utils.FormatBeijing(end))

	start, end, err = ParseRange("23:00", "01:00", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-10 23:00", utils.FormatBeijing(start))
	assert.Equal(t, "2026-04-11 01:00", utils.FormatBeijing(end))

	start, end, err = ParseRange("2026-04-12T09:00:00+08:00", "2026-04-12 11:30", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-04-12 09:00", utils.FormatBeijing(start))
	assert.Equal(t, "2026-04-12 11:30", utils.FormatBeijing(end))

	_, _, err = ParseRange("soon", "16:00", now)
	assert.Error(t, err)
	_, _, err = ParseRange("14:00", "", now)
	assert.Error(t, err)
}
