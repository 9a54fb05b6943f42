package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/planner"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/schedule"
)

type fakeTasks struct{}

func (fakeTasks) BuildTaskPayloads() []planner.TaskPayload {
	return []planner.TaskPayload{{ID: "t1", Name: "Write report"}, {ID: "t2", Name: "Email"}}
}
func (fakeTasks) BuildSummary(limit int) string { return "- Write report" }

type fakeStatus struct{ at time.Time }

func (f fakeStatus) Evaluate() []planner.Intervention {
	return []planner.Intervention{{Level: "warning", Message: "任务《Write report》即将到期，别再拖。", CreatedAt: f.at}}
}

type fakeLogs struct {
	recorded []string
	failWith error
}

func (f *fakeLogs) RecordStructuredLog(content, taskName, taskID string) (planner.LogRecordResult, error) {
	if f.failWith != nil {
		return planner.LogRecordResult{}, f.failWith
	}
	f.recorded = append(f.recorded, content+"|"+taskName+"|"+taskID)
	return planner.LogRecordResult{Message: "ok", TaskName: taskName, Stored: true}, nil
}
func (f *fakeLogs) UpdateLog(id, content, taskName, taskID string) (planner.LogRecordResult, error) {
	if id != "log-1" {
		return planner.LogRecordResult{Message: "未找到对应的日志。"}, nil
	}
	return planner.LogRecordResult{Message: "日志已更新", Stored: true}, nil
}
func (f *fakeLogs) DeleteLog(id string) (planner.LogRecordResult, error) {
	return planner.LogRecordResult{Message: "日志已删除。", Stored: id == "log-1"}, nil
}

type fakeWindows struct {
	windows   []schedule.Window
	cancelled []string
}

func (f *fakeWindows) Add(ctx context.Context, w schedule.Window) (schedule.Window, error) {
	if err := w.Validate(); err != nil {
		return schedule.Window{}, err
	}
	w.ID = "w" + string(rune('1'+len(f.windows)))
	f.windows = append(f.windows, w)
	return w, nil
}
func (f *fakeWindows) List(ctx context.Context, chatID int64, includePast bool) ([]schedule.Window, error) {
	var out []schedule.Window
	for _, w := range f.windows {
		if w.ChatID == chatID {
			out = append(out, w)
		}
	}
	return out, nil
}
func (f *fakeWindows) Cancel(ctx context.Context, id string) (bool, error) {
	f.cancelled = append(f.cancelled, id)
	return true, nil
}

func newDomainRegistry(logs *fakeLogs, windows *fakeWindows) *ToolRegistry {
	r := NewToolRegistry()
	RegisterPlannerTools(r, fakeTasks{}, fakeStatus{at: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}, logs)
	RegisterBlockTools(r, windows)
	return r
}

func TestRegisterDomainTools(t *testing.T) {
	r := newDomainRegistry(&fakeLogs{}, &fakeWindows{})
	assert.Equal(t, []string{
		"cancel_block", "delete_log", "evaluate_status", "list_blocks", "list_tasks",
		"record_log", "schedule_block", "task_summary", "update_log",
	}, r.List())
}

func TestListTasksTool_Limit(t *testing.T) {
	r := newDomainRegistry(&fakeLogs{}, &fakeWindows{})
	res := r.Execute(context.Background(), "list_tasks", map[string]interface{}{"limit": float64(1)})
	require.False(t, res.IsError)

	var got []planner.TaskPayload
	require.NoError(t, json.Unmarshal([]byte(res.Observation()), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].ID)
}

func TestEvaluateStatusTool_SerializesTimesAsRFC3339(t *testing.T) {
	r := newDomainRegistry(&fakeLogs{}, &fakeWindows{})
	obs := r.Execute(context.Background(), "evaluate_status", nil).Observation()
	assert.Contains(t, obs, `"created_at":"2026-01-02T03:04:05Z"`)
}

func TestRecordLogTool(t *testing.T) {
	logs := &fakeLogs{}
	r := newDomainRegistry(logs, &fakeWindows{})

	res := r.Execute(context.Background(), "record_log", map[string]interface{}{"content": " drafted intro ", "task_name": "Write report"})
	require.False(t, res.IsError, res.ForLLM)
	assert.Equal(t, []string{"drafted intro|Write report|"}, logs.recorded)

	res = r.Execute(context.Background(), "record_log", map[string]interface{}{})
	assert.True(t, res.IsError)
	assert.Equal(t, `{"error":"content is required"}`, res.Observation())

	logs.failWith = errors.New("disk full")
	res = r.Execute(context.Background(), "record_log", map[string]interface{}{"content": "x"})
	assert.True(t, res.IsError)
	assert.ErrorIs(t, res.Err, logs.failWith)
}

func TestUpdateAndDeleteLogTools(t *testing.T) {
	r := newDomainRegistry(&fakeLogs{}, &fakeWindows{})

	assert.False(t, r.Execute(context.Background(), "update_log", map[string]interface{}{"log_id": "log-1", "content": "x"}).IsError)
	missing := r.Execute(context.Background(), "update_log", map[string]interface{}{"log_id": "nope"})
	assert.True(t, missing.IsError)

	obs := r.Execute(context.Background(), "delete_log", map[string]interface{}{"log_id": "log-1"}).Observation()
	assert.Contains(t, obs, `"deleted":true`)
}

func TestScheduleBlockTool_UsesChatFromContext(t *testing.T) {
	windows := &fakeWindows{}
	r := NewToolRegistry()
	tool := NewScheduleBlockTool(windows)
	tool.now = func() time.Time { return time.Date(2026, 4, 10, 2, 0, 0, 0, time.UTC) }
	r.Register(tool)

	res := r.ExecuteWithContext(context.Background(), "schedule_block", map[string]interface{}{
		"kind": "Task", "start": "14:00", "end": "16:00", "task_name": "Magnet",
	}, "telegram", "77")
	require.False(t, res.IsError, res.ForLLM)
	require.Len(t, windows.windows, 1)
	w := windows.windows[0]
	assert.Equal(t, int64(77), w.ChatID)
	assert.Equal(t, schedule.KindTask, w.Kind)
	assert.Equal(t, 2*time.Hour, w.End.Sub(w.Start))
	assert.True(t, strings.Contains(res.Observation(), `"task_name":"Magnet"`))

	noChat := r.Execute(context.Background(), "schedule_block", map[string]interface{}{"kind": "task", "start": "14:00", "end": "15:00"})
	assert.True(t, noChat.IsError)

	badKind := r.ExecuteWithContext(context.Background(), "schedule_block", map[string]interface{}{
		"kind": "nap", "start": "14:00", "end": "15:00",
	}, "telegram", "77")
	assert.True(t, badKind.IsError)
}

func TestCancelBlockTool_OnlyCancelsOwnWindows(t *testing.T) {
	windows := &fakeWindows{windows: []schedule.Window{{ID: "mine", ChatID: 1}, {ID: "theirs", ChatID: 2}}}
	r := newDomainRegistry(&fakeLogs{}, windows)

	obs := r.ExecuteWithContext(context.Background(), "cancel_block", map[string]interface{}{"window_id": "theirs"}, "telegram", "1").Observation()
	assert.Equal(t, `{"cancelled":false}`, obs)
	assert.Empty(t, windows.cancelled)

	obs = r.ExecuteWithContext(context.Background(), "cancel_block", map[string]interface{}{"window_id": "mine"}, "telegram", "1").Observation()
	assert.Equal(t, `{"cancelled":true}`, obs)
	assert.Equal(t, []string{"mine"}, windows.cancelled)

	listed := r.ExecuteWithContext(context.Background(), "list_blocks", nil, "telegram", "2").Observation()
	assert.Contains(t, listed, `"id":"theirs"`)
	assert.NotContains(t, listed, `"id":"mine"`)
}
