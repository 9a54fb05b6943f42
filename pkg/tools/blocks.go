package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/schedule"
)

// WindowPlanner stores time blocks and keeps their reminders armed.
type WindowPlanner interface {
	Add(ctx context.Context, w schedule.Window) (schedule.Window, error)
	List(ctx context.Context, chatID int64, includePast bool) ([]schedule.Window, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

// RegisterBlockTools adds schedule_block, list_blocks and cancel_block.
func RegisterBlockTools(r *ToolRegistry, windows WindowPlanner) {
	r.Register(NewScheduleBlockTool(windows))
	r.Register(&ListBlocksTool{windows: windows})
	r.Register(&CancelBlockTool{windows: windows})
}

type ScheduleBlockTool struct {
	windows WindowPlanner
	now     func() time.Time
}

func NewScheduleBlockTool(windows WindowPlanner) *ScheduleBlockTool {
	return &ScheduleBlockTool{windows: windows, now: time.Now}
}

func (t *ScheduleBlockTool) Name() string { return "schedule_block" }

func (t *ScheduleBlockTool) Description() string {
	return "Book a focus (task) or rest time block for the current chat. A reminder is sent when a task block ends."
}

func (t *ScheduleBlockTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"kind": map[string]interface{}{
				"type":        "string",
				"enum":        []string{schedule.KindTask, schedule.KindRest},
				"description": "task for a focus block, rest for a break",
			},
			"start": map[string]interface{}{
				"type":        "string",
				"description": "Start time: RFC 3339, 'YYYY-MM-DD HH:MM' or 'HH:MM' (Beijing time, today)",
			},
			"end": map[string]interface{}{
				"type":        "string",
				"description": "End time in the same formats as start",
			},
			"task_name": map[string]interface{}{
				"type":        "string",
				"description": "Optional: task the block is for",
			},
			"task_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional: id of the task the block is for",
			},
			"note": map[string]interface{}{
				"type":        "string",
				"description": "Optional: free-form note",
			},
		},
		"required": []string{"kind", "start", "end"},
	}
}

func (t *ScheduleBlockTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	chatID, ok := chatIDFromContext(ctx)
	if !ok {
		return ErrorResult("no chat in context")
	}
	start, end, err := schedule.ParseRange(stringArg(args, "start"), stringArg(args, "end"), t.now())
	if err != nil {
		return ErrorResult(err.Error())
	}
	w, err := t.windows.Add(ctx, schedule.Window{
		ChatID:   chatID,
		Kind:     strings.ToLower(stringArg(args, "kind")),
		Start:    start,
		End:      end,
		TaskID:   stringArg(args, "task_id"),
		TaskName: stringArg(args, "task_name"),
		Note:     stringArg(args, "note"),
	})
	if err != nil {
		return ErrorResult(fmt.Sprintf("schedule block: %v", err)).WithError(err)
	}
	return DataResult(w)
}

type ListBlocksTool struct {
	windows WindowPlanner
}

func (t *ListBlocksTool) Name() string { return "list_blocks" }

func (t *ListBlocksTool) Description() string {
	return "List the current chat's time blocks ordered by start time."
}

func (t *ListBlocksTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"include_past": map[string]interface{}{
				"type":        "boolean",
				"description": "Also return blocks that already ended (default: false)",
			},
		},
	}
}

func (t *ListBlocksTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	chatID, ok := chatIDFromContext(ctx)
	if !ok {
		return ErrorResult("no chat in context")
	}
	windows, err := t.windows.List(ctx, chatID, boolArg(args, "include_past"))
	if err != nil {
		return ErrorResult(fmt.Sprintf("list blocks: %v", err)).WithError(err)
	}
	return DataResult(windows)
}

type CancelBlockTool struct {
	windows WindowPlanner
}

func (t *CancelBlockTool) Name() string { return "cancel_block" }

func (t *CancelBlockTool) Description() string {
	return "Cancel one of the current chat's time blocks by id and drop its reminder."
}

func (t *CancelBlockTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"window_id": map[string]interface{}{
				"type":        "string",
				"description": "Id returned by schedule_block or list_blocks",
			},
		},
		"required": []string{"window_id"},
	}
}

func (t *CancelBlockTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	chatID, ok := chatIDFromContext(ctx)
	if !ok {
		return ErrorResult("no chat in context")
	}
	id := stringArg(args, "window_id")
	if id == "" {
		return ErrorResult("window_id is required")
	}
	windows, err := t.windows.List(ctx, chatID, true)
	if err != nil {
		return ErrorResult(fmt.Sprintf("list blocks: %v", err)).WithError(err)
	}
	owned := false
	for _, w := range windows {
		if w.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		return DataResult(map[string]bool{"cancelled": false})
	}
	cancelled, err := t.windows.Cancel(ctx, id)
	if err != nil {
		return ErrorResult(fmt.Sprintf("cancel block: %v", err)).WithError(err)
	}
	return DataResult(map[string]bool{"cancelled": cancelled})
}
