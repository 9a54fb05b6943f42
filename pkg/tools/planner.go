package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/planner"
)

// TaskSource is the read side of the task planner.
type TaskSource interface {
	BuildTaskPayloads() []planner.TaskPayload
	BuildSummary(limit int) string
}

type StatusSource interface {
	Evaluate() []planner.Intervention
}

// LogWriter records, edits and removes task logs.
type LogWriter interface {
	RecordStructuredLog(content, taskName, taskID string) (planner.LogRecordResult, error)
	UpdateLog(id, content, taskName, taskID string) (planner.LogRecordResult, error)
	DeleteLog(id string) (planner.LogRecordResult, error)
}

// RegisterPlannerTools adds the task, status and log tools to r.
func RegisterPlannerTools(r *ToolRegistry, tasks TaskSource, status StatusSource, logs LogWriter) {
	if tasks != nil {
		r.Register(&ListTasksTool{tasks: tasks})
		r.Register(&TaskSummaryTool{tasks: tasks})
	}
	if status != nil {
		r.Register(&EvaluateStatusTool{status: status})
	}
	if logs != nil {
		r.Register(&RecordLogTool{logs: logs})
		r.Register(&UpdateLogTool{logs: logs})
		r.Register(&DeleteLogTool{logs: logs})
	}
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return strings.TrimSpace(v)
}

func intArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return def
}

func boolArg(args map[string]interface{}, key string) bool {
	switch v := args[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

type ListTasksTool struct {
	tasks TaskSource
}

func (t *ListTasksTool) Name() string { return "list_tasks" }

func (t *ListTasksTool) Description() string {
	return "List active tasks sorted by priority and due date, each with its most recent logs."
}

func (t *ListTasksTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum number of tasks to return (default: all)",
			},
		},
	}
}

func (t *ListTasksTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	payloads := t.tasks.BuildTaskPayloads()
	if limit := intArg(args, "limit", 0); limit > 0 && limit < len(payloads) {
		payloads = payloads[:limit]
	}
	return DataResult(payloads)
}

type TaskSummaryTool struct {
	tasks TaskSource
}

func (t *TaskSummaryTool) Name() string { return "task_summary" }

func (t *TaskSummaryTool) Description() string {
	return "Render today's task overview as a short Markdown list."
}

func (t *TaskSummaryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *TaskSummaryTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	return DataResult(map[string]string{"summary": t.tasks.BuildSummary(planner.DefaultSummaryLimit)})
}

type EvaluateStatusTool struct {
	status StatusSource
}

func (t *EvaluateStatusTool) Name() string { return "evaluate_status" }

func (t *EvaluateStatusTool) Description() string {
	return "Check active tasks for risks such as deadlines within 24 hours and return interventions."
}

func (t *EvaluateStatusTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *EvaluateStatusTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	interventions := t.status.Evaluate()
	if interventions == nil {
		interventions = []planner.Intervention{}
	}
	return DataResult(interventions)
}

type RecordLogTool struct {
	logs LogWriter
}

func (t *RecordLogTool) Name() string { return "record_log" }

func (t *RecordLogTool) Description() string {
	return "Record a progress log. Attach it to a task by id or name; an unknown task name creates that task."
}

func (t *RecordLogTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "What was done or observed",
			},
			"task_name": map[string]interface{}{
				"type":        "string",
				"description": "Optional: task name to attach the log to",
			},
			"task_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional: task id to attach the log to",
			},
		},
		"required": []string{"content"},
	}
}

func (t *RecordLogTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	content := stringArg(args, "content")
	if content == "" {
		return ErrorResult("content is required")
	}
	res, err := t.logs.RecordStructuredLog(content, stringArg(args, "task_name"), stringArg(args, "task_id"))
	if err != nil {
		return ErrorResult(fmt.Sprintf("record log: %v", err)).WithError(err)
	}
	return DataResult(res)
}

type UpdateLogTool struct {
	logs LogWriter
}

func (t *UpdateLogTool) Name() string { return "update_log" }

func (t *UpdateLogTool) Description() string {
	return "Edit an existing log: replace its content and/or move it to another task."
}

func (t *UpdateLogTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"log_id": map[string]interface{}{
				"type":        "string",
				"description": "Id of the log to edit",
			},
			"content": map[string]interface{}{
				"type":        "string",
				"description": "Optional: new content",
			},
			"task_name": map[string]interface{}{
				"type":        "string",
				"description": "Optional: new task name",
			},
			"task_id": map[string]interface{}{
				"type":        "string",
				"description": "Optional: new task id",
			},
		},
		"required": []string{"log_id"},
	}
}

func (t *UpdateLogTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	id := stringArg(args, "log_id")
	if id == "" {
		return ErrorResult("log_id is required")
	}
	res, err := t.logs.UpdateLog(id, stringArg(args, "content"), stringArg(args, "task_name"), stringArg(args, "task_id"))
	if err != nil {
		return ErrorResult(fmt.Sprintf("update log: %v", err)).WithError(err)
	}
	if !res.Stored {
		return ErrorResult(res.Message)
	}
	return DataResult(res)
}

type DeleteLogTool struct {
	logs LogWriter
}

func (t *DeleteLogTool) Name() string { return "delete_log" }

func (t *DeleteLogTool) Description() string {
	return "Delete a log by id."
}

func (t *DeleteLogTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"log_id": map[string]interface{}{
				"type":        "string",
				"description": "Id of the log to delete",
			},
		},
		"required": []string{"log_id"},
	}
}

func (t *DeleteLogTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	id := stringArg(args, "log_id")
	if id == "" {
		return ErrorResult("log_id is required")
	}
	res, err := t.logs.DeleteLog(id)
	if err != nil {
		return ErrorResult(fmt.Sprintf("delete log: %v", err)).WithError(err)
	}
	return DataResult(map[string]interface{}{"deleted": res.Stored, "message": res.Message})
}
