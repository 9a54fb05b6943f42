package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/utils"
)

const (
	blankLogContent = "空白日志"
	logMarker       = "#log"
	taskMarker      = "task="
)

type LogRecordResult struct {
	Message  string `json:"message"`
	TaskName string `json:"task_name,omitempty"`
	Stored   bool   `json:"stored"`
}

type Logbook struct {
	logs  *LogRepository
	tasks *TaskRepository
	now   func() time.Time
}

func NewLogbook(logs *LogRepository, tasks *TaskRepository) *Logbook {
	return &Logbook{logs: logs, tasks: tasks, now: time.Now}
}

// ParseLog strips the first #log marker and pulls out a task=<id> token.
func ParseLog(raw string) (content, taskID string) {
	content = strings.TrimSpace(strings.Replace(raw, logMarker, "", 1))
	for _, token := range strings.Fields(content) {
		if strings.HasPrefix(token, taskMarker) {
			taskID = strings.TrimPrefix(token, taskMarker)
			content = strings.TrimSpace(strings.Replace(content, token, "", 1))
			break
		}
	}
	if content == "" {
		content = blankLogContent
	}
	return content, taskID
}

// RecordLog handles free-form "#log ..." text.
func (l *Logbook) RecordLog(raw string) (LogRecordResult, error) {
	content, taskID := ParseLog(raw)
	return l.RecordStructuredLog(content, "", taskID)
}

// RecordStructuredLog attaches a log to a task matched by id, then by name.
// When neither matches, a task is created under the given name or a
// timestamped placeholder name.
func (l *Logbook) RecordStructuredLog(content, taskName, taskID string) (LogRecordResult, error) {
	normalized := strings.TrimSpace(content)
	if normalized == "" {
		normalized = blankLogContent
	}
	now := utils.ToBeijing(l.now())

	var (
		task  Task
		found bool
	)
	if taskID != "" {
		task, found = l.tasks.Get(taskID)
	}
	if !found && taskName != "" {
		task, found = l.tasks.FindByName(taskName)
	}
	if !found {
		name := strings.TrimSpace(taskName)
		if name == "" {
			name = "临时任务-" + now.Format("200601021504")
		}
		var err error
		task, err = l.tasks.EnsureTask(name, content)
		if err != nil {
			return LogRecordResult{}, fmt.Errorf("ensure task %q: %w", name, err)
		}
	}

	entry := LogEntry{
		ID:       uuid.NewString(),
		Name:     utils.FormatBeijing(now),
		Status:   "Captured",
		Content:  normalized,
		TaskID:   task.ID,
		TaskName: task.Name,
	}
	if err := l.logs.AddLocal(entry); err != nil {
		return LogRecordResult{}, fmt.Errorf("store log: %w", err)
	}
	return LogRecordResult{
		Message:  fmt.Sprintf("%s ｜ 任务: %s\n%s", entry.Name, task.Name, normalized),
		TaskName: task.Name,
		Stored:   true,
	}, nil
}

func (l *Logbook) DeleteLog(id string) (LogRecordResult, error) {
	ok, err := l.logs.Delete(id)
	if err != nil {
		return LogRecordResult{}, err
	}
	if !ok {
		return LogRecordResult{Message: "未找到对应的日志。"}, nil
	}
	return LogRecordResult{Message: "日志已删除。", Stored: true}, nil
}

// UpdateLog rewrites content and/or the linked task of an existing log.
func (l *Logbook) UpdateLog(id, content, taskName, taskID string) (LogRecordResult, error) {
	update := LogUpdate{}
	if c := strings.TrimSpace(content); c != "" {
		update.Content = &c
	}

	var (
		task  Task
		found bool
	)
	if taskID != "" {
		task, found = l.tasks.Get(taskID)
	}
	if !found && taskName != "" {
		task, found = l.tasks.FindByName(taskName)
	}
	switch {
	case found:
		update.TaskID, update.TaskName = &task.ID, &task.Name
	default:
		if taskID != "" {
			update.TaskID = &taskID
		}
		if taskName != "" {
			update.TaskName = &taskName
		}
	}

	entry, ok, err := l.logs.Update(id, update)
	if err != nil {
		return LogRecordResult{}, err
	}
	if !ok {
		return LogRecordResult{Message: "未找到对应的日志。"}, nil
	}
	label := entry.TaskName
	if label == "" {
		label = entry.TaskID
	}
	if label == "" {
		label = "未关联"
	}
	return LogRecordResult{
		Message:  fmt.Sprintf("日志已更新：%s ｜任务:%s", entry.Name, label),
		TaskName: entry.TaskName,
		Stored:   true,
	}, nil
}
