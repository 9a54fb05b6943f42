package planner

import (
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultSummaryLimit = 10
	EmptySummary        = "_今日暂无待办，保持节奏，找事做。_"
)

var priorityOrder = map[string]int{
	"Urgent": 0,
	"High":   1,
	"Medium": 2,
	"Low":    3,
}

func priorityRank(p string) int {
	if rank, ok := priorityOrder[p]; ok {
		return rank
	}
	return 99
}

// SortTasks orders by priority, then due date (missing last), then name.
func SortTasks(tasks []Task) []Task {
	sorted := append([]Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ra, rb := priorityRank(a.Priority), priorityRank(b.Priority); ra != rb {
			return ra < rb
		}
		da, db := dueKey(a.DueDate), dueKey(b.DueDate)
		if da != db {
			return da < db
		}
		return a.Name < b.Name
	})
	return sorted
}

func dueKey(due string) string {
	if strings.TrimSpace(due) == "" {
		return "9999-99-99"
	}
	return due
}

// TaskLog is the compact log view attached to task payloads.
type TaskLog struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Content string `json:"content"`
}

// TaskPayload is the structured task view handed to the model.
type TaskPayload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Priority  string    `json:"priority"`
	Status    string    `json:"status"`
	DueDate   string    `json:"due_date"`
	ProjectID string    `json:"project_id"`
	Project   string    `json:"project"`
	Content   string    `json:"content"`
	Subtasks  []string  `json:"subtasks"`
	URL       string    `json:"url"`
	Logs      []TaskLog `json:"logs"`
}

type TaskSummary struct {
	tasks    *TaskRepository
	projects *ProjectRepository
	logs     *LogRepository
}

func NewTaskSummary(tasks *TaskRepository, projects *ProjectRepository, logs *LogRepository) *TaskSummary {
	return &TaskSummary{tasks: tasks, projects: projects, logs: logs}
}

func (s *TaskSummary) logsByTask() map[string][]TaskLog {
	out := map[string][]TaskLog{}
	if s.logs == nil {
		return out
	}
	for _, entry := range s.logs.List() {
		if entry.TaskID == "" {
			continue
		}
		out[entry.TaskID] = append(out[entry.TaskID], TaskLog{
			ID:      entry.ID,
			Name:    entry.Name,
			Status:  entry.Status,
			Content: entry.Content,
		})
	}
	return out
}

// BuildTodaySummary renders the top active tasks as Markdown list items.
func (s *TaskSummary) BuildTodaySummary() string {
	return s.BuildSummary(DefaultSummaryLimit)
}

func (s *TaskSummary) BuildSummary(limit int) string {
	tasks := s.tasks.ListActive()
	if len(tasks) == 0 {
		return EmptySummary
	}
	if limit <= 0 {
		limit = DefaultSummaryLimit
	}
	logs := s.logsByTask()

	sorted := SortTasks(tasks)
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	lines := make([]string, 0, len(sorted))
	for _, task := range sorted {
		due := task.DueDate
		if due == "" {
			due = "未设"
		}
		logText := ""
		if taskLogs := logs[task.ID]; len(taskLogs) > 0 {
			if latest := taskLogs[len(taskLogs)-1].Content; latest != "" {
				logText = "｜最新：" + firstRunes(latest, 60)
			}
		}
		lines = append(lines, fmt.Sprintf("- [%s](%s) ｜状态:%s ｜优先级:%s ｜截止:%s %s\n  内容: %s",
			task.Name, taskURL(task), task.Status, task.Priority, due, logText, task.Content))
	}
	return strings.Join(lines, "\n")
}

// BuildTaskPayloads returns every active task, sorted, with its logs.
func (s *TaskSummary) BuildTaskPayloads() []TaskPayload {
	logs := s.logsByTask()
	tasks := SortTasks(s.tasks.ListActive())
	payloads := make([]TaskPayload, 0, len(tasks))
	for _, task := range tasks {
		taskLogs := logs[task.ID]
		if taskLogs == nil {
			taskLogs = []TaskLog{}
		}
		subtasks := task.SubtaskNames
		if subtasks == nil {
			subtasks = []string{}
		}
		payloads = append(payloads, TaskPayload{
			ID:        task.ID,
			Name:      task.Name,
			Priority:  task.Priority,
			Status:    task.Status,
			DueDate:   task.DueDate,
			ProjectID: task.ProjectID,
			Project:   task.ProjectName,
			Content:   task.Content,
			Subtasks:  subtasks,
			URL:       task.PageURL,
			Logs:      taskLogs,
		})
	}
	return payloads
}

// ListByProject groups active tasks by project name, preferring the name
// from the project snapshot.
func (s *TaskSummary) ListByProject() map[string][]Task {
	names := map[string]string{}
	if s.projects != nil {
		for _, p := range s.projects.ListActive() {
			names[p.ID] = p.Name
		}
	}
	grouped := map[string][]Task{}
	for _, task := range s.tasks.ListActive() {
		project := task.ProjectName
		if name, ok := names[task.ProjectID]; ok && task.ProjectID != "" {
			project = name
		}
		grouped[project] = append(grouped[project], task)
	}
	for project, bucket := range grouped {
		grouped[project] = SortTasks(bucket)
	}
	return grouped
}

func taskURL(task Task) string {
	if task.PageURL != "" {
		return task.PageURL
	}
	return "https://www.notion.so/" + strings.ReplaceAll(task.ID, "-", "")
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
