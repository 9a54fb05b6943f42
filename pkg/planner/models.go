// Package planner holds the task/project/log model the secretary reasons
// about, the JSON snapshot repositories behind it, and the read-side
// services (summary, status guard, logbook) used by tools and the fallback
// responder.
package planner

import "time"

type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type Task struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Priority     string   `json:"priority"`
	Status       string   `json:"status"`
	Content      string   `json:"content"`
	ProjectID    string   `json:"project_id,omitempty"`
	ProjectName  string   `json:"project_name"`
	DueDate      string   `json:"due_date,omitempty"`
	SubtaskNames []string `json:"subtask_names"`
	PageURL      string   `json:"page_url,omitempty"`
}

type LogEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Content  string `json:"content"`
	TaskID   string `json:"task_id,omitempty"`
	TaskName string `json:"task_name"`
}

// Intervention is a nudge produced by the status guard.
type Intervention struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
