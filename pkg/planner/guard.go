package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/utils"
)

const dueSoonWindow = 24 * time.Hour

var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// StatusGuard flags tasks that are about to slip.
type StatusGuard struct {
	tasks *TaskRepository
	now   func() time.Time
}

func NewStatusGuard(tasks *TaskRepository) *StatusGuard {
	return &StatusGuard{tasks: tasks, now: time.Now}
}

// Evaluate returns one warning per open task due within the next 24 hours,
// overdue tasks included.
func (g *StatusGuard) Evaluate() []Intervention {
	now := g.now()
	interventions := []Intervention{}
	for _, task := range g.tasks.ListActive() {
		if task.DueDate == "" || strings.EqualFold(task.Status, "Done") {
			continue
		}
		due, ok := parseDueDate(task.DueDate)
		if !ok {
			continue
		}
		if due.Sub(now) <= dueSoonWindow {
			interventions = append(interventions, Intervention{
				Level:     "warning",
				Message:   fmt.Sprintf("任务《%s》即将到期，别再拖。", task.Name),
				Reason:    "due_soon",
				CreatedAt: now.UTC(),
			})
		}
	}
	return interventions
}

// parseDueDate reads ISO dates; values without an offset are Beijing time.
func parseDueDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range dueDateLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339 {
			t, err = time.Parse(layout, value)
		} else {
			t, err = time.ParseInLocation(layout, value, utils.Beijing)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
