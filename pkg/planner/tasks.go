package planner

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var closedStatuses = map[string]bool{
	"done":      true,
	"archived":  true,
	"cancelled": true,
	"canceled":  true,
}

type TaskRepository struct {
	path   string
	mu     sync.Mutex
	cache  map[string]*Task
	loaded bool
}

func NewTaskRepository(dir string) *TaskRepository {
	return &TaskRepository{path: filepath.Join(dir, TasksFile)}
}

func (r *TaskRepository) loadLocked() {
	if r.loaded {
		return
	}
	r.cache = map[string]*Task{}
	for id, payload := range readSnapshot(r.path) {
		task := &Task{}
		if err := json.Unmarshal(payload, task); err != nil {
			continue
		}
		task.ID = id
		r.cache[id] = task
	}
	r.loaded = true
}

// Refresh drops the cache so the next read picks up a new export.
func (r *TaskRepository) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
	r.cache = nil
}

// ListActive returns tasks that are not closed, in id order.
func (r *TaskRepository) ListActive() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()

	tasks := make([]Task, 0, len(r.cache))
	for _, id := range sortedKeys(r.cache) {
		task := r.cache[id]
		if closedStatuses[strings.ToLower(strings.TrimSpace(task.Status))] {
			continue
		}
		tasks = append(tasks, *task)
	}
	return tasks
}

func (r *TaskRepository) Get(id string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()
	task, ok := r.cache[strings.TrimSpace(id)]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// FindByName matches case-insensitively on the trimmed name.
func (r *TaskRepository) FindByName(name string) (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()
	return r.findByNameLocked(name)
}

func (r *TaskRepository) findByNameLocked(name string) (Task, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return Task{}, false
	}
	for _, id := range sortedKeys(r.cache) {
		task := r.cache[id]
		if strings.ToLower(strings.TrimSpace(task.Name)) == want {
			return *task, true
		}
	}
	return Task{}, false
}

// EnsureTask returns the task with the given name, creating a local one
// when no such task exists.
func (r *TaskRepository) EnsureTask(name, content string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()

	if task, ok := r.findByNameLocked(name); ok {
		return task, nil
	}
	task := &Task{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Priority:     "Medium",
		Status:       "Todo",
		Content:      content,
		ProjectName:  "",
		SubtaskNames: []string{},
	}
	r.cache[task.ID] = task
	if err := writeSnapshot(r.path, r.cache); err != nil {
		delete(r.cache, task.ID)
		return Task{}, err
	}
	return *task, nil
}
