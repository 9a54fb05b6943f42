package planner

import (
	"encoding/json"
	"path/filepath"
	"sync"
)

// LogRepository merges the exported log snapshot with logs captured locally
// by the agent. Local additions only ever go to the agent file.
type LogRepository struct {
	primaryPath string
	customPath  string

	mu      sync.Mutex
	primary map[string]*LogEntry
	custom  map[string]*LogEntry
}

func NewLogRepository(dir string) *LogRepository {
	return &LogRepository{
		primaryPath: filepath.Join(dir, LogsFile),
		customPath:  filepath.Join(dir, AgentLogsFile),
	}
}

func loadLogs(path string) map[string]*LogEntry {
	entries := map[string]*LogEntry{}
	for id, payload := range readSnapshot(path) {
		entry := &LogEntry{}
		if err := json.Unmarshal(payload, entry); err != nil {
			continue
		}
		entry.ID = id
		entries[id] = entry
	}
	return entries
}

func (r *LogRepository) loadLocked() {
	if r.primary == nil {
		r.primary = loadLogs(r.primaryPath)
	}
	if r.custom == nil {
		r.custom = loadLogs(r.customPath)
	}
}

func (r *LogRepository) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = nil
	r.custom = nil
}

// List returns exported logs followed by local ones.
func (r *LogRepository) List() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()

	out := make([]LogEntry, 0, len(r.primary)+len(r.custom))
	for _, id := range sortedKeys(r.primary) {
		out = append(out, *r.primary[id])
	}
	for _, id := range sortedKeys(r.custom) {
		out = append(out, *r.custom[id])
	}
	return out
}

func (r *LogRepository) AddLocal(entry LogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()

	r.custom[entry.ID] = &entry
	if err := writeSnapshot(r.customPath, r.custom); err != nil {
		delete(r.custom, entry.ID)
		return err
	}
	return nil
}

// Delete removes a log from whichever snapshot holds it.
func (r *LogRepository) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()

	if _, ok := r.custom[id]; ok {
		delete(r.custom, id)
		return true, writeSnapshot(r.customPath, r.custom)
	}
	if _, ok := r.primary[id]; ok {
		delete(r.primary, id)
		return true, writeSnapshot(r.primaryPath, r.primary)
	}
	return false, nil
}

// LogUpdate lists the fields to change; nil leaves a field untouched.
type LogUpdate struct {
	Content  *string
	TaskID   *string
	TaskName *string
}

func (r *LogRepository) Update(id string, update LogUpdate) (LogEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadLocked()

	target, path := r.custom, r.customPath
	entry, ok := r.custom[id]
	if !ok {
		target, path = r.primary, r.primaryPath
		entry, ok = r.primary[id]
	}
	if !ok {
		return LogEntry{}, false, nil
	}

	if update.Content != nil && *update.Content != "" {
		entry.Content = *update.Content
	}
	if update.TaskID != nil {
		entry.TaskID = *update.TaskID
	}
	if update.TaskName != nil {
		entry.TaskName = *update.TaskName
	}
	if err := writeSnapshot(path, target); err != nil {
		return LogEntry{}, false, err
	}
	return *entry, true, nil
}
