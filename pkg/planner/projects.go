package planner

import (
	"encoding/json"
	"path/filepath"
	"sync"
)

type ProjectRepository struct {
	path   string
	mu     sync.Mutex
	cache  map[string]Project
	loaded bool
}

func NewProjectRepository(dir string) *ProjectRepository {
	return &ProjectRepository{path: filepath.Join(dir, ProjectsFile)}
}

func (r *ProjectRepository) ListActive() []Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		r.cache = map[string]Project{}
		for id, payload := range readSnapshot(r.path) {
			var project Project
			if err := json.Unmarshal(payload, &project); err != nil {
				continue
			}
			project.ID = id
			r.cache[id] = project
		}
		r.loaded = true
	}

	projects := make([]Project, 0, len(r.cache))
	for _, id := range sortedKeys(r.cache) {
		projects = append(projects, r.cache[id])
	}
	return projects
}

func (r *ProjectRepository) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
	r.cache = nil
}
