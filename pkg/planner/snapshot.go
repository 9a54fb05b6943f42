package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
)

// Snapshot files are JSON objects keyed by record id:
//
//	{"<id>": {"name": "...", ...}, ...}
//
// They are produced by the Notion export and, for agent-captured logs, by
// this process.
const (
	TasksFile     = "processed_tasks.json"
	ProjectsFile  = "processed_projects.json"
	LogsFile      = "processed_logs.json"
	AgentLogsFile = "agent_logs.json"
)

// readSnapshot loads a snapshot file. A missing or corrupt file is an
// empty snapshot.
func readSnapshot(path string) map[string]json.RawMessage {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WarnCF("planner", "Snapshot unreadable, treating as empty",
				map[string]interface{}{
					"path":  path,
					"error": err.Error(),
				})
		}
		return map[string]json.RawMessage{}
	}
	records := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &records); err != nil {
		logger.WarnCF("planner", "Snapshot corrupt, treating as empty",
			map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
		return map[string]json.RawMessage{}
	}
	return records
}

func writeSnapshot(path string, records interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	raw, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", path, err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
