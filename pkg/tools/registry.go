package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/providers"
)

// ToolRegistry holds the tools offered to the model, keyed by name.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds tool, replacing any tool with the same name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]interface{}) *ToolResult {
	return r.ExecuteWithContext(ctx, name, args, "", "")
}

// ExecuteWithContext runs a tool for one chat. It always returns a result:
// unknown tools, nil results and panics become error results.
func (r *ToolRegistry) ExecuteWithContext(ctx context.Context, name string, args map[string]interface{}, channel, chatID string) (result *ToolResult) {
	fields := map[string]interface{}{"tool": name, "chat_id": chatID}

	tool, ok := r.Get(name)
	if !ok {
		logger.ErrorCF("tool", "Tool not found", fields)
		return failure(fmt.Errorf("tool %q not found", name))
	}
	logger.InfoCF("tool", "Tool execution started", withField(fields, "args", redactArgs(args)))

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("tool", "Tool panicked", withField(fields, "panic", fmt.Sprint(rec)))
			result = failure(fmt.Errorf("tool %q panicked: %v", name, rec))
		}
	}()

	result = tool.Execute(WithInvocation(ctx, Invocation{Channel: channel, ChatID: chatID}), args)
	if result == nil {
		logger.ErrorCF("tool", "Tool returned nil result", fields)
		return failure(fmt.Errorf("tool %q returned nil result", name))
	}

	fields["duration_ms"] = time.Since(start).Milliseconds()
	if result.IsError {
		logger.ErrorCF("tool", "Tool execution failed", withField(fields, "error", result.ForLLM))
	} else {
		logger.InfoCF("tool", "Tool execution completed", withField(fields, "result_length", len(result.ForLLM)))
	}
	return result
}

func failure(err error) *ToolResult {
	return ErrorResult(err.Error()).WithError(err)
}

func withField(fields map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}

// ToProviderDefs returns the tool schemas in name order so requests are
// stable across calls.
func (r *ToolRegistry) ToProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providers.ToolDefinition, 0, len(r.tools))
	for _, name := range r.namesLocked() {
		defs = append(defs, definitionOf(r.tools[name]))
	}
	return defs
}

func (r *ToolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *ToolRegistry) namesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// GetSummaries renders "- `name` - description" lines for the system prompt.
func (r *ToolRegistry) GetSummaries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lines := make([]string, 0, len(r.tools))
	for _, name := range r.namesLocked() {
		lines = append(lines, fmt.Sprintf("- `%s` - %s", name, r.tools[name].Description()))
	}
	return lines
}
