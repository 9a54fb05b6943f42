package tools

import "encoding/json"

// ToolResult is what a tool hands back to the agent.
//
// Data carries the structured value that is serialized into the model
// observation. ForLLM is the textual form used when Data is nil and for
// logging.
type ToolResult struct {
	ForLLM  string      `json:"for_llm"`
	Data    interface{} `json:"data,omitempty"`
	IsError bool        `json:"is_error"`
	Err     error       `json:"-"`
}

func NewToolResult(forLLM string) *ToolResult {
	return &ToolResult{ForLLM: forLLM}
}

// DataResult wraps a structured value. ForLLM holds its JSON rendering.
func DataResult(data interface{}) *ToolResult {
	text := ""
	if encoded, err := json.Marshal(data); err == nil {
		text = string(encoded)
	}
	return &ToolResult{ForLLM: text, Data: data}
}

func ErrorResult(message string) *ToolResult {
	return &ToolResult{ForLLM: message, IsError: true}
}

// WithError attaches the underlying error for logging. It is never sent to the model.
func (r *ToolResult) WithError(err error) *ToolResult {
	r.Err = err
	return r
}

// Observation renders the result as the JSON text placed in a tool message.
// Errors become {"error": "..."}; structured data is marshaled as-is so time
// values come out as RFC 3339.
func (r *ToolResult) Observation() string {
	if r == nil {
		return `{"error":"empty tool result"}`
	}
	var payload interface{}
	switch {
	case r.IsError:
		payload = map[string]string{"error": r.ForLLM}
	case r.Data != nil:
		payload = r.Data
	default:
		payload = r.ForLLM
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		fallback, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(fallback)
	}
	return string(encoded)
}
