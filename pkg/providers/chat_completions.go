package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const compatRequestTimeout = 120 * time.Second

// compatEndpoint describes an OpenAI-compatible /chat/completions server.
type compatEndpoint struct {
	Name    string
	BaseURL string
	Model   string
	Proxy   string
	Auth    AuthStrategy
	Headers map[string]string
}

// compatProvider speaks the chat completions wire format over plain HTTP.
// OpenRouter and Ollama both sit behind it.
type compatProvider struct {
	endpoint compatEndpoint
	http     *http.Client
}

type compatRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

type compatToolCall struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Function *FunctionCall `json:"function"`
}

type compatResponse struct {
	Choices []struct {
		Message struct {
			// Content is a string for most servers and a list of parts for some.
			Content   json.RawMessage  `json:"content"`
			ToolCalls []compatToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *UsageInfo `json:"usage"`
}

type compatErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func newCompatProvider(ep compatEndpoint) (*compatProvider, error) {
	ep.Name = strings.ToLower(strings.TrimSpace(ep.Name))
	if ep.Name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	ep.BaseURL = strings.TrimRight(strings.TrimSpace(ep.BaseURL), "/")
	if ep.BaseURL == "" {
		return nil, fmt.Errorf("%s API base not configured", ep.Name)
	}
	if ep.Auth == nil {
		return nil, fmt.Errorf("%s auth is not configured", ep.Name)
	}
	ep.Model = strings.TrimSpace(ep.Model)

	client := &http.Client{Timeout: compatRequestTimeout}
	if proxy := strings.TrimSpace(ep.Proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse %s proxy: %w", ep.Name, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	headers := make(map[string]string, len(ep.Headers))
	for k, v := range ep.Headers {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k != "" && v != "" {
			headers[k] = v
		}
	}
	ep.Headers = headers

	return &compatProvider{endpoint: ep, http: client}, nil
}

func (p *compatProvider) GetDefaultModel() string {
	return p.endpoint.Model
}

func (p *compatProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	name := p.endpoint.Name
	settings := readCallSettings(options)

	payload := compatRequest{
		Model:       strings.TrimSpace(model),
		Messages:    messages,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
	}
	if payload.Model == "" {
		payload.Model = p.endpoint.Model
	}
	if len(tools) > 0 {
		payload.Tools = tools
		payload.ToolChoice = "auto"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if err := p.endpoint.Auth.Apply(ctx, req); err != nil {
		return nil, fmt.Errorf("apply %s auth: %w", name, err)
	}
	for k, v := range p.endpoint.Headers {
		req.Header.Set(k, v)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send %s request: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", name, err)
	}
	if resp.StatusCode/100 != 2 {
		msg := augmentProviderError(name, compatErrorMessage(raw))
		return nil, fmt.Errorf("%s API request failed: status=%d error=%s", name, resp.StatusCode, msg)
	}

	out, err := decodeCompatResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", name, err)
	}
	return out, nil
}

func decodeCompatResponse(raw []byte) (*LLMResponse, error) {
	var decoded compatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	out := &LLMResponse{FinishReason: "stop", Usage: decoded.Usage}
	if out.Usage == nil {
		out.Usage = &UsageInfo{}
	}
	if len(decoded.Choices) == 0 {
		return out, nil
	}

	choice := decoded.Choices[0]
	out.Content = compatContentText(choice.Message.Content)
	out.FinishReason = choice.FinishReason
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function == nil {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Type:      tc.Type,
			Function:  &FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
			Name:      tc.Function.Name,
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}
	return out, nil
}

func compatContentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var parts []struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		} else {
			sb.WriteString(part.Content)
		}
	}
	return sb.String()
}

func compatErrorMessage(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "empty response body"
	}
	var body compatErrorBody
	if json.Unmarshal(raw, &body) == nil {
		if msg := strings.TrimSpace(body.Error.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg
		}
	}
	const maxBody = 2000
	if len(trimmed) > maxBody {
		return trimmed[:maxBody] + "..."
	}
	return trimmed
}
