package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/config"
)

const (
	defaultAnthropicAPIBase   = "https://api.anthropic.com"
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 2048
)

func init() {
	RegisterBackend(ProviderAnthropic, Backend{
		Build:       newAnthropicProviderFromConfig,
		Validate:    validateAnthropicConfig,
		Credentials: anthropicCredentialStatus,
	})
}

// anthropicProvider maps the role/tool_calls message shape onto the
// Messages API content blocks.
type anthropicProvider struct {
	client       anthropic.Client
	defaultModel string
}

func validateAnthropicConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.Anthropic.APIKey) == "" {
		return fmt.Errorf("%w: Anthropic API key is required (set providers.anthropic.api_key or SECRETARY_PROVIDERS_ANTHROPIC_API_KEY)", ErrNoProvider)
	}
	if _, err := newAPIKey(cfg.Providers.Anthropic.APIKey, "providers.anthropic.api_key").resolve(); err != nil {
		return err
	}
	return nil
}

func anthropicCredentialStatus(cfg *config.Config) (bool, string) {
	if validateAnthropicConfig(cfg) != nil {
		return false, ""
	}
	return true, authModeAPIKey
}

func newAnthropicProviderFromConfig(cfg *config.Config) (LLMProvider, error) {
	if err := validateAnthropicConfig(cfg); err != nil {
		return nil, err
	}
	apiBase := strings.TrimRight(strings.TrimSpace(cfg.Providers.Anthropic.APIBase), "/")
	if apiBase == "" {
		apiBase = defaultAnthropicAPIBase
	}
	model := strings.TrimSpace(cfg.Agent.Model)
	if model == "" || strings.Contains(model, "/") {
		// OpenRouter style ids such as "openai/gpt-4o-mini" are meaningless here.
		model = defaultAnthropicModel
	}
	client := anthropic.NewClient(
		option.WithBaseURL(apiBase+"/"),
		option.WithAPIKey(strings.TrimSpace(cfg.Providers.Anthropic.APIKey)),
		option.WithMaxRetries(0),
	)
	return &anthropicProvider{client: client, defaultModel: model}, nil
}

func (p *anthropicProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = p.defaultModel
	}

	system, converted := toAnthropicMessages(messages)
	maxTokens := defaultAnthropicMaxTokens
	if v, ok := optionAsInt(options, "max_tokens"); ok && v > 0 {
		maxTokens = v
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  converted,
		MaxTokens: int64(maxTokens),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		params.Temperature = anthropic.Float(temperature)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s API request failed: %s", ProviderAnthropic, augmentProviderError(ProviderAnthropic, err.Error()))
	}

	var text strings.Builder
	toolCalls := []ToolCall{}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(variant.Text)
		case anthropic.ToolUseBlock:
			raw := string(variant.Input)
			toolCalls = append(toolCalls, ToolCall{
				ID:        variant.ID,
				Type:      "function",
				Function:  &FunctionCall{Name: variant.Name, Arguments: raw},
				Name:      variant.Name,
				Arguments: decodeArguments(raw),
			})
		}
	}

	in := int(msg.Usage.InputTokens)
	out := int(msg.Usage.OutputTokens)
	return &LLMResponse{
		Content:      text.String(),
		ToolCalls:    toolCalls,
		FinishReason: string(msg.StopReason),
		Usage:        &UsageInfo{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
	}, nil
}

func (p *anthropicProvider) GetDefaultModel() string {
	return p.defaultModel
}

// toAnthropicMessages lifts system messages into the system prompt and folds
// consecutive tool results into a single user turn.
func toAnthropicMessages(messages []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(messages))
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if msg.Content != "" {
				system = append(system, anthropic.TextBlockParam{Text: msg.Content})
			}
		case "tool":
			isError := strings.HasPrefix(strings.TrimSpace(msg.Content), `{"error"`)
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, isError))
		case "assistant":
			flush()
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				name := tc.Name
				if tc.Function != nil && tc.Function.Name != "" {
					name = tc.Function.Name
				}
				var input interface{} = tc.Arguments
				if raw := tc.RawArguments(); raw != "" && json.Valid([]byte(raw)) {
					input = json.RawMessage(raw)
				}
				if input == nil {
					input = map[string]interface{}{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			if msg.Content != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	flush()
	return system, out
}

func toAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := tool.Function.Parameters["properties"]; ok {
			schema.Properties = props
		}
		switch required := tool.Function.Parameters["required"].(type) {
		case []string:
			schema.Required = required
		case []interface{}:
			for _, r := range required {
				if s, ok := r.(string); ok {
					schema.Required = append(schema.Required, s)
				}
			}
		}
		param := anthropic.ToolUnionParamOfTool(schema, tool.Function.Name)
		if tool.Function.Description != "" && param.OfTool != nil {
			param.OfTool.Description = anthropic.String(tool.Function.Description)
		}
		out = append(out, param)
	}
	return out
}
