package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/config"
)

const (
	defaultOpenAIAPIBase = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

func init() {
	RegisterBackend(ProviderOpenAI, Backend{
		Build:       newOpenAIProviderFromConfig,
		Validate:    validateOpenAIConfig,
		Credentials: openAICredentialStatus,
	})
}

// openAIProvider talks to the OpenAI Chat Completions API through the
// official SDK.
type openAIProvider struct {
	client       openai.Client
	defaultModel string
}

func validateOpenAIConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if strings.TrimSpace(cfg.Providers.OpenAI.APIKey) == "" {
		return fmt.Errorf("%w: OpenAI API key is required (set providers.openai.api_key or SECRETARY_PROVIDERS_OPENAI_API_KEY)", ErrNoProvider)
	}
	if _, err := newAPIKey(cfg.Providers.OpenAI.APIKey, "providers.openai.api_key").resolve(); err != nil {
		return err
	}
	return nil
}

func openAICredentialStatus(cfg *config.Config) (bool, string) {
	if validateOpenAIConfig(cfg) != nil {
		return false, ""
	}
	return true, authModeAPIKey
}

func newOpenAIProviderFromConfig(cfg *config.Config) (LLMProvider, error) {
	if err := validateOpenAIConfig(cfg); err != nil {
		return nil, err
	}

	apiBase := strings.TrimRight(strings.TrimSpace(cfg.Providers.OpenAI.APIBase), "/")
	if apiBase == "" {
		apiBase = defaultOpenAIAPIBase
	}
	opts := []option.RequestOption{
		option.WithBaseURL(apiBase + "/"),
		option.WithAPIKey(strings.TrimSpace(cfg.Providers.OpenAI.APIKey)),
		option.WithMaxRetries(0),
	}
	if org := strings.TrimSpace(cfg.Providers.OpenAI.Organization); org != "" {
		opts = append(opts, option.WithHeader("OpenAI-Organization", org))
	}
	if project := strings.TrimSpace(cfg.Providers.OpenAI.Project); project != "" {
		opts = append(opts, option.WithHeader("OpenAI-Project", project))
	}

	model := strings.TrimSpace(cfg.Agent.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAIProvider{
		client:       openai.NewClient(opts...),
		defaultModel: model,
	}, nil
}

func (p *openAIProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = p.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = toOpenAITools(tools)
	}
	if maxTokens, ok := optionAsInt(options, "max_tokens"); ok {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		params.Temperature = openai.Float(temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s API request failed: %s", ProviderOpenAI, augmentProviderError(ProviderOpenAI, err.Error()))
	}

	usage := &UsageInfo{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
	}
	if len(resp.Choices) == 0 {
		return &LLMResponse{FinishReason: "stop", Usage: usage}, nil
	}

	choice := resp.Choices[0]
	toolCalls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == "" {
			continue
		}
		toolCalls = append(toolCalls, ToolCall{
			ID:        tc.ID,
			Type:      "function",
			Function:  &FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
			Name:      tc.Function.Name,
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}

	return &LLMResponse{
		Content:      choice.Message.Content,
		ToolCalls:    toolCalls,
		FinishReason: string(choice.FinishReason),
		Usage:        usage,
	}, nil
}

func (p *openAIProvider) GetDefaultModel() string {
	return p.defaultModel
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(msg.Content)}
			}
			for _, tc := range msg.ToolCalls {
				name := tc.Name
				if tc.Function != nil && tc.Function.Name != "" {
					name = tc.Function.Name
				}
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      name,
							Arguments: tc.RawArguments(),
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case "tool":
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        tool.Function.Name,
			Description: openai.String(tool.Function.Description),
			Parameters:  openai.FunctionParameters(tool.Function.Parameters),
		}))
	}
	return out
}
