// Secretary - Telegram task secretary bot
// License: MIT
//
// Copyright (c) 2026 Secretary contributors

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/providers"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/tools"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/utils"
)

const emptyReplyPlaceholder = "（模型未返回内容）"

// MessageBuilder produces the transcript for one model call.
type MessageBuilder interface {
	BuildMessages(chatID int64, userText string) []providers.Message
}

type RunLogger interface {
	Log(chatID int64, payload interface{}) error
}

type Options struct {
	// Provider is nil when no backend is configured; every turn then goes
	// to the fallback responder.
	Provider    providers.LLMProvider
	Model       string
	Temperature float64
	MaxTokens   int
	Context     MessageBuilder
	Tools       *tools.ToolRegistry
	Fallback    *FallbackResponder
	RunLog      RunLogger
}

// Agent runs one turn per user message: a model call, at most one batch of
// tool calls executed in order, and one follow-up model call.
type Agent struct {
	provider    providers.LLMProvider
	model       string
	temperature float64
	maxTokens   int
	context     MessageBuilder
	tools       *tools.ToolRegistry
	fallback    *FallbackResponder
	runlog      RunLogger
}

func New(opts Options) *Agent {
	registry := opts.Tools
	if registry == nil {
		registry = tools.NewToolRegistry()
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewFallbackResponder(nil, nil, nil)
	}
	model := opts.Model
	if model == "" && opts.Provider != nil {
		model = opts.Provider.GetDefaultModel()
	}
	return &Agent{
		provider:    opts.Provider,
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		context:     opts.Context,
		tools:       registry,
		fallback:    fallback,
		runlog:      opts.RunLog,
	}
}

// Enabled reports whether a model backend is configured.
func (a *Agent) Enabled() bool {
	return a.provider != nil
}

func (a *Agent) Model() string {
	return a.model
}

// Handle returns at least one reply for text. It never fails: backend and
// tool errors are folded into the replies.
func (a *Agent) Handle(ctx context.Context, chatID int64, text string) (replies []string) {
	record := &RunRecord{UserText: text}
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorCF("agent", "Turn panicked", map[string]interface{}{
				"chat_id": chatID,
				"panic":   fmt.Sprint(rec),
			})
			replies = a.respondFallback(record, ReasonLLMError, fmt.Sprint(rec), text)
		}
		record.Responses = replies
		a.logRun(chatID, record)
	}()

	logger.InfoCF("agent", fmt.Sprintf("Processing message: %s", utils.Truncate(text, 80)),
		map[string]interface{}{
			"chat_id": chatID,
			"enabled": a.Enabled(),
		})

	if a.provider == nil {
		return a.respondFallback(record, ReasonLLMDisabled, "", text)
	}

	var messages []providers.Message
	if a.context != nil {
		messages = a.context.BuildMessages(chatID, text)
	} else {
		messages = []providers.Message{{Role: "user", Content: text}}
	}
	toolDefs := a.tools.ToProviderDefs()

	first, err := a.chat(ctx, messages, toolDefs, 1)
	if err != nil {
		return a.respondFallback(record, ReasonLLMError, err.Error(), text)
	}
	record.Mode = ModeLLM

	calls := normalizeToolCalls(first.ToolCalls)
	names := make([]string, 0, len(calls))
	for _, tc := range calls {
		names = append(names, tc.Name)
	}
	record.Stages = append(record.Stages, initialStage(InitialStage{
		Reply:     first.Content,
		ToolCalls: names,
		Usage:     first.Usage,
	}))

	if len(calls) == 0 {
		return []string{replyOrPlaceholder(first.Content)}
	}
	record.InitialToolCalls = names

	logger.InfoCF("agent", "LLM requested tool calls",
		map[string]interface{}{
			"chat_id": chatID,
			"tools":   names,
			"count":   len(calls),
		})

	messages = append(messages, providers.Message{
		Role:      "assistant",
		Content:   first.Content,
		ToolCalls: calls,
	})
	observations, batch := a.executeTools(ctx, chatID, calls)
	messages = append(messages, observations...)
	record.Stages = append(record.Stages, toolStage(batch))

	second, err := a.chat(ctx, messages, toolDefs, 2)
	if err != nil {
		record.Reason = ReasonLLMFinalError
		record.Error = err.Error()
		record.Stages = append(record.Stages, finalFailedStage(FailedStage{Error: err.Error()}))
		return []string{partialFailureReply(batch)}
	}
	if len(second.ToolCalls) > 0 {
		logger.WarnCF("agent", "Ignoring tool calls requested in follow-up response",
			map[string]interface{}{
				"chat_id": chatID,
				"count":   len(second.ToolCalls),
			})
	}
	record.Stages = append(record.Stages, finalStage(FinalStage{Reply: second.Content, Usage: second.Usage}))
	return []string{replyOrPlaceholder(second.Content)}
}

func (a *Agent) chat(ctx context.Context, messages []providers.Message, toolDefs []providers.ToolDefinition, round int) (*providers.LLMResponse, error) {
	opts := map[string]interface{}{
		"temperature": a.temperature,
	}
	if a.maxTokens > 0 {
		opts["max_tokens"] = a.maxTokens
	}

	logger.DebugCF("agent", "LLM request",
		map[string]interface{}{
			"round":          round,
			"model":          a.model,
			"messages_count": len(messages),
			"tools_count":    len(toolDefs),
			"messages_json":  formatMessagesForLog(messages),
		})

	resp, err := a.provider.Chat(ctx, messages, toolDefs, a.model, opts)
	if err != nil {
		logger.ErrorCF("agent", "LLM call failed",
			map[string]interface{}{
				"round": round,
				"error": err.Error(),
			})
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("provider returned no response")
	}
	return resp, nil
}

// executeTools runs calls one after another. Each call gets its own tool
// message; a failure only affects that call's observation.
func (a *Agent) executeTools(ctx context.Context, chatID int64, calls []providers.ToolCall) ([]providers.Message, ToolBatchStage) {
	batch := ToolBatchStage{Results: make([]ToolOutcome, 0, len(calls))}
	observations := make([]providers.Message, 0, len(calls))
	chat := strconv.FormatInt(chatID, 10)

	for _, tc := range calls {
		outcome := ToolOutcome{Name: tc.Name, CallID: tc.ID}
		var content string

		if _, ok := a.tools.Get(tc.Name); !ok {
			outcome.Status = ToolStatusMissing
			outcome.Error = "未知工具 " + tc.Name
			content = errorObservation(outcome.Error)
			logger.WarnCF("agent", "Model requested unknown tool",
				map[string]interface{}{"tool": tc.Name})
		} else {
			logger.InfoCF("agent", fmt.Sprintf("Tool call: %s(%s)", tc.Name, utils.Truncate(tc.RawArguments(), 200)),
				map[string]interface{}{"tool": tc.Name})
			result := a.tools.ExecuteWithContext(ctx, tc.Name, tc.Arguments, "telegram", chat)
			content = result.Observation()
			if result.IsError {
				outcome.Status = ToolStatusError
				outcome.Error = result.ForLLM
			} else {
				outcome.Status = ToolStatusOK
			}
		}

		batch.Results = append(batch.Results, outcome)
		observations = append(observations, providers.Message{
			Role:       "tool",
			Content:    content,
			ToolCallID: tc.ID,
			Name:       tc.Name,
		})
	}
	return observations, batch
}

func (a *Agent) respondFallback(record *RunRecord, reason, errText, text string) []string {
	reply := a.fallback.Respond(text)
	record.Mode = ModeFallback
	record.Reason = reason
	record.Error = errText
	record.Stages = append(record.Stages, fallbackStage(FallbackStage{Reply: reply}))
	return []string{reply}
}

// logRun writes record to the run log. A failing or panicking sink only
// costs the record; the turn's replies are unaffected.
func (a *Agent) logRun(chatID int64, record *RunRecord) {
	if a.runlog == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.WarnCF("agent", "Run log panicked",
				map[string]interface{}{
					"chat_id": chatID,
					"panic":   fmt.Sprint(rec),
				})
		}
	}()
	if record.Stages == nil {
		record.Stages = []Stage{}
	}
	if err := a.runlog.Log(chatID, record); err != nil {
		logger.WarnCF("agent", "Failed to write run log",
			map[string]interface{}{
				"chat_id": chatID,
				"error":   err.Error(),
			})
	}
}

// normalizeToolCalls fills in names, ids and the wire form. A missing id is
// derived from the call's position so the same response always maps to the
// same ids.
func normalizeToolCalls(calls []providers.ToolCall) []providers.ToolCall {
	out := make([]providers.ToolCall, 0, len(calls))
	for idx, tc := range calls {
		if tc.Name == "" && tc.Function != nil {
			tc.Name = tc.Function.Name
		}
		if tc.ID == "" {
			tc.ID = fmt.Sprintf("call-%d", idx)
		}
		raw := tc.RawArguments()
		if tc.Arguments == nil {
			tc.Arguments = map[string]interface{}{}
			if strings.TrimSpace(raw) != "" {
				if err := json.Unmarshal([]byte(raw), &tc.Arguments); err != nil {
					tc.Arguments = map[string]interface{}{"raw": raw}
				}
			}
		}
		if raw == "" {
			encoded, _ := json.Marshal(tc.Arguments)
			raw = string(encoded)
		}
		tc.Type = "function"
		tc.Function = &providers.FunctionCall{Name: tc.Name, Arguments: raw}
		out = append(out, tc)
	}
	return out
}

func replyOrPlaceholder(content string) string {
	if strings.TrimSpace(content) == "" {
		return emptyReplyPlaceholder
	}
	return content
}

func errorObservation(msg string) string {
	encoded, _ := json.Marshal(map[string]string{"error": msg})
	return string(encoded)
}

func partialFailureReply(batch ToolBatchStage) string {
	ran := make([]string, 0, len(batch.Results))
	for _, r := range batch.Results {
		if r.Status == ToolStatusMissing {
			continue
		}
		ran = append(ran, r.Name)
	}
	if len(ran) == 0 {
		return "模型暂时不可用，本轮请求未完成，请稍后重试。"
	}
	return fmt.Sprintf("模型暂时不可用，未能生成最终回复。以下操作已经执行：%s。请用 /tasks 或 /blocks 核对结果，避免重复操作。",
		strings.Join(ran, "、"))
}

func formatMessagesForLog(messages []providers.Message) string {
	var sb strings.Builder
	sb.WriteString("[\n")
	for i, msg := range messages {
		sb.WriteString(fmt.Sprintf("  [%d] Role: %s\n", i, msg.Role))
		for _, tc := range msg.ToolCalls {
			sb.WriteString(fmt.Sprintf("      ToolCall: %s %s(%s)\n", tc.ID, tc.Name, utils.Truncate(tc.RawArguments(), 200)))
		}
		if msg.Content != "" {
			sb.WriteString(fmt.Sprintf("  Content: %s\n", utils.Truncate(msg.Content, 200)))
		}
		if msg.ToolCallID != "" {
			sb.WriteString(fmt.Sprintf("  ToolCallID: %s\n", msg.ToolCallID))
		}
	}
	sb.WriteString("]")
	return sb.String()
}
