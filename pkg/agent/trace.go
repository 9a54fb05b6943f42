package agent

import (
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/providers"
)

const (
	ModeLLM      = "llm"
	ModeFallback = "fallback"

	StageInitial       = "llm_initial"
	StageToolExecution = "tool_execution"
	StageFinal         = "llm_final"
	StageFinalFailed   = "llm_final_failed"
	StageFallback      = "fallback"

	ReasonLLMDisabled   = "llm_disabled"
	ReasonLLMError      = "llm_error"
	ReasonLLMFinalError = "llm_final_error"

	ToolStatusOK      = "ok"
	ToolStatusError   = "error"
	ToolStatusMissing = "missing"
)

// Stage is one step of a turn. Exactly one of the payload fields is set,
// matching Kind.
type Stage struct {
	Kind        string          `json:"stage"`
	Initial     *InitialStage   `json:"initial,omitempty"`
	Tools       *ToolBatchStage `json:"tools,omitempty"`
	Final       *FinalStage     `json:"final,omitempty"`
	FinalFailed *FailedStage    `json:"final_failed,omitempty"`
	Fallback    *FallbackStage  `json:"fallback,omitempty"`
}

type InitialStage struct {
	Reply     string               `json:"reply"`
	ToolCalls []string             `json:"tool_calls,omitempty"`
	Usage     *providers.UsageInfo `json:"usage,omitempty"`
}

type ToolOutcome struct {
	Name   string `json:"name"`
	CallID string `json:"call_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ToolBatchStage struct {
	Results []ToolOutcome `json:"results"`
}

type FinalStage struct {
	Reply string               `json:"reply"`
	Usage *providers.UsageInfo `json:"usage,omitempty"`
}

type FailedStage struct {
	Error string `json:"error"`
}

type FallbackStage struct {
	Reply string `json:"reply"`
}

func initialStage(s InitialStage) Stage    { return Stage{Kind: StageInitial, Initial: &s} }
func toolStage(s ToolBatchStage) Stage     { return Stage{Kind: StageToolExecution, Tools: &s} }
func finalStage(s FinalStage) Stage        { return Stage{Kind: StageFinal, Final: &s} }
func finalFailedStage(s FailedStage) Stage { return Stage{Kind: StageFinalFailed, FinalFailed: &s} }
func fallbackStage(s FallbackStage) Stage  { return Stage{Kind: StageFallback, Fallback: &s} }

// RunRecord is what the run logger stores for one turn.
type RunRecord struct {
	UserText         string   `json:"user_text"`
	Mode             string   `json:"mode"`
	Reason           string   `json:"reason,omitempty"`
	Error            string   `json:"error,omitempty"`
	InitialToolCalls []string `json:"initial_tool_calls,omitempty"`
	Stages           []Stage  `json:"stages"`
	Responses        []string `json:"responses"`
}
