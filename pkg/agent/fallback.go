package agent

import (
	"strings"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/planner"
)

const (
	fallbackNothingPending = "暂无异常，继续推进。"
	fallbackGuidance       = "记录已收到。当前为 fallback 模式，请使用 /tasks、/focus 或 #log。"
)

type SummaryProvider interface {
	BuildTodaySummary() string
}

type StatusProvider interface {
	Evaluate() []planner.Intervention
}

type LogRecorder interface {
	RecordLog(raw string) (planner.LogRecordResult, error)
}

// FallbackResponder answers without a model by matching command prefixes.
type FallbackResponder struct {
	summary SummaryProvider
	status  StatusProvider
	logbook LogRecorder
}

func NewFallbackResponder(summary SummaryProvider, status StatusProvider, logbook LogRecorder) *FallbackResponder {
	return &FallbackResponder{summary: summary, status: status, logbook: logbook}
}

// Respond never fails; collaborator errors turn into guidance text.
func (f *FallbackResponder) Respond(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(lowered, "/tasks"), strings.HasPrefix(lowered, "/today"):
		if f.summary == nil {
			return fallbackGuidance
		}
		return f.summary.BuildTodaySummary()
	case strings.HasPrefix(lowered, "/focus"):
		if f.status == nil {
			return fallbackNothingPending
		}
		interventions := f.status.Evaluate()
		if len(interventions) == 0 {
			return fallbackNothingPending
		}
		lines := make([]string, 0, len(interventions))
		for _, item := range interventions {
			lines = append(lines, "- "+item.Message)
		}
		return strings.Join(lines, "\n")
	case strings.HasPrefix(lowered, "#log"):
		if f.logbook == nil {
			return fallbackGuidance
		}
		res, err := f.logbook.RecordLog(strings.TrimSpace(text))
		if err != nil {
			logger.ErrorCF("agent", "Fallback log recording failed", map[string]interface{}{
				"error": err.Error(),
			})
			return "日志记录失败：" + err.Error()
		}
		return res.Message
	default:
		return fallbackGuidance
	}
}
