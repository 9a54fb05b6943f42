package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/history"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/providers"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/tools"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/utils"
)

const defaultPersona = `你是用户的私人秘书，负责跟进 Notion 中的任务、项目和日志。
说话简洁直接，用中文回复。需要查询或修改任务、日志、时间块时必须调用工具，不要假装已经完成。`

// HistorySource is the read side of the history store.
type HistorySource interface {
	GetHistory(chatID int64, limit int) []history.Entry
}

type ContextBuilder struct {
	history HistorySource
	limit   int
	persona string
	tools   *tools.ToolRegistry
	now     func() time.Time
}

func NewContextBuilder(source HistorySource, limit int, persona string) *ContextBuilder {
	if strings.TrimSpace(persona) == "" {
		persona = defaultPersona
	}
	return &ContextBuilder{
		history: source,
		limit:   limit,
		persona: persona,
		now:     time.Now,
	}
}

// SetToolsRegistry lets the system prompt list the available tools.
func (cb *ContextBuilder) SetToolsRegistry(registry *tools.ToolRegistry) {
	cb.tools = registry
}

func (cb *ContextBuilder) BuildSystemPrompt() string {
	var sb strings.Builder
	sb.WriteString(cb.persona)
	sb.WriteString(fmt.Sprintf("\n\n当前时间（北京时间）：%s", utils.FormatBeijing(cb.now())))
	if cb.tools != nil {
		if summaries := cb.tools.GetSummaries(); len(summaries) > 0 {
			sb.WriteString("\n\n## 可用工具\n")
			for _, s := range summaries {
				sb.WriteString(s)
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

// BuildMessages assembles system prompt, stored history and the new user
// text. The user text is usually already the newest history entry, in which
// case it is not repeated.
func (cb *ContextBuilder) BuildMessages(chatID int64, userText string) []providers.Message {
	messages := []providers.Message{{Role: "system", Content: cb.BuildSystemPrompt()}}

	var entries []history.Entry
	if cb.history != nil {
		entries = cb.history.GetHistory(chatID, cb.limit)
	}
	for _, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		role := "user"
		if e.Direction == history.DirectionBot {
			role = "assistant"
		}
		messages = append(messages, providers.Message{Role: role, Content: e.Text})
	}

	if !lastIsUserText(messages, userText) && strings.TrimSpace(userText) != "" {
		messages = append(messages, providers.Message{Role: "user", Content: userText})
	}

	logger.DebugCF("agent", "Context built",
		map[string]interface{}{
			"chat_id":         chatID,
			"history_entries": len(entries),
			"messages":        len(messages),
		})
	return messages
}

func lastIsUserText(messages []providers.Message, text string) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	return last.Role == "user" && strings.TrimSpace(last.Content) == strings.TrimSpace(text)
}
