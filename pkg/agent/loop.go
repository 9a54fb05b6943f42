package agent

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/bus"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/planner"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/schedule"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/utils"
)

const (
	replyCleared        = "历史记录已归档，进入新的会话。"
	replyNoBlocks       = "暂无时间块安排。可以对我说“14:00-16:00 专注 Magnet 代码”或“13:00-14:00 想休息”。"
	replyBlocksDisabled = "未启用时间块功能。"
	replyLogsDisabled   = "日志功能暂不可用。"
	defaultLogsLimit    = 5
	maxLogsLimit        = 20
)

var helpLines = []string{
	"*指令列表*",
	"/help - 查看所有命令说明",
	"/tasks - 查看今日待办概览",
	"/focus - 检查即将到期的任务",
	"#log <内容> [task=<任务ID>] - 记录进展日志",
	"/blocks [cancel <序号>] - 查看或取消时间块（休息/任务）",
	"/logs [N] - 查看最近 N 条日志（默认 5）",
	"/logs delete <序号> - 删除最近一次 /logs 输出中的对应日志",
	"/clear - 归档历史记录，开始新的会话",
}

type HistoryClearer interface {
	ClearChat(chatID int64) error
}

// BlockLister is the part of the schedule service the /blocks command uses.
type BlockLister interface {
	List(ctx context.Context, chatID int64, includePast bool) ([]schedule.Window, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

type LogBrowser interface {
	List() []planner.LogEntry
}

type LogDeleter interface {
	DeleteLog(id string) (planner.LogRecordResult, error)
}

type LoopOptions struct {
	History HistoryClearer
	Blocks  BlockLister
	Logs    LogBrowser
	Logbook LogDeleter
}

// AgentLoop reads inbound chat messages, answers built-in commands itself
// and hands everything else to the Agent.
type AgentLoop struct {
	bus     *bus.MessageBus
	agent   *Agent
	history HistoryClearer
	blocks  BlockLister
	logs    LogBrowser
	logbook LogDeleter
	running atomic.Bool

	// Index-based cancel/delete refer to the list the chat saw last.
	mu            sync.Mutex
	blockSnapshot map[int64][]string
	logSnapshot   map[int64][]string
}

func NewAgentLoop(msgBus *bus.MessageBus, agent *Agent, opts LoopOptions) *AgentLoop {
	return &AgentLoop{
		bus:           msgBus,
		agent:         agent,
		history:       opts.History,
		blocks:        opts.Blocks,
		logs:          opts.Logs,
		logbook:       opts.Logbook,
		blockSnapshot: map[int64][]string{},
		logSnapshot:   map[int64][]string{},
	}
}

func (al *AgentLoop) Run(ctx context.Context) error {
	al.running.Store(true)

	for al.running.Load() {
		select {
		case <-ctx.Done():
			return nil
		default:
			msg, ok := al.bus.ConsumeInbound(ctx)
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				continue
			}

			chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
			if err != nil {
				logger.WarnCF("agent", "Dropping message with non-numeric chat id",
					map[string]interface{}{
						"channel": msg.Channel,
						"chat_id": msg.ChatID,
					})
				continue
			}

			for _, reply := range al.ProcessDirect(ctx, chatID, msg.Content) {
				al.bus.PublishOutbound(bus.OutboundMessage{
					Channel: msg.Channel,
					ChatID:  msg.ChatID,
					Content: reply,
				})
			}
		}
	}

	return nil
}

func (al *AgentLoop) Stop() {
	al.running.Store(false)
}

// ProcessDirect answers one message and returns the non-empty replies.
func (al *AgentLoop) ProcessDirect(ctx context.Context, chatID int64, content string) []string {
	logger.InfoCF("agent", fmt.Sprintf("Processing message from chat %d: %s", chatID, utils.Truncate(content, 80)),
		map[string]interface{}{
			"chat_id": chatID,
		})

	var replies []string
	if reply, handled := al.handleCommand(ctx, chatID, content); handled {
		replies = []string{reply}
	} else {
		replies = al.agent.Handle(ctx, chatID, content)
	}

	out := make([]string, 0, len(replies))
	for _, r := range replies {
		if strings.TrimSpace(r) != "" {
			out = append(out, r)
		}
	}
	return out
}

func (al *AgentLoop) handleCommand(ctx context.Context, chatID int64, content string) (string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") {
		return "", false
	}
	parts := strings.Fields(content)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch {
	case strings.HasPrefix(cmd, "/clear"):
		return al.handleClear(chatID), true
	case strings.HasPrefix(cmd, "/help"), cmd == "/start":
		return strings.Join(helpLines, "\n"), true
	case strings.HasPrefix(cmd, "/blocks"):
		return al.handleBlocks(ctx, chatID, args), true
	case strings.HasPrefix(cmd, "/logs"):
		return al.handleLogs(chatID, args), true
	}
	return "", false
}

func (al *AgentLoop) handleClear(chatID int64) string {
	if al.history != nil {
		if err := al.history.ClearChat(chatID); err != nil {
			logger.ErrorCF("agent", "Failed to archive chat history",
				map[string]interface{}{
					"chat_id": chatID,
					"error":   err.Error(),
				})
			return "归档历史记录失败：" + err.Error()
		}
	}
	al.mu.Lock()
	delete(al.blockSnapshot, chatID)
	delete(al.logSnapshot, chatID)
	al.mu.Unlock()
	return replyCleared
}

func (al *AgentLoop) handleBlocks(ctx context.Context, chatID int64, args []string) string {
	if al.blocks == nil {
		return replyBlocksDisabled
	}
	if len(args) >= 1 && strings.EqualFold(args[0], "cancel") {
		return al.cancelBlock(ctx, chatID, args[1:])
	}

	windows, err := al.blocks.List(ctx, chatID, false)
	if err != nil {
		logger.ErrorCF("agent", "Failed to list blocks",
			map[string]interface{}{
				"chat_id": chatID,
				"error":   err.Error(),
			})
		return "读取时间块失败：" + err.Error()
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	if len(windows) == 0 {
		delete(al.blockSnapshot, chatID)
		return replyNoBlocks
	}
	ids := make([]string, 0, len(windows))
	lines := []string{"时间块安排："}
	for idx, w := range windows {
		ids = append(ids, w.ID)
		lines = append(lines, fmt.Sprintf("%d. %s", idx+1, schedule.FormatWindow(w)))
	}
	al.blockSnapshot[chatID] = ids
	lines = append(lines, "", "使用 `/blocks cancel <序号>` 可撤销。")
	return strings.Join(lines, "\n")
}

func (al *AgentLoop) cancelBlock(ctx context.Context, chatID int64, args []string) string {
	al.mu.Lock()
	snapshot := al.blockSnapshot[chatID]
	al.mu.Unlock()
	if len(snapshot) == 0 {
		return "请先使用 /blocks 查看当前列表，再执行取消。"
	}
	if len(args) == 0 {
		return "用法：/blocks cancel 序号"
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return "用法：/blocks cancel 序号"
	}
	if index < 1 || index > len(snapshot) {
		return "序号超出范围，请重新 /blocks 查看。"
	}

	id := snapshot[index-1]
	ok, err := al.blocks.Cancel(ctx, id)
	if err != nil || !ok {
		if err != nil {
			logger.ErrorCF("agent", "Failed to cancel block",
				map[string]interface{}{
					"window_id": id,
					"error":     err.Error(),
				})
		}
		return "取消失败，时间块已过期或不存在。"
	}

	al.mu.Lock()
	remaining := make([]string, 0, len(snapshot))
	for _, other := range al.blockSnapshot[chatID] {
		if other != id {
			remaining = append(remaining, other)
		}
	}
	al.blockSnapshot[chatID] = remaining
	al.mu.Unlock()
	return fmt.Sprintf("已取消第 %d 条时间块安排。", index)
}

func (al *AgentLoop) handleLogs(chatID int64, args []string) string {
	if al.logs == nil {
		return replyLogsDisabled
	}
	if len(args) >= 1 && strings.EqualFold(args[0], "delete") {
		return al.deleteLog(chatID, args[1:])
	}

	limit := defaultLogsLimit
	for _, token := range args {
		if n, err := strconv.Atoi(token); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxLogsLimit {
		limit = maxLogsLimit
	}

	logs := al.logs.List()
	if len(logs) == 0 {
		return "当前没有日志记录。"
	}
	// Log names are Beijing timestamps, so name order is time order.
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Name > logs[j].Name })
	if len(logs) > limit {
		logs = logs[:limit]
	}

	ids := make([]string, 0, len(logs))
	var lines []string
	for idx, entry := range logs {
		ids = append(ids, entry.ID)
		label := entry.TaskName
		if label == "" {
			label = entry.TaskID
		}
		if label == "" {
			label = "未关联"
		}
		lines = append(lines, fmt.Sprintf("%d. %s ｜任务:%s", idx+1, entry.Name, label))
		content := 0
		for _, line := range strings.Split(entry.Content, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, "  · "+line)
				content++
			}
		}
		if content == 0 {
			lines = append(lines, "  · (无内容)")
		}
		lines = append(lines, "")
	}
	lines = append(lines, "如需操作：/logs delete <序号>")

	al.mu.Lock()
	al.logSnapshot[chatID] = ids
	al.mu.Unlock()
	return strings.Join(lines, "\n")
}

func (al *AgentLoop) deleteLog(chatID int64, args []string) string {
	al.mu.Lock()
	snapshot := al.logSnapshot[chatID]
	al.mu.Unlock()
	if len(snapshot) == 0 {
		return "请先使用 /logs 查看列表，再执行删除。"
	}
	if len(args) == 0 {
		return "用法：/logs delete 序号"
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return "用法：/logs delete 序号"
	}
	if index < 1 || index > len(snapshot) {
		return "序号超出范围，请重新 /logs 查看。"
	}
	if al.logbook == nil {
		return replyLogsDisabled
	}
	res, err := al.logbook.DeleteLog(snapshot[index-1])
	if err != nil {
		return "删除失败：" + err.Error()
	}
	if res.Stored {
		// Later indexes shift down, as if the listing were printed again.
		target := snapshot[index-1]
		al.mu.Lock()
		remaining := make([]string, 0, len(snapshot)-1)
		for _, id := range al.logSnapshot[chatID] {
			if id != target {
				remaining = append(remaining, id)
			}
		}
		al.logSnapshot[chatID] = remaining
		al.mu.Unlock()
	}
	return res.Message
}
