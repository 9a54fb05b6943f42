package main

import (
	"errors"
	"fmt"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/agent"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/bus"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/config"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/history"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/planner"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/providers"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/runlog"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/schedule"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/tools"
)

// app holds the long-lived services one process needs.
type app struct {
	cfg *config.Config

	history *history.Store
	runs    *runlog.Logger

	logs    *planner.LogRepository
	summary *planner.TaskSummary
	guard   *planner.StatusGuard
	logbook *planner.Logbook

	windows  *schedule.Store
	monitor  *schedule.Monitor
	schedule *schedule.Service

	provider providers.LLMProvider
	registry *tools.ToolRegistry
}

// newApp opens every store under the configured data dir. notifier may be
// nil, in which case no reminders are delivered by this process.
func newApp(cfg *config.Config, notifier schedule.Notifier) (*app, error) {
	historyStore, err := history.NewStore(cfg.HistoryDir())
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	runs, err := runlog.New(cfg.RunLogDir())
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	windows, err := schedule.OpenStore(cfg.ScheduleDBPath())
	if err != nil {
		return nil, fmt.Errorf("open schedule store: %w", err)
	}

	dataDir := cfg.ProcessedDir()
	tasks := planner.NewTaskRepository(dataDir)
	projects := planner.NewProjectRepository(dataDir)
	logs := planner.NewLogRepository(dataDir)

	var monitor *schedule.Monitor
	if notifier != nil {
		monitor = schedule.NewMonitor(windows, notifier)
	}

	a := &app{
		cfg:      cfg,
		history:  historyStore,
		runs:     runs,
		logs:     logs,
		summary:  planner.NewTaskSummary(tasks, projects, logs),
		guard:    planner.NewStatusGuard(tasks),
		logbook:  planner.NewLogbook(logs, tasks),
		windows:  windows,
		monitor:  monitor,
		schedule: schedule.NewService(windows, monitor),
		registry: tools.NewToolRegistry(),
	}

	provider, err := providers.CreateProvider(cfg)
	switch {
	case errors.Is(err, providers.ErrNoProvider):
		logger.WarnCF("agent", "No model backend configured, replies use the fallback responder",
			map[string]interface{}{"provider": providers.ActiveProviderName(cfg), "reason": err.Error()})
	case err != nil:
		_ = windows.Close()
		return nil, fmt.Errorf("create provider: %w", err)
	default:
		a.provider = provider
	}

	tools.RegisterPlannerTools(a.registry, a.summary, a.guard, a.logbook)
	tools.RegisterBlockTools(a.registry, a.schedule)
	return a, nil
}

// newAgent builds an Agent that reads conversation context from source.
func (a *app) newAgent(source agent.HistorySource) *agent.Agent {
	contextBuilder := agent.NewContextBuilder(source, a.cfg.Agent.HistoryLimit, a.cfg.Agent.SystemPrompt)
	contextBuilder.SetToolsRegistry(a.registry)

	opts := agent.Options{
		Model:       a.cfg.Agent.Model,
		Temperature: a.cfg.Agent.Temperature,
		MaxTokens:   a.cfg.Agent.MaxTokens,
		Context:     contextBuilder,
		Tools:       a.registry,
		Fallback:    agent.NewFallbackResponder(a.summary, a.guard, a.logbook),
		RunLog:      a.runs,
	}
	if a.provider != nil {
		opts.Provider = a.provider
	}
	return agent.New(opts)
}

func (a *app) newLoop(msgBus *bus.MessageBus, ag *agent.Agent, clearer agent.HistoryClearer) *agent.AgentLoop {
	return agent.NewAgentLoop(msgBus, ag, agent.LoopOptions{
		History: clearer,
		Blocks:  a.schedule,
		Logs:    a.logs,
		Logbook: a.logbook,
	})
}

func (a *app) Close() error {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	return a.windows.Close()
}
