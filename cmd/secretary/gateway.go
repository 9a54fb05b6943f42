package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/bus"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/channels"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/config"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/cron"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/health"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/telegram"
)

const shutdownTimeout = 10 * time.Second

// newTelegramClient builds the Bot API client with every configured mirror
// attached.
func newTelegramClient(cfg *config.Config) (*telegram.Client, error) {
	tg := cfg.Channels.Telegram
	client, err := telegram.NewClient(telegram.Options{
		Token:       tg.Token,
		APIBase:     tg.APIBase,
		ParseMode:   tg.ParseMode,
		SendRate:    tg.SendRate,
		PollTimeout: tg.PollTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set channels.telegram.token or SECRETARY_CHANNELS_TELEGRAM_TOKEN)", err)
	}
	mirrors, err := channels.BuildMirrors(cfg.Channels, nil)
	if err != nil {
		return nil, err
	}
	for _, m := range mirrors {
		client.AddMirror(m)
	}
	return client, nil
}

func runGateway(out io.Writer, configPath string, debug bool) error {
	cfg, err := loadConfig(configPath, debug)
	if err != nil {
		return err
	}
	client, err := newTelegramClient(cfg)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, client)
	if err != nil {
		return err
	}
	defer a.Close()
	client.SetRecorder(a.history)

	msgBus := bus.NewMessageBus()
	defer msgBus.Close()

	manager := channels.NewManager(msgBus)
	manager.RegisterChannel(channels.NewTelegramChannel(client, a.history, msgBus, cfg.Channels.Telegram.AllowFrom))

	ag := a.newAgent(a.history)
	loop := a.newLoop(msgBus, ag, a.history)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.monitor.Bootstrap(ctx); err != nil {
		logger.ErrorCF("gateway", "Failed to restore window timers", map[string]interface{}{"error": err.Error()})
	}

	runner := cron.NewRunner()
	if cfg.Briefing.Enabled {
		briefing := &cron.Briefing{
			ChatID:  cfg.Briefing.ChatID,
			Summary: a.summary,
			Status:  a.guard,
			Sender:  client,
		}
		if err := runner.Add(briefing.Job(cfg.Briefing.Cron)); err != nil {
			return err
		}
	}

	healthServer := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port, func() (bool, map[string]interface{}) {
		return manager.Ready(), manager.GetStatus()
	})

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	mode := "llm"
	if !ag.Enabled() {
		mode = "fallback"
	}
	fmt.Fprintf(out, "✓ Agent mode: %s (model %s)\n", mode, ag.Model())
	fmt.Fprintf(out, "✓ Tools registered: %d\n", a.registry.Count())
	fmt.Fprintf(out, "✓ Window timers armed: %d\n", len(a.monitor.Pending()))
	fmt.Fprintf(out, "✓ Health endpoints at http://%s:%d/health and /ready\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return healthServer.Run(gctx)
	})
	g.Go(func() error {
		runner.Start(gctx)
		runner.Wait()
		return nil
	})
	runErr := g.Wait()

	fmt.Fprintln(out, "\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	loop.Stop()
	if err := manager.StopAll(shutdownCtx); err != nil {
		logger.WarnCF("gateway", "Channel shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	logger.InfoCF("gateway", "Gateway stopped", map[string]interface{}{"bus": msgBus.Stats()})
	fmt.Fprintln(out, "✓ Gateway stopped")
	return runErr
}

// runBriefing sends the daily briefing once.
func runBriefing(ctx context.Context, out io.Writer, configPath string, chatID int64) error {
	cfg, err := loadConfig(configPath, false)
	if err != nil {
		return err
	}
	client, err := newTelegramClient(cfg)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	client.SetRecorder(a.history)

	if chatID == 0 {
		chatID = cfg.Briefing.ChatID
	}
	briefing := &cron.Briefing{ChatID: chatID, Summary: a.summary, Status: a.guard, Sender: client}
	if err := briefing.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Briefing sent to chat %d\n", chatID)
	return nil
}
