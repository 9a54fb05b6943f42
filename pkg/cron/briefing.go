package cron

import (
	"context"
	"fmt"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/planner"
)

type Summarizer interface {
	BuildTodaySummary() string
}

type Evaluator interface {
	Evaluate() []planner.Intervention
}

type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// Briefing sends the day's task summary followed by one message per
// pending intervention.
type Briefing struct {
	ChatID  int64
	Summary Summarizer
	Status  Evaluator
	Sender  Sender
}

func (b *Briefing) Run(ctx context.Context) error {
	if b.ChatID == 0 {
		return fmt.Errorf("briefing chat id is not configured")
	}
	if err := b.Sender.SendText(ctx, b.ChatID, b.Summary.BuildTodaySummary()); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}
	if b.Status == nil {
		return nil
	}
	for _, item := range b.Status.Evaluate() {
		if err := b.Sender.SendText(ctx, b.ChatID, item.Message); err != nil {
			return fmt.Errorf("send intervention: %w", err)
		}
	}
	return nil
}

// Job wraps the briefing for a Runner.
func (b *Briefing) Job(expr string) Job {
	return Job{Name: "daily_briefing", Expr: expr, Run: b.Run}
}
