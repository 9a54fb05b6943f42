// Package cron runs jobs on standard five-field cron expressions evaluated
// in Beijing time.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/logger"
	"github.com/sunlibo2390/Notion-Telegram-Secretary-Bot/pkg/utils"
)

type Job struct {
	Name string
	Expr string
	Run  func(ctx context.Context) error
}

type Runner struct {
	jobs []Job
	now  func() time.Time
	wg   sync.WaitGroup
}

func NewRunner() *Runner {
	return &Runner{now: time.Now}
}

// Add validates the expression and registers the job.
func (r *Runner) Add(job Job) error {
	if job.Run == nil {
		return fmt.Errorf("cron job %q has no run function", job.Name)
	}
	if !gronx.New().IsValid(job.Expr) {
		return fmt.Errorf("cron job %q: invalid expression %q", job.Name, job.Expr)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

// Next returns the first tick of expr strictly after from, in Beijing time.
func Next(expr string, from time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, utils.ToBeijing(from), false)
}

// Start launches one goroutine per job. They stop when ctx is done.
func (r *Runner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		job := job
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.loop(ctx, job)
		}()
	}
	logger.InfoCF("cron", "Cron runner started", map[string]interface{}{"jobs": len(r.jobs)})
}

// Wait blocks until every job loop has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	for {
		next, err := Next(job.Expr, r.now())
		if err != nil {
			logger.ErrorCF("cron", "Cannot compute next run", map[string]interface{}{
				"job":   job.Name,
				"error": err.Error(),
			})
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		logger.InfoCF("cron", "Running job", map[string]interface{}{
			"job":       job.Name,
			"scheduled": next.Format(time.RFC3339),
		})
		if err := job.Run(ctx); err != nil {
			logger.ErrorCF("cron", "Job failed", map[string]interface{}{
				"job":   job.Name,
				"error": err.Error(),
			})
		}
	}
}
