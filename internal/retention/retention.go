// Package retention deletes webhook event logs past their retention window.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// LogPruner deletes logs created before a cutoff. repo.EventLogRepo implements it.
type LogPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Pruner removes logs older than its retention window.
type Pruner struct {
	logs   LogPruner
	window time.Duration
	now    func() time.Time
}

// NewPruner keeps days of logs. A nil now uses time.Now.
func NewPruner(logs LogPruner, days int, now func() time.Time) *Pruner {
	if now == nil {
		now = time.Now
	}
	return &Pruner{logs: logs, window: time.Duration(days) * 24 * time.Hour, now: now}
}

// Run prunes once and returns the number of deleted rows.
func (p *Pruner) Run(ctx context.Context) (int64, error) {
	if p.window <= 0 {
		return 0, nil
	}
	cutoff := p.now().Add(-p.window)
	n, err := p.logs.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention.Pruner.Run: %w", err)
	}
	slog.InfoContext(ctx, "pruned webhook event logs", "deleted", n, "cutoff", cutoff)
	return n, nil
}

// Scheduler runs a Pruner on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler registers p under spec, a five-field cron expression or a
// descriptor such as "@daily".
func NewScheduler(p *Pruner, spec string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := p.Run(ctx); err != nil {
			slog.Error("log retention job failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("retention.NewScheduler: invalid schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c}, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running job or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
