package watcher

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Scheduler fires the matcher on a fixed wall-clock interval. It keeps
// no state of its own; overlapping runs are safe because the matcher's
// writes are idempotent per (rule, program) pair.
type Scheduler struct {
	matcher  *Matcher
	interval time.Duration
	log      *zap.Logger
}

// NewScheduler builds a scheduler. Non-positive intervals default to
// five minutes.
func NewScheduler(matcher *Matcher, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{matcher: matcher, interval: interval, log: log}
}

// Run blocks, checking all rules on each tick until the context is
// canceled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("watch scheduler started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("watch scheduler stopped")
			return
		case <-ticker.C:
			created := s.matcher.CheckAllRules(ctx)
			s.log.Debug("watch rules checked", zap.Int("notifications", created))
		}
	}
}
