// Package maintenance runs periodic housekeeping jobs.
package maintenance

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

type logPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionSweeper prunes webhook audit rows past their retention TTL
// on a cron schedule.
type RetentionSweeper struct {
	logs     logPruner
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	logger   *log.Logger
}

// NewRetentionSweeper builds the sweeper.
func NewRetentionSweeper(logs logPruner, ttl time.Duration, schedule string, logger *log.Logger) *RetentionSweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &RetentionSweeper{
		logs:     logs,
		ttl:      ttl,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers and launches the cron job.
func (s *RetentionSweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *RetentionSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep runs one pruning pass immediately.
func (s *RetentionSweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.ttl)
	n, err := s.logs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Printf("retention: sweep failed: %v", err)
		return
	}
	if n > 0 {
		s.logger.Printf("retention: pruned %d webhook log rows older than %s", n, cutoff.Format(time.RFC3339))
	}
}

func (s *RetentionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.Sweep(ctx)
}
