package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePruner struct {
	cutoff time.Time
	n      int64
	err    error
	calls  int
}

func (f *fakePruner) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.n, f.err
}

func TestSweepUsesTTLCutoff(t *testing.T) {
	pruner := &fakePruner{n: 3}
	s := NewRetentionSweeper(pruner, 90*24*time.Hour, "0 3 * * *", nil)

	s.Sweep(context.Background())
	if pruner.calls != 1 {
		t.Fatalf("calls = %d, want 1", pruner.calls)
	}
	age := time.Since(pruner.cutoff)
	if age < 90*24*time.Hour-time.Minute || age > 90*24*time.Hour+time.Minute {
		t.Fatalf("cutoff not ttl ago: %v", pruner.cutoff)
	}
}

func TestSweepSurvivesPrunerError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("table locked")}
	s := NewRetentionSweeper(pruner, time.Hour, "@hourly", nil)
	s.Sweep(context.Background())
	if pruner.calls != 1 {
		t.Fatalf("calls = %d, want 1", pruner.calls)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewRetentionSweeper(&fakePruner{}, time.Hour, "not a schedule", nil)
	if err := s.Start(); err == nil {
		t.Fatal("invalid cron expression accepted")
	}
}

func TestStartStop(t *testing.T) {
	s := NewRetentionSweeper(&fakePruner{}, time.Hour, "@daily", nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
