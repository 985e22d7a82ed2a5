// Package sweeper periodically removes documents past their retention date.
package sweeper

import (
	"context"
	"errors"
	"time"

	"legaldoc-backend/internal/shared/telemetry"
)

// Purger deletes expired documents and reports how many were removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type Sweeper struct {
	Purger   Purger
	Interval time.Duration
}

func New(p Purger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{Purger: p, Interval: interval}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.Purger.PurgeExpired(ctx)
	fields := map[string]any{"purged": n, "duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Error("sweeper.failed", fields)
		return n, err
	}
	telemetry.Info("sweeper.completed", fields)
	return n, nil
}

// Run sweeps immediately and then on every tick until ctx is done.
// A failed sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	telemetry.Info("sweeper.started", map[string]any{"interval": s.Interval.String()})
	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			telemetry.Info("sweeper.stopped", nil)
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
	telemetry.Info("sweeper.stopped", nil)
	return nil
}
