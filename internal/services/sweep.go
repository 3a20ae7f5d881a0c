package services

import (
	"context"
	"log/slog"
	"time"

	"welfarefund/internal/storage"
)

// EventSweeper refreshes the cached completed flag on events whose end
// date has passed. Reads always derive status from the clock; the sweep
// only keeps the indexed listing column honest.
type EventSweeper struct {
	storage  *storage.SQLiteRepository
	interval time.Duration
	now      func() time.Time
}

func NewEventSweeper(storage *storage.SQLiteRepository, interval time.Duration) *EventSweeper {
	return &EventSweeper{storage: storage, interval: interval, now: time.Now}
}

// Run sweeps on a ticker until ctx is cancelled. Sweep errors are logged
// and swallowed; the next tick retries.
func (s *EventSweeper) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Event status sweep started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Event status sweep stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "Event status sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce marks every elapsed event completed.
func (s *EventSweeper) SweepOnce(ctx context.Context) error {
	n, err := s.storage.MarkElapsedEventsCompleted(ctx, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		slog.InfoContext(ctx, "Events marked completed", "count", n)
	}
	return nil
}
