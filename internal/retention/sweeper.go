package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/blackmichael/bluesky-feedgen/internal/domain"
)

// Sweeper deletes indexed data older than a single global horizon. It runs
// one pass immediately and then once per interval until stopped; an
// in-flight pass always completes before the loop exits.
type Sweeper struct {
	store    domain.RetentionStore
	interval time.Duration
	horizon  time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(store domain.RetentionStore, interval, horizon time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		horizon:  horizon,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.horizon)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("retention sweep complete", "posts_deleted", deleted, "cutoff", cutoff)
	}
}
