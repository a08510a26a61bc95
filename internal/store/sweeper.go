package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coder/quartz"
)

type SweeperConfig struct {
	Retention time.Duration
	Interval  time.Duration
	// OnSwept runs after rooms were deleted, e.g. to disconnect their sockets.
	OnSwept func(codes []string)
}

// Sweeper periodically deletes rooms that have not been updated within the
// retention window.
type Sweeper struct {
	store  Store
	clock  quartz.Clock
	logger *slog.Logger
	cfg    SweeperConfig
}

func NewSweeper(st Store, clock quartz.Clock, logger *slog.Logger, cfg SweeperConfig) *Sweeper {
	return &Sweeper{
		store:  st,
		clock:  clock,
		logger: logger.With("component", "sweeper"),
		cfg:    cfg,
	}
}

// SweepOnce deletes every room older than the retention window.
func (s *Sweeper) SweepOnce(ctx context.Context) ([]string, error) {
	cutoff := s.clock.Now().Add(-s.cfg.Retention)
	codes, err := s.store.DeleteInactive(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return nil, err
	}
	if len(codes) == 0 {
		return nil, nil
	}
	s.logger.Info("swept inactive rooms", "count", len(codes), "cutoff", cutoff)
	if s.cfg.OnSwept != nil {
		s.cfg.OnSwept(codes)
	}
	return codes, nil
}

// Run sweeps once immediately and then on every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	_, _ = s.SweepOnce(ctx)

	w := s.clock.TickerFunc(ctx, s.cfg.Interval, func() error {
		_, _ = s.SweepOnce(ctx)
		return nil
	}, "sweeper")
	if err := w.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
