// Package maintenance runs the retention lifecycle on a timer: compress
// aged entries into the archive, purge expired archive segments, then
// delete anything past the primary retention window.
package maintenance

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/logcove/logcove/pkg/storage"
)

// ErrBusy is returned by RunNow when a maintenance pass is already in
// flight. At most one pass runs at a time.
var ErrBusy = errors.New("maintenance pass already running")

// Cleaner deletes entries past the retention window.
type Cleaner interface {
	Cleanup(ctx context.Context, params storage.CleanupParams) (int64, error)
}

// Compactor is the two-stage archive lifecycle.
type Compactor interface {
	CompressOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config controls the schedule and the retention thresholds.
type Config struct {
	Interval                time.Duration
	RetentionDays           int
	CompressionEnabled      bool
	CompressOlderThanDays   int
	CompressedRetentionDays int
}

// Result reports the counts of one maintenance pass.
type Result struct {
	Compressed int64 `json:"compressed"`
	Purged     int64 `json:"purged"`
	Deleted    int64 `json:"deleted"`
}

// Scheduler owns when maintenance runs; the store and archiver own what a
// pass does.
type Scheduler struct {
	cfg       Config
	cleaner   Cleaner
	compactor Compactor
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

// NewScheduler creates a scheduler. compactor may be nil, which disables
// the compress/purge stages (cleanup still runs).
func NewScheduler(cfg Config, cleaner Cleaner, compactor Compactor, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		cleaner:   cleaner,
		compactor: compactor,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one pass immediately, then one per interval until ctx is
// cancelled. Call in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("Maintenance scheduler started", zap.Duration("interval", s.cfg.Interval))

	if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrBusy) {
		s.logger.Error("Maintenance pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Maintenance scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrBusy) {
				s.logger.Error("Maintenance pass failed", zap.Error(err))
			}
		}
	}
}

// RunNow executes a single maintenance pass, or returns ErrBusy if one is
// already in flight. Safe to call from the manual trigger while the timer
// loop is running.
func (s *Scheduler) RunNow(ctx context.Context) (Result, error) {
	if !s.mu.TryLock() {
		return Result{}, ErrBusy
	}
	defer s.mu.Unlock()

	var res Result
	now := s.now()

	if s.compactor != nil && s.cfg.CompressionEnabled {
		compressed, err := s.compactor.CompressOlderThan(ctx, now.AddDate(0, 0, -s.cfg.CompressOlderThanDays))
		if err != nil {
			return res, err
		}
		res.Compressed = compressed

		purged, err := s.compactor.PurgeOlderThan(ctx, now.AddDate(0, 0, -s.cfg.CompressedRetentionDays))
		if err != nil {
			return res, err
		}
		res.Purged = purged
	}

	deleted, err := s.cleaner.Cleanup(ctx, storage.CleanupParams{DaysToKeep: s.cfg.RetentionDays})
	if err != nil {
		return res, err
	}
	res.Deleted = deleted

	s.lastRun = now
	s.logger.Info("Maintenance pass completed",
		zap.Int64("compressed", res.Compressed),
		zap.Int64("purged", res.Purged),
		zap.Int64("deleted", res.Deleted))
	return res, nil
}

// LastRun returns when the most recent pass completed.
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
