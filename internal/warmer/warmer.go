// Package warmer precomputes the current week's recommendations for
// recently active creators so their first read hits the freeze cache.
package warmer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/postcadence/planner/internal/freeze"
	"github.com/postcadence/planner/pkg/config"
	"github.com/postcadence/planner/pkg/logging"
)

// UserLister finds creators that posted since a given instant.
type UserLister interface {
	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)
}

// Recommender computes and freezes one creator's week.
type Recommender interface {
	Recommend(ctx context.Context, req freeze.Request) (*freeze.Response, error)
}

// Stats summarizes one warming pass.
type Stats struct {
	Users  int
	Warmed int
	Cached int
	Failed int
}

// Warmer runs warming passes on an interval.
type Warmer struct {
	users    UserLister
	recs     Recommender
	interval time.Duration
	lookback time.Duration
	workers  int
	now      func() time.Time
	logger   *zap.Logger
}

// New creates a warmer.
func New(cfg *config.WarmerConfig, users UserLister, recs Recommender) *Warmer {
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	lookback := cfg.LookbackDays
	if lookback <= 0 {
		lookback = 14
	}
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Warmer{
		users:    users,
		recs:     recs,
		interval: interval,
		lookback: time.Duration(lookback) * 24 * time.Hour,
		workers:  workers,
		now:      time.Now,
		logger:   logging.WithComponent("warmer"),
	}
}

// Run warms immediately, then once per interval, until ctx is done.
func (w *Warmer) Run(ctx context.Context) error {
	w.logger.Info("Starting cache warmer",
		zap.Duration("interval", w.interval),
		zap.Duration("lookback", w.lookback),
		zap.Int("workers", w.workers))

	for {
		if _, err := w.WarmOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("Warming pass failed", zap.Error(err))
		}
		if !w.wait(ctx) {
			return ctx.Err()
		}
	}
}

// WarmOnce warms every active creator's current week. A failure for one
// creator is logged and counted; only listing the creators can fail the
// pass.
func (w *Warmer) WarmOnce(ctx context.Context) (Stats, error) {
	start := w.now()
	users, err := w.users.ActiveUsers(ctx, start.Add(-w.lookback))
	if err != nil {
		return Stats{}, err
	}

	results := make([]*freeze.Response, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for i, userID := range users {
		i, userID := i, userID
		g.Go(func() error {
			resp, err := w.recs.Recommend(gctx, freeze.Request{UserID: userID})
			if err != nil {
				if gctx.Err() == nil {
					w.logger.Warn("Failed to warm recommendations", zap.String("user_id", userID), zap.Error(err))
				}
				return nil
			}
			results[i] = resp
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{Users: len(users)}
	for _, r := range results {
		switch {
		case r == nil:
			stats.Failed++
		case r.Cached:
			stats.Cached++
		default:
			stats.Warmed++
		}
	}

	w.logger.Info("Warming pass finished",
		zap.Int("users", stats.Users),
		zap.Int("warmed", stats.Warmed),
		zap.Int("already_cached", stats.Cached),
		zap.Int("failed", stats.Failed),
		zap.Duration("took", time.Since(start)))
	return stats, ctx.Err()
}

// wait reports false when ctx ends first.
func (w *Warmer) wait(ctx context.Context) bool {
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
