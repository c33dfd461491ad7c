// Package freeze serves weekly recommendations and keeps them stable for
// the rest of the week.
//
// A batch has two independent branches: the ranked slots (aggregation,
// generation, per-slot theming) and the heatmap. They run concurrently and
// either may fail on its own; the batch only errors when both do. Results
// are frozen per (user, week) and tagged with the algorithm version, so a
// version change invalidates every entry without a migration.
package freeze

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/recommend"
	"github.com/postcadence/planner/internal/stats"
	"github.com/postcadence/planner/internal/theme"
	"github.com/postcadence/planner/internal/timeblock"
	"github.com/postcadence/planner/pkg/logging"
	"github.com/postcadence/planner/pkg/telemetry"
)

// ErrDataSourceUnavailable wraps failures reading historical posts.
var ErrDataSourceUnavailable = errors.New("post data source unavailable")

// PostSource reads a creator's posts published in [from, to).
type PostSource interface {
	ListPosts(ctx context.Context, userID string, from, to time.Time) ([]models.PostRecord, error)
}

// Store persists frozen recommendation sets keyed by (user, week). Get
// returns nil without error when there is no entry.
type Store interface {
	Get(ctx context.Context, userID string, weekStart time.Time) (*models.RecommendationCache, error)
	Upsert(ctx context.Context, entry *models.RecommendationCache) error
}

// Themer names a slot's theme. It must not fail.
type Themer interface {
	Synthesize(ctx context.Context, in theme.Input) theme.Result
}

// Request asks for one creator's recommendations for one week.
type Request struct {
	UserID      string
	WeekStart   time.Time // any instant of the week; zero means this week
	TargetSlots int       // 0 means the configured default
	PeriodDays  int       // 0 means the configured default
	// NoCache skips the cache read; the fresh result is still frozen.
	NoCache bool
	// DisableFreeze skips both the cache read and the write.
	DisableFreeze bool
}

// Response is a recommendation batch.
type Response struct {
	Recommendations []models.RecommendationSlot `json:"recommendations"`
	Heatmap         []models.HeatmapCell        `json:"heatmap"`
	Cached          bool                        `json:"cached"`
	FrozenAt        *time.Time                  `json:"frozen_at,omitempty"`
	AlgoVersion     string                      `json:"algo_version"`
	Partial         bool                        `json:"partial"`
	WeekStart       time.Time                   `json:"week_start"`

	failedBranch string
}

// Options configures a Service.
type Options struct {
	DefaultTarget int
	PeriodDays    int
	SampleSize    int
	Now           func() time.Time
}

// Service runs recommendation batches behind the freeze cache.
type Service struct {
	posts      PostSource
	store      Store
	agg        *stats.Aggregator
	gen        *recommend.Generator
	themer     Themer
	opts       Options
	logger     *zap.Logger
	themeLimit int
}

// NewService wires a Service. store may be nil, which disables freezing.
func NewService(posts PostSource, store Store, agg *stats.Aggregator, gen *recommend.Generator, themer Themer, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PeriodDays <= 0 {
		opts.PeriodDays = stats.DefaultPeriodDays
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = 8
	}
	return &Service{
		posts:      posts,
		store:      store,
		agg:        agg.WithClock(opts.Now),
		gen:        gen,
		themer:     themer,
		opts:       opts,
		logger:     logging.WithComponent("freeze"),
		themeLimit: 4,
	}
}

// AlgoVersion is the version tag written with fresh entries.
func (s *Service) AlgoVersion() string {
	return s.gen.Version()
}

// Recommend returns the frozen recommendations for the request's week, or
// computes and freezes them. A cancelled context discards the result and
// writes nothing.
func (s *Service) Recommend(ctx context.Context, req Request) (*Response, error) {
	ctx, span := telemetry.StartSpan(ctx, "freeze.recommend",
		trace.WithAttributes(attribute.String("user_id", req.UserID)))
	defer span.End()

	logger := logging.WithUser(s.logger, req.UserID)
	now := s.opts.Now()
	loc := s.agg.Location()

	weekStart := req.WeekStart
	if weekStart.IsZero() {
		weekStart = now
	}
	weekStart = timeblock.WeekStart(weekStart, loc)
	version := s.AlgoVersion()
	freezing := s.store != nil && !req.DisableFreeze

	if freezing && !req.NoCache {
		if resp, ok := s.lookup(ctx, logger, req.UserID, weekStart, version); ok {
			span.SetAttributes(attribute.Bool("cached", true))
			return resp, nil
		}
	} else {
		telemetry.RecordCacheLookup(ctx, "bypass")
	}

	resp, err := s.compute(ctx, logger, req, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	resp.WeekStart = weekStart
	resp.AlgoVersion = version

	if err := ctx.Err(); err != nil {
		logger.Debug("Recommendation batch superseded", zap.Error(err))
		return nil, err
	}
	if resp.Partial {
		telemetry.RecordPartialBatch(ctx, resp.failedBranch)
		return resp, nil
	}
	if !freezing {
		return resp, nil
	}

	frozenAt := now.UTC()
	entry := &models.RecommendationCache{
		UserID:          req.UserID,
		WeekStart:       weekStart,
		Recommendations: datatypes.JSONSlice[models.RecommendationSlot](resp.Recommendations),
		Heatmap:         datatypes.JSONSlice[models.HeatmapCell](resp.Heatmap),
		FrozenAt:        frozenAt,
		AlgoVersion:     version,
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		logger.Warn("Failed to freeze recommendations", zap.Error(err))
		return resp, nil
	}
	resp.FrozenAt = &frozenAt
	return resp, nil
}

func (s *Service) lookup(ctx context.Context, logger *zap.Logger, userID string, weekStart time.Time, version string) (*Response, bool) {
	entry, err := s.store.Get(ctx, userID, weekStart)
	switch {
	case err != nil:
		logger.Warn("Recommendation cache read failed", zap.Error(err))
		telemetry.RecordCacheLookup(ctx, "error")
		return nil, false
	case entry == nil:
		telemetry.RecordCacheLookup(ctx, "miss")
		return nil, false
	case entry.AlgoVersion != version:
		logger.Debug("Ignoring stale recommendation cache",
			zap.String("cached_version", entry.AlgoVersion),
			zap.String("version", version))
		telemetry.RecordCacheLookup(ctx, "stale")
		return nil, false
	}

	telemetry.RecordCacheLookup(ctx, "hit")
	frozenAt := entry.FrozenAt
	resp := &Response{
		Recommendations: []models.RecommendationSlot(entry.Recommendations),
		Heatmap:         []models.HeatmapCell(entry.Heatmap),
		Cached:          true,
		FrozenAt:        &frozenAt,
		AlgoVersion:     entry.AlgoVersion,
		WeekStart:       weekStart,
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []models.RecommendationSlot{}
	}
	if resp.Heatmap == nil {
		resp.Heatmap = []models.HeatmapCell{}
	}
	return resp, true
}

// compute runs both branches. Each fetches its own copy of the window so a
// failure in one does not take the other down.
func (s *Service) compute(ctx context.Context, logger *zap.Logger, req Request, now time.Time) (*Response, error) {
	period := req.PeriodDays
	if period <= 0 {
		period = s.opts.PeriodDays
	}
	target := req.TargetSlots
	if target <= 0 {
		target = s.opts.DefaultTarget
	}
	from := now.AddDate(0, 0, -period)

	var (
		g        errgroup.Group
		slots    []models.RecommendationSlot
		heatmap  []models.HeatmapCell
		slotsErr error
		heatErr  error
	)
	g.Go(func() error {
		slots, slotsErr = s.recommendations(ctx, req.UserID, from, now, period, target)
		return nil
	})
	g.Go(func() error {
		heatmap, heatErr = s.heatmap(ctx, req.UserID, from, now, period)
		return nil
	})
	_ = g.Wait()

	if slotsErr != nil && heatErr != nil {
		return nil, fmt.Errorf("recommendation batch failed: %w", errors.Join(slotsErr, heatErr))
	}

	resp := &Response{Recommendations: slots, Heatmap: heatmap}
	if slotsErr != nil {
		logger.Warn("Recommendation branch failed", zap.Error(slotsErr))
		resp.Partial = true
		resp.failedBranch = "recommendations"
	}
	if heatErr != nil {
		logger.Warn("Heatmap branch failed", zap.Error(heatErr))
		resp.Partial = true
		resp.failedBranch = "heatmap"
	}
	if resp.Recommendations == nil {
		resp.Recommendations = []models.RecommendationSlot{}
	}
	if resp.Heatmap == nil {
		resp.Heatmap = []models.HeatmapCell{}
	}
	return resp, nil
}

func (s *Service) fetch(ctx context.Context, userID string, from, to time.Time) ([]models.PostRecord, error) {
	posts, err := s.posts.ListPosts(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataSourceUnavailable, err)
	}
	return posts, nil
}

func (s *Service) recommendations(ctx context.Context, userID string, from, now time.Time, period, target int) ([]models.RecommendationSlot, error) {
	posts, err := s.fetch(ctx, userID, from, now)
	if err != nil {
		return nil, err
	}
	window := stats.Window(posts, period, now)

	slots := s.gen.Generate(recommend.Input{
		Blocks:     s.agg.BlockAverages(window, period, models.MetricViews),
		Shares:     s.agg.BlockAverages(window, period, models.MetricShares),
		Combos:     s.agg.ComboStatsByBlock(window, models.MetricViews),
		Tones:      s.agg.CategoryStatsByBlock(window, catalog.Tone, models.MetricViews),
		References: s.agg.CategoryStatsByBlock(window, catalog.Reference, models.MetricViews),
	}, target)

	s.enrich(ctx, userID, window, slots)
	return slots, nil
}

// enrich themes every slot concurrently. A slot whose theming fails keeps
// empty themes; the others are unaffected.
func (s *Service) enrich(ctx context.Context, userID string, records []models.PostRecord, slots []models.RecommendationSlot) {
	if s.themer == nil {
		return
	}
	var g errgroup.Group
	g.SetLimit(s.themeLimit)
	for i := range slots {
		slot := &slots[i]
		captions := SampleCaptions(records, s.agg.Location(), *slot, s.opts.SampleSize)
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Warn("Theme enrichment panicked",
						zap.String("user_id", userID),
						zap.Stringer("block", timeblock.Block{DayOfWeek: slot.DayOfWeek, BlockStartHour: slot.BlockStartHour}),
						zap.Any("panic", r))
					slot.ThemeKeyword = ""
					slot.Themes = []string{}
				}
			}()
			res := s.themer.Synthesize(ctx, theme.Input{
				Captions:   captions,
				Categories: slot.Categories,
				Format:     slot.Format,
			})
			slot.ThemeKeyword = res.Keyword
			slot.Themes = res.Phrases
			if slot.Themes == nil {
				slot.Themes = []string{}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) heatmap(ctx context.Context, userID string, from, now time.Time, period int) ([]models.HeatmapCell, error) {
	posts, err := s.fetch(ctx, userID, from, now)
	if err != nil {
		return nil, err
	}
	return s.agg.Heatmap(posts, period, models.MetricViews), nil
}
