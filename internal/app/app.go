// Package app wires the planner's storage, cache, text generator and
// services from configuration. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/postcadence/planner/internal/cache"
	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/db"
	"github.com/postcadence/planner/internal/freeze"
	"github.com/postcadence/planner/internal/plan"
	"github.com/postcadence/planner/internal/recommend"
	"github.com/postcadence/planner/internal/stats"
	"github.com/postcadence/planner/internal/textgen"
	"github.com/postcadence/planner/internal/theme"
	"github.com/postcadence/planner/pkg/config"
	"github.com/postcadence/planner/pkg/logging"
)

// App holds the wired components.
type App struct {
	Config          *config.Config
	DB              *db.DB
	Cache           *cache.Cache
	TextGen         *textgen.Client // nil without an API key
	Posts           *db.PostRepository
	Aggregator      *stats.Aggregator
	Recommendations *freeze.Service
	Plans           *plan.Service
}

// New connects to the database and Redis and builds the services. Redis
// and the text generator are optional; without them the planner runs on
// Postgres alone and themes fall back to the deterministic tiers.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.GetLogger()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(ctx, cfg.Database.MigratePosts); err != nil {
		database.Close()
		return nil, err
	}

	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, continuing without hot cache", zap.Error(err))
		redisCache = nil
	}

	var generator theme.Generator
	client, err := textgen.New(cfg.OpenAI)
	switch {
	case err == nil:
		generator = client
	case errors.Is(err, textgen.ErrMissingAPIKey):
		client = nil
		logger.Info("No text generator configured, themes use deterministic tiers only")
	default:
		database.Close()
		return nil, fmt.Errorf("failed to initialize text generator: %w", err)
	}

	cat := catalog.Default()
	loc := cfg.Planner.Location()
	repo := db.NewRepository(database.DB)
	posts := db.NewPostRepository(repo)
	agg := stats.NewAggregator(loc)

	gen := recommend.NewGenerator(recommend.Config{
		MinSlots:       cfg.Planner.MinSlots,
		MaxSlots:       cfg.Planner.MaxSlots,
		ShrinkagePrior: cfg.Planner.ShrinkagePrior,
		P90Multiplier:  cfg.Planner.P90Multiplier,
	})
	themer := theme.NewSynthesizer(cat, generator, theme.Mode(cfg.Theme.Mode))

	var store freeze.Store = db.NewRecommendationCacheRepository(repo)
	if redisCache != nil {
		store = freeze.NewTieredStore(redisCache, store)
	}

	recs := freeze.NewService(posts, store, agg, gen, themer, freeze.Options{
		DefaultTarget: cfg.Planner.DefaultSlots,
		PeriodDays:    cfg.Planner.PeriodDays,
		SampleSize:    cfg.Theme.SampleSize,
	})
	plans := plan.NewService(db.NewPlanRepository(repo), plan.NewSanitizer(cat, cfg.Planner.P90Multiplier), loc, cfg.Planner.DefaultPlatform)

	logger.Info("Planner initialized",
		zap.String("algo_version", recs.AlgoVersion()),
		zap.String("timezone", loc.String()),
		zap.Bool("redis", redisCache != nil),
		zap.Bool("text_generator", generator != nil))

	return &App{
		Config:          cfg,
		DB:              database,
		Cache:           redisCache,
		TextGen:         client,
		Posts:           posts,
		Aggregator:      agg,
		Recommendations: recs,
		Plans:           plans,
	}, nil
}

// Close releases connections.
func (a *App) Close() {
	logger := logging.GetLogger()
	if err := a.Cache.Close(); err != nil {
		logger.Warn("Failed to close Redis", zap.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}
}

// ShutdownTimeout bounds graceful shutdown of either binary.
const ShutdownTimeout = 10 * time.Second
