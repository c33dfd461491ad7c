package freeze

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/postcadence/planner/internal/cache"
	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/timeblock"
	"github.com/postcadence/planner/pkg/logging"
)

// HotCache is the JSON cache placed in front of the durable store.
type HotCache interface {
	GetJSON(ctx context.Context, key string, out interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// TieredStore reads through a hot cache to a durable store. Hot cache
// errors are logged and never returned.
type TieredStore struct {
	hot    HotCache
	cold   Store
	now    func() time.Time
	logger *zap.Logger
}

// NewTieredStore layers hot over cold. hot may be a nil *cache.Cache.
func NewTieredStore(hot HotCache, cold Store) *TieredStore {
	return &TieredStore{
		hot:    hot,
		cold:   cold,
		now:    time.Now,
		logger: logging.WithComponent("freeze.store"),
	}
}

func hotKey(userID string, weekStart time.Time) string {
	return "rec:" + cache.HashKey(userID, weekStart.UTC().Format(time.RFC3339))
}

// ttl keeps an entry until a day after its week ends.
func (t *TieredStore) ttl(weekStart time.Time) time.Duration {
	d := timeblock.WeekEnd(weekStart).Add(24 * time.Hour).Sub(t.now())
	if d < time.Hour {
		d = time.Hour
	}
	return d
}

func (t *TieredStore) Get(ctx context.Context, userID string, weekStart time.Time) (*models.RecommendationCache, error) {
	key := hotKey(userID, weekStart)

	var entry models.RecommendationCache
	err := t.hot.GetJSON(ctx, key, &entry)
	if err == nil {
		return &entry, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheDisabled) {
		t.logger.Warn("Hot cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	found, err := t.cold.Get(ctx, userID, weekStart)
	if err != nil || found == nil {
		return found, err
	}
	t.fill(ctx, key, found)
	return found, nil
}

func (t *TieredStore) Upsert(ctx context.Context, entry *models.RecommendationCache) error {
	if err := t.cold.Upsert(ctx, entry); err != nil {
		return err
	}
	t.fill(ctx, hotKey(entry.UserID, entry.WeekStart), entry)
	return nil
}

func (t *TieredStore) fill(ctx context.Context, key string, entry *models.RecommendationCache) {
	err := t.hot.SetJSON(ctx, key, entry, t.ttl(entry.WeekStart))
	if err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		t.logger.Warn("Hot cache write failed", zap.String("user_id", entry.UserID), zap.Error(err))
	}
}
