package freeze

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/postcadence/planner/internal/cache"
	"github.com/postcadence/planner/internal/models"
)

type fakeHot struct {
	values  map[string]interface{}
	ttls    map[string]time.Duration
	readErr error
	sets    int
}

func newFakeHot() *fakeHot {
	return &fakeHot{values: map[string]interface{}{}, ttls: map[string]time.Duration{}}
}

func (f *fakeHot) GetJSON(_ context.Context, key string, out interface{}) error {
	if f.readErr != nil {
		return f.readErr
	}
	v, ok := f.values[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	*out.(*models.RecommendationCache) = *v.(*models.RecommendationCache)
	return nil
}

func (f *fakeHot) SetJSON(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	f.sets++
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func sampleEntry() *models.RecommendationCache {
	return &models.RecommendationCache{
		UserID:    "ana",
		WeekStart: weekStart,
		Recommendations: datatypes.JSONSlice[models.RecommendationSlot]{
			{DayOfWeek: 2, BlockStartHour: 18, Format: "reel", Themes: []string{}},
		},
		FrozenAt:    now,
		AlgoVersion: "v4",
	}
}

func TestTieredStoreWritesThrough(t *testing.T) {
	hot, cold := newFakeHot(), newFakeStore()
	store := NewTieredStore(hot, cold)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Upsert(ctx, sampleEntry()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if cold.upserts != 1 || hot.sets != 1 {
		t.Fatalf("cold upserts=%d hot sets=%d", cold.upserts, hot.sets)
	}

	// From Wednesday noon until Tuesday 06-11 00:00, a day after the week ends.
	want := 5*24*time.Hour + 12*time.Hour
	if ttl := hot.ttls[hotKey("ana", weekStart)]; ttl != want {
		t.Errorf("ttl = %v, want %v", ttl, want)
	}

	cold.getErr = errors.New("cold store must not be read on a hot hit")
	got, err := store.Get(ctx, "ana", weekStart)
	if err != nil || got == nil || got.Recommendations[0].BlockStartHour != 18 {
		t.Errorf("Get = %+v, %v", got, err)
	}
}

func TestTieredStoreFallsBackToCold(t *testing.T) {
	hot, cold := newFakeHot(), newFakeStore()
	hot.readErr = errors.New("redis: connection pool timeout")
	cold.entries[storeKey("ana", weekStart)] = sampleEntry()
	store := NewTieredStore(hot, cold)

	got, err := store.Get(context.Background(), "ana", weekStart)
	if err != nil || got == nil {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if hot.sets != 1 {
		t.Errorf("cold hit should refill the hot cache")
	}

	miss, err := store.Get(context.Background(), "bia", weekStart)
	if err != nil || miss != nil {
		t.Errorf("expected a clean miss, got %+v, %v", miss, err)
	}
}

func TestTieredStoreWithDisabledCache(t *testing.T) {
	var disabled *cache.Cache
	cold := newFakeStore()
	store := NewTieredStore(disabled, cold)
	ctx := context.Background()

	if err := store.Upsert(ctx, sampleEntry()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := store.Get(ctx, "ana", weekStart)
	if err != nil || got == nil {
		t.Errorf("Get = %+v, %v", got, err)
	}
}

func TestTieredStoreColdWriteFailure(t *testing.T) {
	hot, cold := newFakeHot(), newFakeStore()
	cold.writeErr = errors.New("disk full")
	store := NewTieredStore(hot, cold)

	if err := store.Upsert(context.Background(), sampleEntry()); err == nil {
		t.Fatal("expected the durable write error")
	}
	if hot.sets != 0 {
		t.Errorf("hot cache must not hold entries the durable store rejected")
	}
}

func TestSampleCaptions(t *testing.T) {
	other := post(1, 9, 3, 900, "alongamento matinal")
	other.Format = []string{"carousel"}
	other.Context = []string{"travel"}
	other.Proposal = []string{"review"}

	records := append(testRecords(), other, post(1, 9, 4, 10, ""))
	slot := models.RecommendationSlot{
		DayOfWeek:      1,
		BlockStartHour: 9,
		Format:         "reel",
		Categories:     models.Categories{Context: []string{"fitness"}, Proposal: []string{"tips"}},
	}

	got := SampleCaptions(records, brt, slot, 8)
	want := []string{"treino rápido antes do trabalho", "treino de pernas em casa"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}

	slot.Format = "live"
	slot.Categories = models.Categories{}
	got = SampleCaptions(records, brt, slot, 2)
	want = []string{"alongamento matinal", "treino rápido antes do trabalho"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("fallback to the whole cell: got %v, want %v", got, want)
	}
}
