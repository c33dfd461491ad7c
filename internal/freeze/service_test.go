package freeze

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/recommend"
	"github.com/postcadence/planner/internal/stats"
	"github.com/postcadence/planner/internal/theme"
)

var brt = time.FixedZone("BRT", -3*60*60)

// now is Wednesday 2024-06-05 12:00 local; the week starts Monday 06-03.
var now = time.Date(2024, 6, 5, 12, 0, 0, 0, brt)

var weekStart = time.Date(2024, 6, 3, 0, 0, 0, 0, brt)

type fakePosts struct {
	records []models.PostRecord
	failN   int32 // number of leading calls that fail; -1 fails every call
	calls   int32
}

func (f *fakePosts) ListPosts(_ context.Context, _ string, from, to time.Time) ([]models.PostRecord, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.failN < 0 || n <= f.failN {
		return nil, errors.New("connection refused")
	}
	var out []models.PostRecord
	for _, r := range f.records {
		if !r.PostedAt.Before(from) && r.PostedAt.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeStore struct {
	mu       sync.Mutex
	entries  map[string]*models.RecommendationCache
	upserts  int
	getErr   error
	writeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]*models.RecommendationCache)}
}

func storeKey(userID string, weekStart time.Time) string {
	return fmt.Sprintf("%s/%d", userID, weekStart.Unix())
}

func (f *fakeStore) Get(_ context.Context, userID string, weekStart time.Time) (*models.RecommendationCache, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.entries[storeKey(userID, weekStart)], nil
}

func (f *fakeStore) Upsert(_ context.Context, entry *models.RecommendationCache) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.upserts++
	cp := *entry
	f.entries[storeKey(entry.UserID, entry.WeekStart)] = &cp
	return nil
}

type panickyThemer struct {
	inner    Themer
	panicDay int
}

func (p panickyThemer) Synthesize(ctx context.Context, in theme.Input) theme.Result {
	for _, c := range in.Captions {
		if c == fmt.Sprintf("panic day %d", p.panicDay) {
			panic("theme exploded")
		}
	}
	return p.inner.Synthesize(ctx, in)
}

func post(day, hour int, weeksAgo int, views float64, caption string) models.PostRecord {
	at := time.Date(2024, 6, 3+day-1, hour, 15, 0, 0, brt).AddDate(0, 0, -7*weeksAgo)
	return models.PostRecord{
		UserID:   "ana",
		PostedAt: at,
		Metrics: map[string]interface{}{
			models.MetricViews:  views,
			models.MetricShares: views / 10,
		},
		Format:   []string{"reel"},
		Context:  []string{"fitness"},
		Proposal: []string{"tips"},
		Tone:     []string{"casual"},
		Caption:  caption,
	}
}

func testRecords() []models.PostRecord {
	return []models.PostRecord{
		post(1, 9, 1, 100, "treino de pernas em casa"),
		post(1, 9, 2, 300, "treino rápido antes do trabalho"),
		post(2, 18, 1, 500, "corrida no parque"),
		post(2, 18, 2, 450, "corrida com chuva"),
		post(4, 12, 1, 200, "receita proteica"),
		post(5, 21, 3, 50, "panic day 5"),
		post(5, 21, 4, 60, "panic day 5"),
	}
}

func newTestService(posts PostSource, store Store, themer Themer) *Service {
	if themer == nil {
		themer = theme.NewSynthesizer(catalog.Default(), nil, theme.ModeFlex)
	}
	return NewService(posts, store,
		stats.NewAggregator(brt),
		recommend.NewGenerator(recommend.DefaultConfig()),
		themer,
		Options{DefaultTarget: 3, PeriodDays: 90, SampleSize: 8, Now: func() time.Time { return now }},
	)
}

func TestRecommendFreezesWithinWeek(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(&fakePosts{records: testRecords()}, store, nil)
	ctx := context.Background()

	first, err := svc.Recommend(ctx, Request{UserID: "ana"})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Cached || first.Partial || first.FrozenAt == nil {
		t.Fatalf("unexpected first response: cached=%v partial=%v frozen=%v", first.Cached, first.Partial, first.FrozenAt)
	}
	if len(first.Recommendations) != 3 || len(first.Heatmap) == 0 {
		t.Fatalf("got %d slots and %d heatmap cells", len(first.Recommendations), len(first.Heatmap))
	}
	for _, slot := range first.Recommendations {
		if slot.ThemeKeyword == "" || len(slot.Themes) < theme.MinPhrases {
			t.Errorf("slot %d/%d not themed: %+v", slot.DayOfWeek, slot.BlockStartHour, slot)
		}
	}
	if !first.WeekStart.Equal(weekStart) {
		t.Errorf("week start = %v, want %v", first.WeekStart, weekStart)
	}

	second, err := svc.Recommend(ctx, Request{UserID: "ana", WeekStart: now.AddDate(0, 0, 2)})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !second.Cached {
		t.Errorf("second call should be served from the freeze cache")
	}
	if !reflect.DeepEqual(first.Recommendations, second.Recommendations) {
		t.Errorf("cached recommendations differ:\n%+v\n%+v", first.Recommendations, second.Recommendations)
	}
	if !second.FrozenAt.Equal(*first.FrozenAt) {
		t.Errorf("frozen_at changed: %v -> %v", first.FrozenAt, second.FrozenAt)
	}
	if second.AlgoVersion != svc.AlgoVersion() {
		t.Errorf("algo version = %s", second.AlgoVersion)
	}
	if store.upserts != 1 {
		t.Errorf("upserts = %d, want 1", store.upserts)
	}
}

func TestRecommendCacheFlags(t *testing.T) {
	tests := []struct {
		name        string
		req         Request
		wantUpserts int
		wantFrozen  bool
	}{
		{"nocache recomputes and freezes", Request{UserID: "ana", NoCache: true}, 2, true},
		{"disable freeze neither reads nor writes", Request{UserID: "ana", DisableFreeze: true}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(&fakePosts{records: testRecords()}, store, nil)
			if _, err := svc.Recommend(context.Background(), Request{UserID: "ana"}); err != nil {
				t.Fatalf("warm: %v", err)
			}

			resp, err := svc.Recommend(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Recommend: %v", err)
			}
			if resp.Cached {
				t.Errorf("expected a fresh result")
			}
			if (resp.FrozenAt != nil) != tt.wantFrozen {
				t.Errorf("frozen_at = %v, want set=%v", resp.FrozenAt, tt.wantFrozen)
			}
			if store.upserts != tt.wantUpserts {
				t.Errorf("upserts = %d, want %d", store.upserts, tt.wantUpserts)
			}
		})
	}
}

func TestRecommendIgnoresStaleVersion(t *testing.T) {
	store := newFakeStore()
	store.entries[storeKey("ana", weekStart)] = &models.RecommendationCache{
		UserID:      "ana",
		WeekStart:   weekStart,
		FrozenAt:    now.Add(-time.Hour),
		AlgoVersion: "v1",
	}
	svc := newTestService(&fakePosts{records: testRecords()}, store, nil)

	resp, err := svc.Recommend(context.Background(), Request{UserID: "ana"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Cached {
		t.Errorf("stale entry must not be served")
	}
	entry := store.entries[storeKey("ana", weekStart)]
	if entry.AlgoVersion != svc.AlgoVersion() || len(entry.Recommendations) == 0 {
		t.Errorf("stale entry not replaced: %+v", entry)
	}
}

func TestRecommendCacheReadFailureRecomputes(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("timeout")
	svc := newTestService(&fakePosts{records: testRecords()}, store, nil)

	resp, err := svc.Recommend(context.Background(), Request{UserID: "ana"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Cached || len(resp.Recommendations) == 0 {
		t.Errorf("expected a fresh result, got %+v", resp)
	}
}

func TestRecommendPartial(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(&fakePosts{records: testRecords(), failN: 1}, store, nil)

	resp, err := svc.Recommend(context.Background(), Request{UserID: "ana"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !resp.Partial {
		t.Fatalf("expected partial=true")
	}
	emptySlots := len(resp.Recommendations) == 0
	emptyHeatmap := len(resp.Heatmap) == 0
	if emptySlots == emptyHeatmap {
		t.Errorf("exactly one branch should be empty: slots=%d heatmap=%d", len(resp.Recommendations), len(resp.Heatmap))
	}
	if resp.Recommendations == nil || resp.Heatmap == nil {
		t.Errorf("failed branch must be an empty list, not nil")
	}
	if store.upserts != 0 || resp.FrozenAt != nil {
		t.Errorf("partial results must not be frozen")
	}
}

func TestRecommendBothBranchesFail(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(&fakePosts{failN: -1}, store, nil)

	_, err := svc.Recommend(context.Background(), Request{UserID: "ana"})
	if !errors.Is(err, ErrDataSourceUnavailable) {
		t.Errorf("expected ErrDataSourceUnavailable, got %v", err)
	}
	if store.upserts != 0 {
		t.Errorf("nothing should be written")
	}
}

func TestRecommendWriteFailureReturnsFreshResult(t *testing.T) {
	store := newFakeStore()
	store.writeErr = errors.New("read-only replica")
	svc := newTestService(&fakePosts{records: testRecords()}, store, nil)

	resp, err := svc.Recommend(context.Background(), Request{UserID: "ana"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Cached || resp.FrozenAt != nil || len(resp.Recommendations) == 0 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestRecommendCancelledWritesNothing(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(&fakePosts{records: testRecords()}, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Recommend(ctx, Request{UserID: "ana"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if store.upserts != 0 {
		t.Errorf("superseded request must not write")
	}
}

func TestRecommendIsolatesThemeFailures(t *testing.T) {
	themer := panickyThemer{
		inner:    theme.NewSynthesizer(catalog.Default(), nil, theme.ModeFlex),
		panicDay: 5,
	}
	svc := newTestService(&fakePosts{records: testRecords()}, newFakeStore(), themer)

	resp, err := svc.Recommend(context.Background(), Request{UserID: "ana", TargetSlots: 5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(resp.Recommendations) != 4 {
		t.Fatalf("got %d slots, want all 4 cells", len(resp.Recommendations))
	}
	for _, slot := range resp.Recommendations {
		if slot.DayOfWeek == 5 {
			if len(slot.Themes) != 0 || slot.Themes == nil {
				t.Errorf("panicking slot should have an empty theme list, got %v", slot.Themes)
			}
			continue
		}
		if len(slot.Themes) == 0 {
			t.Errorf("slot on day %d lost its themes", slot.DayOfWeek)
		}
	}
}

func TestRecommendWithoutStore(t *testing.T) {
	svc := newTestService(&fakePosts{records: testRecords()}, nil, nil)
	resp, err := svc.Recommend(context.Background(), Request{UserID: "ana"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Cached || resp.FrozenAt != nil {
		t.Errorf("no store means no freezing")
	}
}
