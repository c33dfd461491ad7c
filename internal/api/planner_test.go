package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postcadence/planner/internal/cache"
	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/freeze"
	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/plan"
	"github.com/postcadence/planner/internal/recommend"
	"github.com/postcadence/planner/internal/stats"
	"github.com/postcadence/planner/internal/theme"
)

var brt = time.FixedZone("BRT", -3*60*60)

// now is Wednesday 2024-06-05 12:00 local.
var now = time.Date(2024, 6, 5, 12, 0, 0, 0, brt)

type staticPosts []models.PostRecord

func (s staticPosts) ListPosts(_ context.Context, _ string, from, to time.Time) ([]models.PostRecord, error) {
	var out []models.PostRecord
	for _, r := range s {
		if !r.PostedAt.Before(from) && r.PostedAt.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*models.RecommendationCache
}

func (m *memCache) Get(_ context.Context, userID string, weekStart time.Time) (*models.RecommendationCache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[fmt.Sprintf("%s/%d", userID, weekStart.Unix())], nil
}

func (m *memCache) Upsert(_ context.Context, e *models.RecommendationCache) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries[fmt.Sprintf("%s/%d", e.UserID, e.WeekStart.Unix())] = &cp
	return nil
}

type memPlans struct {
	plans map[string]*models.WeeklyPlan
}

func (m *memPlans) Get(_ context.Context, userID, platform string, weekStart time.Time) (*models.WeeklyPlan, error) {
	p := m.plans[fmt.Sprintf("%s/%s/%d", userID, platform, weekStart.Unix())]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memPlans) Upsert(_ context.Context, p *models.WeeklyPlan) error {
	cp := *p
	m.plans[fmt.Sprintf("%s/%s/%d", p.UserID, p.Platform, p.WeekStart.Unix())] = &cp
	return nil
}

func at(day, hour, weeksAgo int) time.Time {
	return time.Date(2024, 6, 3+day-1, hour, 30, 0, 0, brt).AddDate(0, 0, -7*weeksAgo)
}

func testPosts() staticPosts {
	rec := func(t time.Time, views float64, caption string) models.PostRecord {
		return models.PostRecord{
			UserID:   "ana",
			PostedAt: t,
			Metrics:  map[string]interface{}{models.MetricViews: views},
			Format:   []string{"reel"},
			Context:  []string{"fitness"},
			Proposal: []string{"tips"},
			Caption:  caption,
		}
	}
	return staticPosts{
		rec(at(1, 9, 1), 100, "treino em casa"),
		rec(at(1, 9, 2), 300, "treino pesado"),
		rec(at(3, 18, 1), 400, "corrida"),
		rec(at(5, 12, 2), 50, "receita"),
	}
}

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	posts := testPosts()
	clock := func() time.Time { return now }
	agg := stats.NewAggregator(brt).WithClock(clock)
	recs := freeze.NewService(posts, &memCache{entries: map[string]*models.RecommendationCache{}}, agg,
		recommend.NewGenerator(recommend.DefaultConfig()),
		theme.NewSynthesizer(catalog.Default(), nil, theme.ModeFlex),
		freeze.Options{DefaultTarget: 3, PeriodDays: 90, Now: clock})
	plans := plan.NewService(&memPlans{plans: map[string]*models.WeeklyPlan{}}, plan.NewSanitizer(catalog.Default(), 1.8), brt, "instagram")

	planner := NewPlannerAPI(recs, plans, posts, agg, 90)
	planner.now = clock

	engine := gin.New()
	NewRouter(planner, nil).SetupRoutes(engine)
	return engine
}

type rpcResult struct {
	Result json.RawMessage `json:"result"`
	Error  *JSONRPCError   `json:"error"`
}

func call(t *testing.T, engine *gin.Engine, method string, params interface{}) rpcResult {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	return post(t, engine, body)
}

func post(t *testing.T, engine *gin.Engine, body []byte) rpcResult {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res rpcResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("bad response %s: %v", w.Body.String(), err)
	}
	return res
}

func TestGetRecommendationsFreezes(t *testing.T) {
	engine := newTestEngine(t)
	params := map[string]interface{}{"user_id": "ana", "week_start": "2024-06-06"}

	var first, second struct {
		Recommendations []models.RecommendationSlot `json:"recommendations"`
		Heatmap         []models.HeatmapCell        `json:"heatmap"`
		Cached          bool                        `json:"cached"`
		FrozenAt        *time.Time                  `json:"frozen_at"`
		AlgoVersion     string                      `json:"algo_version"`
		Partial         bool                        `json:"partial"`
	}

	res := call(t, engine, "planner.get_recommendations", params)
	if res.Error != nil {
		t.Fatalf("unexpected error %+v", res.Error)
	}
	_ = json.Unmarshal(res.Result, &first)
	res = call(t, engine, "planner.get_recommendations", params)
	_ = json.Unmarshal(res.Result, &second)

	if first.Cached || !second.Cached {
		t.Errorf("cached flags = %v, %v", first.Cached, second.Cached)
	}
	if len(first.Recommendations) != 3 || first.AlgoVersion == "" || first.FrozenAt == nil {
		t.Errorf("unexpected first response %+v", first)
	}
	a, _ := json.Marshal(first.Recommendations)
	b, _ := json.Marshal(second.Recommendations)
	if !bytes.Equal(a, b) {
		t.Errorf("recommendations changed between calls:\n%s\n%s", a, b)
	}
}

func TestJSONRPCErrors(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{not json`, ErrParseError},
		{"bad version", `{"jsonrpc":"1.0","id":1,"method":"planner.get_plan","params":{}}`, ErrInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"planner.nope","params":{}}`, ErrMethodNotFound},
		{"missing user", `{"jsonrpc":"2.0","id":1,"method":"planner.get_plan","params":{}}`, ErrInvalidParams},
		{"bad week", `{"jsonrpc":"2.0","id":1,"method":"planner.get_plan","params":{"user_id":"ana","week_start":"next week"}}`, ErrInvalidParams},
		{"bad metric", `{"jsonrpc":"2.0","id":1,"method":"planner.get_block_stats","params":{"user_id":"ana","metric":"revenue"}}`, ErrInvalidParams},
		{"too many slots", `{"jsonrpc":"2.0","id":1,"method":"planner.get_recommendations","params":{"user_id":"ana","target_slots_per_week":50}}`, ErrInvalidParams},
		{"params not an object", `{"jsonrpc":"2.0","id":1,"method":"planner.get_plan","params":[1,2]}`, ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := post(t, engine, []byte(tt.body))
			if res.Error == nil {
				t.Fatalf("expected error code %d, got result %s", tt.code, res.Result)
			}
			if res.Error.Code != tt.code {
				t.Errorf("code = %d, want %d (%v)", res.Error.Code, tt.code, res.Error.Data)
			}
		})
	}
}

func TestSaveAndGetPlan(t *testing.T) {
	engine := newTestEngine(t)

	res := call(t, engine, "planner.get_plan", map[string]interface{}{"user_id": "ana", "week_start": "2024-06-03"})
	if res.Error != nil || (len(res.Result) > 0 && string(res.Result) != "null") {
		t.Fatalf("expected null plan, got %s %+v", res.Result, res.Error)
	}

	res = call(t, engine, "planner.save_plan", map[string]interface{}{
		"user_id":    "ana",
		"week_start": "2024-06-05",
		"slots": []interface{}{
			map[string]interface{}{"day_of_week": 1, "block_start_hour": 10, "title": "off grid"},
			map[string]interface{}{"day_of_week": 2, "block_start_hour": 12, "title": "kept"},
			map[string]interface{}{"day_of_week": 2, "block_start_hour": 12, "title": "duplicate"},
		},
	})
	if res.Error != nil {
		t.Fatalf("save_plan: %+v", res.Error)
	}

	res = call(t, engine, "planner.get_plan", map[string]interface{}{"user_id": "ana", "week_start": "2024-06-09"})
	var got models.WeeklyPlan
	if err := json.Unmarshal(res.Result, &got); err != nil {
		t.Fatalf("decode plan: %v (%s)", err, res.Result)
	}
	if len(got.Slots) != 1 || got.Slots[0].Title != "kept" || got.Slots[0].Status != models.SlotPlanned {
		t.Errorf("slots = %+v", got.Slots)
	}
	if got.Platform != "instagram" {
		t.Errorf("platform = %s", got.Platform)
	}
}

func TestGetBlockStats(t *testing.T) {
	engine := newTestEngine(t)

	res := call(t, engine, "planner.get_block_stats", map[string]interface{}{"user_id": "ana"})
	var blocks BlockStatsResult
	if err := json.Unmarshal(res.Result, &blocks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if blocks.Metric != "views" || blocks.PeriodDays != 90 || len(blocks.Blocks) != 3 {
		t.Fatalf("unexpected result %+v", blocks)
	}
	if b := blocks.Blocks[0]; b.DayOfWeek != 1 || b.BlockStartHour != 9 || b.Avg != 200 || b.Count != 2 {
		t.Errorf("monday 09:00 = %+v", b)
	}

	res = call(t, engine, "planner.get_block_stats", map[string]interface{}{"user_id": "ana", "dimension": "proposal"})
	var cats BlockStatsResult
	_ = json.Unmarshal(res.Result, &cats)
	if len(cats.Categories) != 3 || cats.Categories[0].Label != "tips" {
		t.Errorf("categories = %+v", cats.Categories)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	engine := newTestEngine(t)
	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, w.Code)
		}
	}
}

type failingCheck struct{ err error }

func (f failingCheck) Health(context.Context) error { return f.err }

func TestHealthReportsDependencies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var disabled *cache.Cache

	tests := []struct {
		name   string
		checks map[string]HealthChecker
		code   int
		status string
		deps   map[string]string
	}{
		{"all fine", map[string]HealthChecker{"database": failingCheck{}, "redis": disabled}, http.StatusOK, "OK",
			map[string]string{"database": "OK", "redis": "disabled", "text_generator": "open"}},
		{"database down", map[string]HealthChecker{"database": failingCheck{err: errors.New("connection refused")}}, http.StatusServiceUnavailable, "DEGRADED",
			map[string]string{"database": "connection refused", "text_generator": "open"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			NewRouter(nil, tt.checks).WithStatus("text_generator", func() string { return "open" }).SetupRoutes(engine)

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.code {
				t.Errorf("code = %d, want %d", w.Code, tt.code)
			}

			var body struct {
				Status       string            `json:"status"`
				Dependencies map[string]string `json:"dependencies"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.status {
				t.Errorf("status = %s, want %s", body.Status, tt.status)
			}
			for name, want := range tt.deps {
				if got := body.Dependencies[name]; got != want {
					t.Errorf("%s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestInflightSupersedes(t *testing.T) {
	f := newInflight()
	first, doneFirst := f.begin(context.Background(), inflightKey("ana", "grid"))
	second, doneSecond := f.begin(context.Background(), inflightKey("ana", "grid"))
	other, doneOther := f.begin(context.Background(), inflightKey("ana", "list"))

	if first.Err() == nil {
		t.Errorf("first request should be cancelled by the second")
	}
	if second.Err() != nil || other.Err() != nil {
		t.Errorf("latest requests must stay live")
	}

	doneFirst()
	if f.size() != 2 {
		t.Errorf("finishing a superseded request must not drop its successor")
	}
	doneSecond()
	doneOther()
	if f.size() != 0 {
		t.Errorf("registry not empty: %d", f.size())
	}
}
