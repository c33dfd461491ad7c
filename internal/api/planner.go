package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postcadence/planner/internal/catalog"
	"github.com/postcadence/planner/internal/freeze"
	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/plan"
	"github.com/postcadence/planner/internal/stats"
	"github.com/postcadence/planner/internal/timeblock"
)

// PlannerAPI serves the planner.* methods.
type PlannerAPI struct {
	recommendations *freeze.Service
	plans           *plan.Service
	posts           freeze.PostSource
	agg             *stats.Aggregator
	periodDays      int
	inflight        *inflight
	now             func() time.Time
}

// NewPlannerAPI creates the planner API.
func NewPlannerAPI(recs *freeze.Service, plans *plan.Service, posts freeze.PostSource, agg *stats.Aggregator, periodDays int) *PlannerAPI {
	if periodDays <= 0 {
		periodDays = stats.DefaultPeriodDays
	}
	return &PlannerAPI{
		recommendations: recs,
		plans:           plans,
		posts:           posts,
		agg:             agg,
		periodDays:      periodDays,
		inflight:        newInflight(),
		now:             time.Now,
	}
}

func decodeParams(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return InvalidParams(fmt.Errorf("invalid parameters format: %w", err))
	}
	return validateParams(out)
}

func (p *PlannerAPI) weekStart(s string) (time.Time, error) {
	ws, err := timeblock.ParseWeekStart(s, p.agg.Location(), p.now())
	if err != nil {
		return time.Time{}, InvalidParams(err)
	}
	return ws, nil
}

type recommendationsParams struct {
	UserID        string `json:"user_id" validate:"required,max=64"`
	WeekStart     string `json:"week_start"`
	TargetSlots   int    `json:"target_slots_per_week" validate:"gte=0,lte=21"`
	PeriodDays    int    `json:"period_days" validate:"gte=0,lte=730"`
	NoCache       bool   `json:"nocache"`
	DisableFreeze bool   `json:"disable_freeze"`
	Viewport      string `json:"viewport" validate:"max=64"`
}

// GetRecommendations handles planner.get_recommendations
func (p *PlannerAPI) GetRecommendations(c *gin.Context, raw json.RawMessage) (interface{}, error) {
	var params recommendationsParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	ws, err := p.weekStart(params.WeekStart)
	if err != nil {
		return nil, err
	}

	ctx, done := p.inflight.begin(c.Request.Context(), inflightKey(params.UserID, params.Viewport))
	defer done()

	return p.recommendations.Recommend(ctx, freeze.Request{
		UserID:        params.UserID,
		WeekStart:     ws,
		TargetSlots:   params.TargetSlots,
		PeriodDays:    params.PeriodDays,
		NoCache:       params.NoCache,
		DisableFreeze: params.DisableFreeze,
	})
}

type getPlanParams struct {
	UserID    string `json:"user_id" validate:"required,max=64"`
	Platform  string `json:"platform" validate:"max=32"`
	WeekStart string `json:"week_start"`
}

// GetPlan handles planner.get_plan. It returns null when nothing was saved
// for the week.
func (p *PlannerAPI) GetPlan(c *gin.Context, raw json.RawMessage) (interface{}, error) {
	var params getPlanParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	ws, err := p.weekStart(params.WeekStart)
	if err != nil {
		return nil, err
	}

	got, err := p.plans.GetPlan(c.Request.Context(), params.UserID, params.Platform, ws)
	if err != nil {
		return nil, planError(err)
	}
	if got == nil {
		return nil, nil
	}
	return got, nil
}

type savePlanParams struct {
	UserID    string                   `json:"user_id" validate:"required,max=64"`
	Platform  string                   `json:"platform" validate:"max=32"`
	WeekStart string                   `json:"week_start"`
	Slots     []map[string]interface{} `json:"slots" validate:"max=84"`
}

// SavePlan handles planner.save_plan
func (p *PlannerAPI) SavePlan(c *gin.Context, raw json.RawMessage) (interface{}, error) {
	var params savePlanParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	ws, err := p.weekStart(params.WeekStart)
	if err != nil {
		return nil, err
	}

	saved, err := p.plans.SavePlan(c.Request.Context(), plan.SaveRequest{
		UserID:    params.UserID,
		Platform:  params.Platform,
		WeekStart: ws,
		Slots:     params.Slots,
	})
	if err != nil {
		return nil, planError(err)
	}
	return saved, nil
}

func planError(err error) error {
	if errors.Is(err, plan.ErrInvalidInput) {
		return InvalidParams(err)
	}
	return err
}

type blockStatsParams struct {
	UserID     string `json:"user_id" validate:"required,max=64"`
	PeriodDays int    `json:"period_days" validate:"gte=0,lte=730"`
	Metric     string `json:"metric" validate:"omitempty,oneof=views likes comments shares saves reach"`
	Dimension  string `json:"dimension" validate:"omitempty,oneof=context proposal reference tone format"`
}

// BlockStatsResult is the planner.get_block_stats payload. Exactly one of
// Blocks and Categories is set.
type BlockStatsResult struct {
	Metric     string                    `json:"metric"`
	PeriodDays int                       `json:"period_days"`
	Dimension  string                    `json:"dimension,omitempty"`
	Blocks     []stats.BlockStat         `json:"blocks,omitempty"`
	Categories []stats.CategoryBlockStat `json:"categories,omitempty"`
}

// GetBlockStats handles planner.get_block_stats
func (p *PlannerAPI) GetBlockStats(c *gin.Context, raw json.RawMessage) (interface{}, error) {
	var params blockStatsParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	period := params.PeriodDays
	if period == 0 {
		period = p.periodDays
	}
	metric := params.Metric
	if metric == "" {
		metric = models.MetricViews
	}

	now := p.now()
	records, err := p.fetch(c.Request.Context(), params.UserID, now.AddDate(0, 0, -period), now)
	if err != nil {
		return nil, err
	}

	agg := p.agg.WithClock(func() time.Time { return now })
	result := &BlockStatsResult{Metric: metric, PeriodDays: period, Dimension: params.Dimension}
	if params.Dimension == "" {
		result.Blocks = agg.BlockAverages(records, period, metric)
		return result, nil
	}

	dim, err := catalog.ParseDimension(params.Dimension)
	if err != nil {
		return nil, InvalidParams(err)
	}
	result.Categories = agg.CategoryStatsByBlock(stats.Window(records, period, now), dim, metric)
	return result, nil
}

func (p *PlannerAPI) fetch(ctx context.Context, userID string, from, to time.Time) ([]models.PostRecord, error) {
	records, err := p.posts.ListPosts(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", freeze.ErrDataSourceUnavailable, err)
	}
	return records, nil
}
