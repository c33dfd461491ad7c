package models

import (
	"time"

	"gorm.io/datatypes"
)

// Categories are the categorical picks attached to a slot, as canonical ids.
type Categories struct {
	Context   []string `json:"context"`
	Proposal  []string `json:"proposal"`
	Reference []string `json:"reference"`
	Tone      string   `json:"tone,omitempty"`
}

// ExpectedMetrics is the performance a slot is expected to reach.
type ExpectedMetrics struct {
	ViewsP50  int64 `json:"views_p50"`
	ViewsP90  int64 `json:"views_p90"`
	SharesP50 int64 `json:"shares_p50"`
}

// RecommendationSlot is one suggested posting slot. It is never persisted
// as a plan; users copy it into their WeeklyPlan explicitly.
type RecommendationSlot struct {
	DayOfWeek       int             `json:"day_of_week"`
	BlockStartHour  int             `json:"block_start_hour"`
	Format          string          `json:"format"`
	Categories      Categories      `json:"categories"`
	ExpectedMetrics ExpectedMetrics `json:"expected_metrics"`
	Score           float64         `json:"score"`
	SampleCount     int             `json:"sample_count"`
	ThemeKeyword    string          `json:"theme_keyword"`
	Themes          []string        `json:"themes"`
}

// HeatmapCell is the performance of one grid cell.
type HeatmapCell struct {
	DayOfWeek      int     `json:"day_of_week"`
	BlockStartHour int     `json:"block_start_hour"`
	Avg            float64 `json:"avg"`
	Count          int     `json:"count"`
	Intensity      float64 `json:"intensity"`
}

// RecommendationCache is a frozen weekly recommendation set. Rows written
// by an older algorithm version stay in place and are ignored on read.
type RecommendationCache struct {
	ID              int64                                   `gorm:"primaryKey;autoIncrement;column:id"`
	UserID          string                                  `gorm:"type:varchar(64);not null;uniqueIndex:idx_recommendation_cache_key,priority:1;column:user_id"`
	WeekStart       time.Time                               `gorm:"not null;uniqueIndex:idx_recommendation_cache_key,priority:2;column:week_start"`
	Recommendations datatypes.JSONSlice[RecommendationSlot] `gorm:"column:recommendations"`
	Heatmap         datatypes.JSONSlice[HeatmapCell]        `gorm:"column:heatmap"`
	FrozenAt        time.Time                               `gorm:"not null;column:frozen_at"`
	AlgoVersion     string                                  `gorm:"type:varchar(32);not null;column:algo_version"`
}

// TableName specifies the table name for RecommendationCache
func (RecommendationCache) TableName() string {
	return "recommendation_cache"
}
