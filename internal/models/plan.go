package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SlotStatus is the lifecycle state of a planned slot.
type SlotStatus string

const (
	SlotPlanned   SlotStatus = "planned"
	SlotDrafted   SlotStatus = "drafted"
	SlotScheduled SlotStatus = "scheduled"
	SlotPosted    SlotStatus = "posted"
	SlotSkipped   SlotStatus = "skipped"
)

// SlotStatuses lists the valid statuses.
var SlotStatuses = []SlotStatus{SlotPlanned, SlotDrafted, SlotScheduled, SlotPosted, SlotSkipped}

// PlanSlot is one user-owned slot of a weekly plan.
type PlanSlot struct {
	ID              uuid.UUID       `json:"id"`
	DayOfWeek       int             `json:"day_of_week"`
	BlockStartHour  int             `json:"block_start_hour"`
	Format          string          `json:"format,omitempty"`
	Categories      Categories      `json:"categories"`
	Status          SlotStatus      `json:"status"`
	Title           string          `json:"title,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ExpectedMetrics ExpectedMetrics `json:"expected_metrics"`
	ThemeKeyword    string          `json:"theme_keyword,omitempty"`
	Themes          []string        `json:"themes"`
}

// WeeklyPlan is the schedule a creator saved for one week. Saving replaces
// the whole slot list.
type WeeklyPlan struct {
	ID        uuid.UUID                     `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	UserID    string                        `gorm:"type:varchar(64);not null;uniqueIndex:idx_weekly_plan_key,priority:1;column:user_id" json:"user_id"`
	Platform  string                        `gorm:"type:varchar(32);not null;uniqueIndex:idx_weekly_plan_key,priority:2;column:platform" json:"platform"`
	WeekStart time.Time                     `gorm:"not null;uniqueIndex:idx_weekly_plan_key,priority:3;column:week_start" json:"week_start"`
	Slots     datatypes.JSONSlice[PlanSlot] `gorm:"column:slots" json:"slots"`
	CreatedAt time.Time                     `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time                     `gorm:"not null;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for WeeklyPlan
func (WeeklyPlan) TableName() string {
	return "weekly_plans"
}
