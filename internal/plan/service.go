package plan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/internal/timeblock"
	"github.com/postcadence/planner/pkg/logging"
	"github.com/postcadence/planner/pkg/telemetry"
)

// ErrInvalidInput is returned for requests that cannot identify a plan.
var ErrInvalidInput = errors.New("invalid plan request")

// Store persists weekly plans keyed by (user, platform, week). Get returns
// nil without error when no plan exists.
type Store interface {
	Get(ctx context.Context, userID, platform string, weekStart time.Time) (*models.WeeklyPlan, error)
	Upsert(ctx context.Context, plan *models.WeeklyPlan) error
}

// SaveRequest is a full replacement of one week's slots.
type SaveRequest struct {
	UserID    string
	Platform  string
	WeekStart time.Time
	Slots     []map[string]interface{}
}

// Service reads and saves weekly plans.
type Service struct {
	store           Store
	sanitizer       *Sanitizer
	loc             *time.Location
	defaultPlatform string
	logger          *zap.Logger
}

// NewService creates a plan service. Weeks are normalized to Monday 00:00
// in loc.
func NewService(store Store, sanitizer *Sanitizer, loc *time.Location, defaultPlatform string) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if defaultPlatform == "" {
		defaultPlatform = "instagram"
	}
	return &Service{
		store:           store,
		sanitizer:       sanitizer,
		loc:             loc,
		defaultPlatform: defaultPlatform,
		logger:          logging.WithComponent("plan"),
	}
}

func (s *Service) platform(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return s.defaultPlatform
	}
	return p
}

// GetPlan returns the saved plan for the week containing weekStart, or nil.
func (s *Service) GetPlan(ctx context.Context, userID, platform string, weekStart time.Time) (*models.WeeklyPlan, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	plan, err := s.store.Get(ctx, userID, s.platform(platform), timeblock.WeekStart(weekStart, s.loc))
	if err != nil || plan == nil {
		return plan, err
	}
	plan.WeekStart = plan.WeekStart.In(s.loc)
	return plan, nil
}

// SavePlan sanitizes the submitted slots and replaces the stored plan with
// them.
func (s *Service) SavePlan(ctx context.Context, req SaveRequest) (*models.WeeklyPlan, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}

	slots, dropped := s.sanitizer.Sanitize(req.Slots)
	if dropped > 0 {
		logging.WithUser(s.logger, req.UserID).Info("Dropped invalid or duplicate slots",
			zap.Int("submitted", len(req.Slots)),
			zap.Int("dropped", dropped))
		telemetry.RecordDroppedSlots(ctx, dropped)
	}

	plan := &models.WeeklyPlan{
		UserID:    req.UserID,
		Platform:  s.platform(req.Platform),
		WeekStart: timeblock.WeekStart(req.WeekStart, s.loc),
		Slots:     datatypes.JSONSlice[models.PlanSlot](slots),
	}
	if err := s.store.Upsert(ctx, plan); err != nil {
		return nil, err
	}
	plan.WeekStart = plan.WeekStart.In(s.loc)
	return plan, nil
}
