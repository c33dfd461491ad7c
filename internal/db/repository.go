package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/pkg/telemetry"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) span(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, "db."+name, trace.WithAttributes(attribute.String("user_id", userID)))
}

// PostRepository reads creator posts
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// ListPosts returns a creator's posts published in [from, to), oldest first,
// decoded into records.
func (r *PostRepository) ListPosts(ctx context.Context, userID string, from, to time.Time) ([]models.PostRecord, error) {
	ctx, span := r.span(ctx, "posts.list", userID)
	defer span.End()

	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND posted_at >= ? AND posted_at < ?", userID, from.UTC(), to.UTC()).
		Order("posted_at ASC").
		Find(&posts).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list posts for %s: %w", userID, err)
	}

	records := make([]models.PostRecord, 0, len(posts))
	for i := range posts {
		records = append(records, posts[i].Record())
	}
	return records, nil
}

// ActiveUsers returns creators with at least one post since the given
// instant, sorted.
func (r *PostRepository) ActiveUsers(ctx context.Context, since time.Time) ([]string, error) {
	var users []string
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("posted_at >= ?", since.UTC()).
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return users, nil
}

// Create inserts a post. The planner never writes posts in production;
// fixtures and local seeding use this.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	post.PostedAt = post.PostedAt.UTC()
	return r.db.WithContext(ctx).Create(post).Error
}

// PlanRepository stores weekly plans
type PlanRepository struct {
	*Repository
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(repo *Repository) *PlanRepository {
	return &PlanRepository{Repository: repo}
}

// Get returns the plan for (user, platform, week), or nil when none was
// saved.
func (r *PlanRepository) Get(ctx context.Context, userID, platform string, weekStart time.Time) (*models.WeeklyPlan, error) {
	ctx, span := r.span(ctx, "plans.get", userID)
	defer span.End()

	var plan models.WeeklyPlan
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND platform = ? AND week_start = ?", userID, platform, weekStart.UTC()).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return &plan, nil
}

// Upsert replaces the whole plan for its (user, platform, week) key. An
// existing row keeps its id and creation time; the slot list is swapped
// wholesale.
func (r *PlanRepository) Upsert(ctx context.Context, plan *models.WeeklyPlan) error {
	ctx, span := r.span(ctx, "plans.upsert", plan.UserID)
	defer span.End()

	plan.WeekStart = plan.WeekStart.UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.WeeklyPlan
		err := tx.Select("id", "created_at").
			Where("user_id = ? AND platform = ? AND week_start = ?", plan.UserID, plan.Platform, plan.WeekStart).
			First(&existing).Error
		switch {
		case err == nil:
			plan.ID = existing.ID
			plan.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			if plan.ID == uuid.Nil {
				plan.ID = uuid.New()
			}
		default:
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "platform"}, {Name: "week_start"}},
			DoUpdates: clause.AssignmentColumns([]string{"slots", "updated_at"}),
		}).Create(plan).Error
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// RecommendationCacheRepository stores frozen recommendation sets
type RecommendationCacheRepository struct {
	*Repository
}

// NewRecommendationCacheRepository creates a new cache repository
func NewRecommendationCacheRepository(repo *Repository) *RecommendationCacheRepository {
	return &RecommendationCacheRepository{Repository: repo}
}

// Get returns the entry for (user, week) whatever its algorithm version, or
// nil when there is none.
func (r *RecommendationCacheRepository) Get(ctx context.Context, userID string, weekStart time.Time) (*models.RecommendationCache, error) {
	ctx, span := r.span(ctx, "recommendation_cache.get", userID)
	defer span.End()

	var entry models.RecommendationCache
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND week_start = ?", userID, weekStart.UTC()).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load recommendation cache: %w", err)
	}
	return &entry, nil
}

// Upsert writes entry, overwriting any row for the same (user, week).
func (r *RecommendationCacheRepository) Upsert(ctx context.Context, entry *models.RecommendationCache) error {
	ctx, span := r.span(ctx, "recommendation_cache.upsert", entry.UserID)
	defer span.End()

	entry.WeekStart = entry.WeekStart.UTC()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "week_start"}},
		DoUpdates: clause.AssignmentColumns([]string{"recommendations", "heatmap", "frozen_at", "algo_version"}),
	}).Create(entry).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save recommendation cache: %w", err)
	}
	return nil
}
