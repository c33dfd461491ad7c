package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/postcadence/planner/internal/cache"
	"github.com/postcadence/planner/pkg/logging"
)

// HealthChecker is a dependency reported on /health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router sets up API routes
type Router struct {
	handler  *JSONRPCHandler
	planner  *PlannerAPI
	checks   map[string]HealthChecker
	statuses map[string]func() string
	logger   *zap.Logger
}

// NewRouter creates a new API router. checks are probed by /health; a nil
// entry is skipped.
func NewRouter(planner *PlannerAPI, checks map[string]HealthChecker) *Router {
	router := &Router{
		handler:  NewJSONRPCHandler(),
		planner:  planner,
		checks:   checks,
		statuses: make(map[string]func() string),
		logger:   logging.WithComponent("api-router"),
	}

	router.registerMethods()

	return router
}

// WithStatus reports fn under name on /health. Unlike checks, a status
// never degrades the overall result.
func (r *Router) WithStatus(name string, fn func() string) *Router {
	r.statuses[name] = fn
	return r
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.POST("/", r.handler.Handle)
}

func (r *Router) registerMethods() {
	r.handler.RegisterMethod("planner.get_recommendations", r.planner.GetRecommendations)
	r.handler.RegisterMethod("planner.get_plan", r.planner.GetPlan)
	r.handler.RegisterMethod("planner.save_plan", r.planner.SavePlan)
	r.handler.RegisterMethod("planner.get_block_stats", r.planner.GetBlockStats)
}

// healthHandler reports each dependency. A disabled cache is not a failure.
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range r.checks {
		if check == nil {
			continue
		}
		err := check.Health(ctx)
		switch {
		case err == nil:
			deps[name] = "OK"
		case errors.Is(err, cache.ErrCacheDisabled):
			deps[name] = "disabled"
		default:
			r.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	for name, fn := range r.statuses {
		deps[name] = fn()
	}

	overall := "OK"
	if status != http.StatusOK {
		overall = "DEGRADED"
	}
	c.JSON(status, gin.H{
		"status":       overall,
		"service":      "planner-api",
		"dependencies": deps,
	})
}
