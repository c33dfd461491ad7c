package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/postcadence/planner/internal/models"
	"github.com/postcadence/planner/pkg/config"
	"github.com/postcadence/planner/pkg/logging"
)

// zapWriter adapts zap.Logger to logger.Writer interface
type zapWriter struct {
	logger *zap.Logger
}

func (w *zapWriter) Printf(format string, args ...interface{}) {
	w.logger.Sugar().Infof(format, args...)
}

// DB wraps GORM database connection
type DB struct {
	*gorm.DB
}

// gormLogLevel maps the service log level onto GORM's, one step quieter.
func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.Info
	case "info":
		return logger.Warn
	case "warn", "warning":
		return logger.Error
	case "error":
		return logger.Silent
	default:
		return logger.Warn
	}
}

func gormConfig(logLevel string) *gorm.Config {
	writer := &zapWriter{logger: logging.WithComponent("gorm")}
	return &gorm.Config{
		Logger: logger.New(writer, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(logLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// New creates a new database connection
func New(cfg *config.DatabaseConfig, logLevel string) (*DB, error) {
	db, err := Open(postgres.Open(cfg.URL), logLevel)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.GetLogger().Info("Database connection established")

	return db, nil
}

// Open opens a connection with an arbitrary dialector. Tests use it with
// sqlite.
func Open(dialector gorm.Dialector, logLevel string) (*DB, error) {
	db, err := gorm.Open(dialector, gormConfig(logLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{DB: db}, nil
}

// Migrate creates or updates the tables the planner owns. creator_posts
// belongs to the ingestion service and is only migrated when withPosts is
// set, for local development.
func (d *DB) Migrate(ctx context.Context, withPosts bool) error {
	tables := []interface{}{&models.WeeklyPlan{}, &models.RecommendationCache{}}
	if withPosts {
		tables = append(tables, &models.Post{})
	}
	if err := d.DB.WithContext(ctx).AutoMigrate(tables...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database health
func (d *DB) Health(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
