package database

import (
	"fmt"
	"time"

	"github.com/zfogg/sidechain/ranking/internal/config"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"github.com/zfogg/sidechain/ranking/internal/models"
	"github.com/zfogg/sidechain/ranking/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open creates and configures the database connection for the content store
func Open(cfg config.DatabaseConfig, development bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		dialector = postgres.Open(cfg.URL)
	}

	gormLogger := gormlogger.Default.LogMode(gormlogger.Warn)
	if development {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Use(telemetry.GORMTracingPlugin()); err != nil {
		return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Log.Info("Database connected", zap.String("driver", cfg.Driver))
	return db, nil
}

// Migrate runs auto-migration for all models and creates the ranking indexes
func Migrate(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	createIndexes(db)

	logger.Log.Info("Database migrations completed")
	return nil
}

// createIndexes adds the composite indexes the ranking queries scan by.
// Every statement is portable between postgres and sqlite.
func createIndexes(db *gorm.DB) {
	statements := []string{
		// Window scans: posts published since T, per author
		"CREATE INDEX IF NOT EXISTS idx_posts_public_created ON posts (is_public, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_posts_user_created ON posts (user_id, created_at)",

		// Hashtag activity joins
		"CREATE INDEX IF NOT EXISTS idx_post_hashtags_hashtag_created ON post_hashtags (hashtag_id, created_at)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_post_hashtags_unique ON post_hashtags (post_id, hashtag_id)",

		// Follower deltas and velocity buckets
		"CREATE INDEX IF NOT EXISTS idx_follows_following_created ON follows (following_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_likes_post_created ON likes (post_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_comments_post_created ON comments (post_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_reposts_post_created ON reposts (post_id, created_at)",
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			logger.Log.Warn("Failed to create index", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database connectivity
func Health(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// OpenConnections reports the pool's open connection count for the metrics gauge
func OpenConnections(db *gorm.DB) int {
	if db == nil {
		return 0
	}
	sqlDB, err := db.DB()
	if err != nil {
		return 0
	}
	return sqlDB.Stats().OpenConnections
}
