package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/zfogg/sidechain/ranking/internal/config"
	"github.com/zfogg/sidechain/ranking/internal/database"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"github.com/zfogg/sidechain/ranking/internal/seed"
	"github.com/zfogg/sidechain/ranking/internal/store"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "dev":
		run(func(ctx context.Context, db *gorm.DB) error {
			_, err := seed.NewSeeder(store.NewGormStore(db), uint64(time.Now().UnixNano())).Seed(ctx, seed.DevPlan())
			return err
		})
	case "test":
		run(func(ctx context.Context, db *gorm.DB) error {
			_, err := seed.NewSeeder(store.NewGormStore(db), 1).Seed(ctx, seed.TestPlan())
			return err
		})
	case "clean":
		run(seed.Clean)
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with enough activity to trend")
		fmt.Println("  test  - Seed a small deterministic dataset")
		fmt.Println("  clean - Remove all content (use with caution)")
		os.Exit(1)
	}
}

func run(fn func(ctx context.Context, db *gorm.DB) error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	_ = logger.Initialize(cfg.LogLevel, "-")
	defer logger.Close()

	db, err := database.Open(cfg.Database, false)
	if err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Migration failed", err)
	}

	if err := fn(context.Background(), db); err != nil {
		logger.FatalWithFields("Seeding failed", err)
	}
	logger.Log.Info("Done")
}
