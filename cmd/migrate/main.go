package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/zfogg/sidechain/ranking/internal/config"
	"github.com/zfogg/sidechain/ranking/internal/database"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	default:
		fmt.Println("Usage: migrate [up|status]")
		fmt.Println("  up     - Create or update the content store schema and ranking indexes")
		fmt.Println("  status - Check connectivity and report the configured driver")
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	_ = logger.Initialize(cfg.LogLevel, "-")
	return cfg
}

func runMigrationsUp() {
	cfg := loadConfig()
	defer logger.Close()

	logger.Log.Info("Connecting to database...", zap.String("driver", cfg.Database.Driver))
	db, err := database.Open(cfg.Database, false)
	if err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Migration failed", err)
	}
	logger.Log.Info("All migrations completed successfully")
}

func showStatus() {
	cfg := loadConfig()
	defer logger.Close()

	db, err := database.Open(cfg.Database, false)
	if err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	defer database.Close(db)

	if err := database.Health(db); err != nil {
		logger.FatalWithFields("Database unreachable", err)
	}
	logger.Log.Info("Database reachable",
		zap.String("driver", cfg.Database.Driver),
		zap.Int("open_connections", database.OpenConnections(db)))
}
