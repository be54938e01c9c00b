package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/sidechain/ranking/internal/cache"
	"github.com/zfogg/sidechain/ranking/internal/config"
	"github.com/zfogg/sidechain/ranking/internal/database"
	"github.com/zfogg/sidechain/ranking/internal/feed"
	"github.com/zfogg/sidechain/ranking/internal/handlers"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"github.com/zfogg/sidechain/ranking/internal/metrics"
	"github.com/zfogg/sidechain/ranking/internal/middleware"
	"github.com/zfogg/sidechain/ranking/internal/ranking"
	"github.com/zfogg/sidechain/ranking/internal/scheduler"
	"github.com/zfogg/sidechain/ranking/internal/scoring"
	"github.com/zfogg/sidechain/ranking/internal/social"
	"github.com/zfogg/sidechain/ranking/internal/store"
	"github.com/zfogg/sidechain/ranking/internal/telemetry"
	"github.com/zfogg/sidechain/ranking/internal/trending"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "sidechain-ranking"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Log.Info("=== Sidechain ranking service starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("cache_backend", cfg.Cache.Backend))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tp, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		Enabled:      cfg.Tracing.Enabled,
		SamplingRate: cfg.Tracing.SamplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled, failed to initialize exporter", err)
	}

	metrics.Initialize()

	db, err := database.Open(cfg.Database, cfg.IsDevelopment())
	if err != nil {
		logger.FatalWithFields("Failed to initialize database", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}

	backend, redisBackend, err := openCacheBackend(ctx, cfg)
	if err != nil {
		logger.FatalWithFields("Failed to initialize cache backend", err)
	}
	if redisBackend != nil {
		defer redisBackend.Close()
	}

	layer := cache.NewLayer(backend, cache.Options{StaleTTL: cfg.Cache.StaleTTL})
	contentStore := store.NewGormStore(db)

	builder := ranking.NewBuilder(contentStore, ranking.Config{
		StoreTimeout: cfg.Ranking.StoreTimeout,
		HashtagWeights: scoring.HashtagWeights{
			Recent:     cfg.Ranking.HashtagRecentWeight,
			Engagement: cfg.Ranking.HashtagEngagementWeight,
		},
	})
	trendingService := trending.NewService(builder, layer, trending.Config{
		WarmLimit:     cfg.Refresh.WarmLimit,
		WarmTimeframe: cfg.Refresh.WarmTimeframe,
	})
	feedService := feed.NewService(contentStore, layer, feed.Config{StoreTimeout: cfg.Ranking.StoreTimeout})
	socialService := social.NewService(contentStore, layer, cfg.Ranking.StoreTimeout)

	if cfg.Refresh.Enabled {
		job := scheduler.NewRefreshJob(trendingService, cfg.Refresh.Interval)
		job.Start()
		defer job.Stop()
	}

	go reportConnections(ctx, db)

	h := handlers.NewHandlers(trendingService, feedService, socialService, layer)
	h.AddHealthCheck("database", func(ctx context.Context) error { return database.Health(db) })
	if redisBackend != nil {
		h.AddHealthCheck("redis", redisBackend.Ping)
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", middleware.ActorHeader, middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.RequestIDMiddleware(), middleware.ActorMiddleware())
	r.Use(middleware.TracingMiddleware(serviceName)...)
	r.Use(middleware.GinLoggerMiddleware(), middleware.MetricsMiddleware(), gin.Recovery())

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.RegisterRoutes(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Ranking service listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}
	stop()
	if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
		logger.WarnWithFields("Tracer shutdown failed", err)
	}

	logger.Log.Info("Server exited")
}

// openCacheBackend builds the configured cache backend. The redis backend is
// returned separately so the caller can close it and ping it for health.
func openCacheBackend(ctx context.Context, cfg *config.Config) (cache.Backend, *cache.RedisBackend, error) {
	memory := func(maxTTL time.Duration) *cache.MemoryBackend {
		return cache.NewMemoryBackend(cfg.Cache.L1Size, maxTTL)
	}

	if cfg.Cache.Backend == "memory" {
		return memory(cfg.Cache.StaleTTL), nil, nil
	}

	redisBackend, err := cache.NewRedisBackend(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}

	if cfg.Cache.Backend == "redis" {
		return redisBackend, redisBackend, nil
	}

	tiered := cache.NewTieredBackend(memory(cfg.Cache.L1TTL), redisBackend, cfg.Cache.L1TTL, redisBackend)
	if err := tiered.Listen(ctx); err != nil {
		_ = redisBackend.Close()
		return nil, nil, fmt.Errorf("subscribe to invalidations: %w", err)
	}
	return tiered, redisBackend, nil
}

// reportConnections samples the pool size into the connections gauge
func reportConnections(ctx context.Context, db *gorm.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetDatabaseConnections("content", database.OpenConnections(db))
		}
	}
}
