package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	config "github.com/hotvideos/video-info-service/configs"
	"github.com/hotvideos/video-info-service/internal/application/services"
	"github.com/hotvideos/video-info-service/internal/core/ports"
	"github.com/hotvideos/video-info-service/internal/infrastructure/cache"
	"github.com/hotvideos/video-info-service/internal/infrastructure/db"
	"github.com/hotvideos/video-info-service/internal/infrastructure/dynamo"
	"github.com/hotvideos/video-info-service/internal/infrastructure/health"
	"github.com/hotvideos/video-info-service/internal/infrastructure/httpserver"
	"github.com/hotvideos/video-info-service/internal/infrastructure/metrics"
	"github.com/hotvideos/video-info-service/internal/infrastructure/redis"
	"github.com/hotvideos/video-info-service/internal/infrastructure/repositories"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Setup logger
	logger := logrus.New()
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	logger.WithField("backend", cfg.Backend.Driver).Info("Starting video info service...")

	store, checkers, closeStore := newBackend(cfg, logger)
	defer closeStore()

	cacheMetrics, err := metrics.NewCacheMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("Failed to register cache metrics:", err)
	}

	videoInfoCache, err := cache.New(store, cache.Options{
		MaxSizeBytes:   cfg.Cache.MaxSizeBytes,
		MaxAge:         cfg.Cache.MaxAge,
		FetchTimeout:   cfg.Cache.FetchTimeout,
		CoalesceMisses: cfg.Cache.CoalesceMisses,
		Metrics:        cacheMetrics,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Failed to create video info cache:", err)
	}
	logger.WithFields(logrus.Fields{
		"max_size_bytes":  cfg.Cache.MaxSizeBytes,
		"max_age":         cfg.Cache.MaxAge.String(),
		"coalesce_misses": cfg.Cache.CoalesceMisses,
	}).Info("Video info cache configured")

	videoInfoService := services.NewVideoInfoService(videoInfoCache, logger)

	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
	}

	server := httpserver.NewServer(serverConfig, logger, httpserver.ServerDeps{
		VideoInfoService: videoInfoService,
		VideoInfoCache:   videoInfoCache,
		HealthCheckers:   checkers,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// SIGHUP drops every cached entry so the next requests read fresh data from the backend
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	purgeCtx, stopPurge := context.WithCancel(context.Background())
	defer stopPurge()
	go purgeOnSignal(purgeCtx, hup, videoInfoCache, logger)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

// purgeOnSignal purges the cache each time sig fires, until ctx is done.
func purgeOnSignal(ctx context.Context, sig <-chan os.Signal, c ports.VideoInfoCache, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sig:
			before := c.Stats()
			c.Purge()
			logger.WithFields(logrus.Fields{
				"signal":  s.String(),
				"entries": before.Entries,
				"bytes":   before.Bytes,
			}).Info("Video info cache purged")
		}
	}
}

// newBackend connects the configured backend store and returns its health checks and a close func.
func newBackend(cfg *config.Config, logger *logrus.Logger) (ports.VideoInfoStore, []ports.HealthChecker, func()) {
	switch cfg.Backend.Driver {
	case config.BackendPostgres:
		database, err := db.NewDatabaseWithConfig(&cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database:", err)
		}
		logger.Info("Connected to database successfully")
		if err := database.Migrate(cfg.Database.MigrationsPath); err != nil {
			logger.Warn("Failed to run migrations:", err)
		}
		return repositories.NewVideoInfoRepository(database.DB),
			[]ports.HealthChecker{health.NewDBHealthChecker(database)},
			func() { _ = database.Close() }

	case config.BackendRedis:
		redisClient, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis:", err)
		}
		logger.Info("Connected to Redis successfully")
		return redis.NewVideoInfoStore(redisClient, cfg.Redis.KeyPrefix),
			[]ports.HealthChecker{health.NewRedisHealthChecker(redisClient)},
			func() { _ = redisClient.Close() }

	default:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := dynamo.NewDynamoDBClient(ctx, &cfg.DynamoDB)
		if err != nil {
			logger.Fatal("Failed to create DynamoDB client:", err)
		}
		store := dynamo.NewVideoInfoStore(client, cfg.DynamoDB.Table, cfg.DynamoDB.KeyAttribute, cfg.DynamoDB.ValueAttribute)
		logger.WithFields(logrus.Fields{"table": cfg.DynamoDB.Table, "region": cfg.DynamoDB.Region}).Info("DynamoDB client configured")
		return store, []ports.HealthChecker{health.NewDynamoDBHealthChecker(store)}, func() {}
	}
}
