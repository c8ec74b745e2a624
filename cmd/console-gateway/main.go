package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/cdrp/console-gateway/api/swagger"
	"github.com/cdrp/console-gateway/internal/handler"
	internalmiddleware "github.com/cdrp/console-gateway/internal/middleware"
	"github.com/cdrp/console-gateway/internal/repository"
	"github.com/cdrp/console-gateway/internal/service"
	"github.com/cdrp/console-gateway/pkg/backend"
	"github.com/cdrp/console-gateway/pkg/cache"
	"github.com/cdrp/console-gateway/pkg/config"
	"github.com/cdrp/console-gateway/pkg/database"
	"github.com/cdrp/console-gateway/pkg/logger"
	corsmiddleware "github.com/cdrp/console-gateway/pkg/middleware/cors"
	reqidmiddleware "github.com/cdrp/console-gateway/pkg/middleware/requestid"
	"github.com/cdrp/console-gateway/pkg/storage"
)

// @title CDRP Console Gateway
// @version 1.0.0
// @description Screen state gateway for the CDRP administration console
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	client, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, metrics, logr)
	if err != nil {
		logr.Fatal("invalid backend configuration", zap.Error(err))
	}

	var redisClient *redis.Client
	var detailCache *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("detail cache disabled: redis unavailable", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			detailCache = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Cache.TTL, logr, true)
		}
	}

	var db *sqlx.DB
	var audit *service.AuditService
	if cfg.Audit.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect audit database", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		auditRepo := repository.NewAuditRepository(db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			logr.Fatal("failed to prepare audit schema", zap.Error(err))
		}
		audit = service.NewAuditService(auditRepo, logr)
	}

	var scheduler service.Scheduler
	if cfg.Screens.ReconcileEnabled {
		queue := service.NewQueueScheduler(service.QueueSchedulerConfig{
			Workers:    cfg.Screens.ReconcileWorkers,
			BufferSize: cfg.Screens.ReconcileBuffer,
			Timeout:    cfg.Backend.Timeout,
		}, logr)
		queue.Start(ctx)
		defer queue.Stop()
		scheduler = queue
	}

	registry := service.NewScreenRegistry(service.RegistryConfig{
		DefaultPageSize: cfg.Screens.DefaultPageSize,
		MaxPageSize:     cfg.Screens.MaxPageSize,
		IdleTTL:         cfg.Screens.IdleTTL,
	}, service.ScreenDeps{
		Client:    client,
		Cache:     detailCache,
		Audit:     audit,
		Metrics:   metrics,
		Scheduler: scheduler,
		Logger:    logr,
	})
	defer registry.CloseAll()
	go registry.Run(ctx, cfg.Screens.SweepInterval)

	var exporter handler.ScreenExporter
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		exports := service.NewExportService(store, storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL), service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr)
		go exports.RunCleanup(ctx, cfg.Exports.CleanupInterval)
		exporter = exports
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(internalmiddleware.Metrics(metrics))
	}

	metricsHandler := handler.NewMetricsHandler(metrics, readiness(redisClient, db))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	screenHandler := handler.NewScreenHandler(registry, exporter, cfg.Screens.MaxUploadBytes)
	adminHandler := handler.NewAdminHandler(registry, audit, metrics)
	sessions := service.NewSessionService(cfg.JWT.Secret, logr)
	handler.RegisterRoutes(r.Group(cfg.APIPrefix), internalmiddleware.Session(sessions), screenHandler, adminHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func readiness(redisClient *redis.Client, db *sqlx.DB) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if redisClient != nil {
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
		}
		return nil
	}
}
