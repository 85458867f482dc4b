package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/media-moderation-api/api/swagger"
	"github.com/noah-isme/media-moderation-api/internal/event"
	"github.com/noah-isme/media-moderation-api/internal/handler"
	"github.com/noah-isme/media-moderation-api/internal/middleware"
	"github.com/noah-isme/media-moderation-api/internal/models"
	"github.com/noah-isme/media-moderation-api/internal/repository"
	"github.com/noah-isme/media-moderation-api/internal/service"
	"github.com/noah-isme/media-moderation-api/pkg/cache"
	"github.com/noah-isme/media-moderation-api/pkg/config"
	"github.com/noah-isme/media-moderation-api/pkg/database"
	"github.com/noah-isme/media-moderation-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/media-moderation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/media-moderation-api/pkg/middleware/requestid"
	"github.com/noah-isme/media-moderation-api/pkg/storage"
)

// @title Media Moderation API
// @version 0.1.0
// @description Asynchronous media moderation pipeline: classifier submissions, verdict callbacks, tiered storage, retry queue, and admin notifications.
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, verdict dedupe degrades to database checks", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var backend storage.Backend
	switch cfg.Storage.Backend {
	case "s3":
		backend, err = storage.NewS3Backend(ctx, storage.S3Options{
			Endpoint:  cfg.Storage.S3Endpoint,
			Region:    cfg.Storage.S3Region,
			Bucket:    cfg.Storage.S3Bucket,
			AccessKey: cfg.Storage.S3AccessKey,
			SecretKey: cfg.Storage.S3SecretKey,
		})
	default:
		backend, err = storage.NewLocalBackend(cfg.Storage.BaseDir)
	}
	if err != nil {
		logr.Sugar().Fatalw("storage backend init failed", "backend", cfg.Storage.Backend, "error", err)
	}

	assetRepo := repository.NewMediaAssetRepository(db)
	retryRepo := repository.NewRetryOperationRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	mediaLogRepo := repository.NewMediaLogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metrics := service.NewMetricsService()
	medialog := service.NewMediaLogService(mediaLogRepo, logr, cfg.Retention.MediaLogs)
	escalation := service.NewEscalationService(logr, service.EscalationConfig{
		EmailEnabled:   cfg.Notifications.EmailEnabled,
		WebhookEnabled: cfg.Notifications.WebhookEnabled,
		EmailFrom:      cfg.Notifications.EmailFrom,
		Recipients:     cfg.Notifications.EmailRecipients,
		SMTPAddr:       cfg.Notifications.SMTPAddr,
		WebhookURL:     cfg.Notifications.WebhookURL,
	})
	events := event.NewPublisher(cfg.Events.NATSURL, cfg.Events.Subject, logr)
	defer events.Close() //nolint:errcheck

	notifications := service.NewNotificationService(notifRepo, escalation, events, metrics, logr, service.NotificationServiceConfig{
		RealtimeEnabled: cfg.Notifications.RealtimeEnabled,
		HourlyCap:       cfg.Notifications.HourlyCap,
		FlushInterval:   cfg.Notifications.FlushInterval,
		SessionBuffer:   cfg.Notifications.SessionBuffer,
		Retention:       cfg.Retention.Notifications,
	})
	storageSvc := service.NewStorageService(backend, metrics, logr, service.StorageServiceConfig{
		KeepBackup: cfg.Storage.KeepBackup,
		Retention:  cfg.Retention.StorageFiles,
	})
	retrySvc := service.NewRetryService(retryRepo, notifications, medialog, metrics, logr, service.RetryServiceConfig{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    cfg.Retry.BaseDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		CapExponent:  cfg.Retry.CapExponent,
		BatchSize:    cfg.Retry.BatchSize,
		PassInterval: cfg.Retry.PassInterval,
		LeaseTimeout: cfg.Retry.LeaseTimeout,
		Retention:    cfg.Retention.RetryOps,
	})
	classifier := service.NewHTTPClassifierClient(cfg.Classifier.BaseURL, cfg.Classifier.CallbackURL, cfg.Classifier.RequestTimeout, logr)
	uploadSvc := service.NewUploadService(assetRepo, classifier, retrySvc, notifications, medialog, metrics, logr)
	callbackSvc := service.NewCallbackService(assetRepo, cacheRepo, storageSvc, retrySvc, notifications, medialog, metrics, logr, cfg.Moderation.ScoreThreshold)
	sweep := service.NewSweepService(assetRepo, notifications, medialog, logr, cfg.Moderation.StaleSubmissionAge, cfg.Retry.BatchSize)

	retrySvc.RegisterHandler(models.RetryOpModerationUpload, uploadSvc.ResubmitAnalysis)
	retrySvc.RegisterHandler(models.RetryOpModerationCallback, callbackSvc.ReplayVerdict)

	escalation.Start(ctx)
	notifications.Start(ctx)
	retrySvc.Start(ctx)

	scheduler := cron.New()
	_, _ = scheduler.AddFunc("@hourly", func() { notifications.ResetRateWindow() })
	_, _ = scheduler.AddFunc("@hourly", func() {
		if _, err := notifications.Cleanup(ctx); err != nil {
			logr.Sugar().Errorw("notification cleanup failed", "error", err)
		}
	})
	_, _ = scheduler.AddFunc("@hourly", func() {
		if _, err := retrySvc.Cleanup(ctx); err != nil {
			logr.Sugar().Errorw("retry cleanup failed", "error", err)
		}
	})
	_, _ = scheduler.AddFunc("@hourly", func() {
		if _, err := medialog.Cleanup(ctx); err != nil {
			logr.Sugar().Errorw("media log cleanup failed", "error", err)
		}
	})
	_, _ = scheduler.AddFunc("@hourly", func() {
		if _, err := storageSvc.Cleanup(ctx, ""); err != nil {
			logr.Sugar().Errorw("storage cleanup failed", "error", err)
		}
	})
	if cfg.Moderation.StaleSubmissionAge > 0 {
		_, _ = scheduler.AddFunc("@hourly", func() {
			if _, err := sweep.Sweep(ctx); err != nil {
				logr.Sugar().Errorw("stale submission sweep failed", "error", err)
			}
		})
	}
	scheduler.Start()

	uploadHandler := handler.NewUploadHandler(uploadSvc)
	callbackHandler := handler.NewCallbackHandler(callbackSvc)
	retryHandler := handler.NewRetryHandler(retrySvc)
	sessionHandler := handler.NewSessionHandler(notifications)
	storageHandler := handler.NewStorageHandler(storageSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/media/submit", uploadHandler.Submit)
		api.POST("/moderation/callback", callbackHandler.Verdict)

		admin := api.Group("", middleware.AdminAuth(cfg.Moderation.JWTSecret))
		{
			admin.GET("/admin/notifications/stream", sessionHandler.Stream)
			admin.GET("/notifications/statistics", sessionHandler.Statistics)
			admin.GET("/storage/statistics", storageHandler.Statistics)
			admin.POST("/retry/operations", retryHandler.AddOperation)
			admin.GET("/retry/statistics", retryHandler.Statistics)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "storage_backend", cfg.Storage.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}

	scheduler.Stop()
	retrySvc.Stop()
	notifications.Stop()
	escalation.Stop()
	logr.Sugar().Infow("server stopped")
}
