package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/depot-labs/depot-api/api/swagger"
	"github.com/depot-labs/depot-api/internal/handler"
	"github.com/depot-labs/depot-api/internal/middleware"
	"github.com/depot-labs/depot-api/internal/models"
	"github.com/depot-labs/depot-api/internal/repository"
	"github.com/depot-labs/depot-api/pkg/cache"
	"github.com/depot-labs/depot-api/pkg/config"
	"github.com/depot-labs/depot-api/pkg/database"
	"github.com/depot-labs/depot-api/pkg/database/migrations"
	"github.com/depot-labs/depot-api/pkg/logger"
	corsmiddleware "github.com/depot-labs/depot-api/pkg/middleware/cors"
	reqidmiddleware "github.com/depot-labs/depot-api/pkg/middleware/requestid"
	"github.com/depot-labs/depot-api/pkg/storage"

	"github.com/depot-labs/depot-api/internal/service"
)

// @title Depot API
// @version 0.1.0
// @description Self-hosted repository for versioned software artifacts
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.Migrate {
		if err := migrations.Up(db.DB); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Revocations degrade to token-expiry-only; everything else works.
		logr.Warn("redis unavailable, session revocation disabled", zap.Error(err))
		redisClient = nil
	}

	chunkStore, err := storage.NewChunkStore(cfg.Storage.StagingDir)
	if err != nil {
		logr.Fatal("failed to init staging area", zap.Error(err))
	}
	fileStore, err := storage.NewFileStore(cfg.Storage.BaseDir)
	if err != nil {
		logr.Fatal("failed to init file storage", zap.Error(err))
	}

	validate := validator.New()

	registry := repository.NewContentRegistry(db)
	userRepo := repository.NewUserRepository(db)
	softwareRepo := repository.NewSoftwareRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	downloadLogRepo := repository.NewDownloadLogRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	sessionStore := repository.NewSessionStore(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, sessionStore, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "depot-api",
	})

	// The queue refuses enqueues until started, so leaving it stopped is how
	// notifications are disabled.
	notificationSvc := service.NewNotificationService(softwareRepo, notificationRepo, logr, service.NotificationConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
	})
	if cfg.Notifications.Enabled {
		notificationSvc.Start(context.Background())
		defer notificationSvc.Stop()
	}

	versionSvc := service.NewVersionService(versionRepo, logr)
	softwareSvc := service.NewSoftwareService(softwareRepo, logr)
	permissionSvc := service.NewPermissionService(permissionRepo, userRepo, validate, logr)

	uploadSvc := service.NewUploadService(db, registry, chunkStore, fileStore, versionSvc, userRepo, notificationSvc, metricsSvc, validate, logr, service.UploadConfig{
		MaxChunkBytes: cfg.Storage.MaxChunkBytes,
	})
	deliverySvc := service.NewDeliveryService(registry, fileStore, permissionSvc, downloadLogRepo, userRepo, metricsSvc, logr)
	exportSvc := service.NewExportService(downloadLogRepo, cfg.Exports.MaxRows, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	uploadHandler := handler.NewUploadHandler(uploadSvc)
	deliveryHandler := handler.NewDeliveryHandler(deliverySvc)
	permissionHandler := handler.NewPermissionHandler(permissionSvc)
	downloadLogHandler := handler.NewDownloadLogHandler(exportSvc)
	softwareHandler := handler.NewSoftwareHandler(softwareSvc, versionSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

		api.GET("/files/:itemType", middleware.OptionalJWT(authSvc), deliveryHandler.List)
		api.GET("/files/:itemType/:storedName", middleware.OptionalJWT(authSvc), deliveryHandler.Download)

		api.GET("/notifications", middleware.JWT(authSvc), notificationHandler.ListUnread)

		admin := api.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
		admin.POST("/uploads/chunk", uploadHandler.Chunk)
		admin.DELETE("/files/:itemType/:id", uploadHandler.Remove)
		admin.PUT("/permissions", permissionHandler.Upsert)
		admin.GET("/permissions/:fileType/:fileId", permissionHandler.ListByFile)
		admin.DELETE("/permissions/:fileType/:fileId/:userId", permissionHandler.Remove)
		admin.GET("/download-logs", downloadLogHandler.List)
		if cfg.Exports.Enabled {
			admin.GET("/download-logs/export", downloadLogHandler.Export)
		}

		api.GET("/software", middleware.OptionalJWT(authSvc), softwareHandler.List)
		api.GET("/software/:id", middleware.OptionalJWT(authSvc), softwareHandler.Get)
		api.GET("/software/:id/versions", middleware.OptionalJWT(authSvc), softwareHandler.ListVersions)
	}

	if cfg.Storage.SweepEnabled {
		go sweepStaging(chunkStore, cfg.Storage, logr)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// sweepStaging periodically reclaims staging files abandoned by clients that
// never sent their final chunk.
func sweepStaging(store *storage.ChunkStore, cfg config.StorageConfig, logr *zap.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		removed, err := store.SweepOlderThan(cfg.StaleAfter)
		if err != nil {
			logr.Warn("staging sweep failed", zap.Error(err))
			continue
		}
		if len(removed) > 0 {
			logr.Info("staging sweep reclaimed files", zap.Int("count", len(removed)))
		}
	}
}
