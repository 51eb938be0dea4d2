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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ethicsline/ethicsline-api/api/swagger"
	"github.com/ethicsline/ethicsline-api/internal/handler"
	"github.com/ethicsline/ethicsline-api/internal/middleware"
	"github.com/ethicsline/ethicsline-api/internal/models"
	"github.com/ethicsline/ethicsline-api/internal/repository"
	"github.com/ethicsline/ethicsline-api/internal/service"
	"github.com/ethicsline/ethicsline-api/pkg/cache"
	"github.com/ethicsline/ethicsline-api/pkg/config"
	"github.com/ethicsline/ethicsline-api/pkg/database"
	"github.com/ethicsline/ethicsline-api/pkg/jobs"
	"github.com/ethicsline/ethicsline-api/pkg/logger"
	corsmiddleware "github.com/ethicsline/ethicsline-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ethicsline/ethicsline-api/pkg/middleware/requestid"
	"github.com/ethicsline/ethicsline-api/pkg/storage"
)

// @title EthicsLine API
// @version 1.0.0
// @description Misconduct report intake and case management
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	blobStorage, err := storage.NewLocalStorage(cfg.Blob.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init blob storage", "error", err)
	}
	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	blobSigner := storage.NewSignedURLSigner(cfg.Blob.SignedURLSecret, cfg.Blob.SignedURLTTL)
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	caseRepo := repository.NewCaseRepository(db)
	principalRepo := repository.NewPrincipalRepository(db)
	userRepo := repository.NewUserRepository(db)
	exportRepo := repository.NewExportRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient, cfg.Session.TTL)

	stream := service.NewCaseStream(cfg.Dashboard.StreamBuffer, logr)
	metricsSvc := service.NewMetricsService(stream.Subscribers)

	authSvc := service.NewAuthService(userRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "ethicsline-api",
	})
	sessionSvc := service.NewSessionService(sessionRepo, principalRepo, logr, cfg.Intake.BootstrapTimeout)
	attachmentSvc := service.NewAttachmentService(blobStorage, blobSigner, logr, cfg.Intake.MaxAttachmentBytes, cfg.Intake.UploadTimeout)
	intakeSvc := service.NewIntakeService(sessionRepo, sessionRepo, caseRepo, attachmentSvc, stream, metricsSvc, logr, service.WizardRules{
		MinDescriptionLength: cfg.Intake.MinDescriptionLength,
		Units:                cfg.Intake.Units,
		Categories:           cfg.Intake.Categories,
	}, cfg.Intake.WriteTimeout)
	trackerSvc := service.NewTrackerService(caseRepo, metricsSvc, logr)
	dashboardSvc := service.NewDashboardService(caseRepo, userRepo, stream, blobSigner, attachmentSvc, logr, cfg.Dashboard.ViewTTL)

	var exportSvc *service.ExportService
	exportQueue := jobs.NewQueue("case_export", func(ctx context.Context, job jobs.Job) error {
		return exportSvc.ProcessJob(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportSvc = service.NewExportService(caseRepo, exportRepo, userRepo, exportStorage, exportSigner, exportQueue, metricsSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportQueue.Start(ctx)
	defer exportQueue.Stop()

	if cfg.Exports.CleanupInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					exportSvc.Cleanup(cfg.Exports.SignedURLTTL)
				}
			}
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	sessionHandler := handler.NewSessionHandler(sessionSvc)
	intakeHandler := handler.NewIntakeHandler(intakeSvc)
	trackerHandler := handler.NewTrackerHandler(trackerSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/session/bootstrap", sessionHandler.Bootstrap)
	api.POST("/session/policy", sessionHandler.AcceptPolicy)
	api.DELETE("/session", sessionHandler.End)

	api.GET("/intake/options", intakeHandler.Options)
	intake := api.Group("/intake", middleware.RequireSession(sessionSvc))
	{
		intake.POST("", intakeHandler.Start)
		intake.GET("", intakeHandler.State)
		intake.POST("/events", intakeHandler.Advance)
		intake.POST("/back", intakeHandler.Back)
		intake.POST("/submit", intakeHandler.Submit)
	}

	api.GET("/track/:protocol", trackerHandler.Lookup)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/logout", middleware.JWT(authSvc), authHandler.Logout)

	reviewer := api.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin, models.RoleReviewer))
	{
		reviewer.POST("/dashboard/views", dashboardHandler.OpenView)
		reviewer.GET("/dashboard/views/:id", dashboardHandler.ViewState)
		reviewer.DELETE("/dashboard/views/:id", dashboardHandler.CloseView)
		reviewer.PUT("/dashboard/views/:id/filter", dashboardHandler.SetFilter)
		reviewer.POST("/dashboard/views/:id/selection", dashboardHandler.Select)
		reviewer.DELETE("/dashboard/views/:id/selection", dashboardHandler.DeleteSelected)
		reviewer.PUT("/dashboard/views/:id/open", dashboardHandler.OpenCase)
		reviewer.GET("/dashboard/views/:id/aggregates", dashboardHandler.Aggregates)
		reviewer.GET("/dashboard/stream", dashboardHandler.Stream)

		reviewer.PATCH("/cases/:protocol/status", dashboardHandler.SetStatus)
		reviewer.POST("/cases/:protocol/notes", dashboardHandler.AppendNote)
		reviewer.DELETE("/cases/:protocol", dashboardHandler.DeleteCase)
		reviewer.GET("/cases/:protocol/attachment-url", dashboardHandler.AttachmentURL)

		reviewer.POST("/exports", exportHandler.Export)
		reviewer.POST("/exports/jobs", exportHandler.Enqueue)
		reviewer.GET("/exports/jobs/:id", exportHandler.JobStatus)
	}
	api.GET("/exports/download", exportHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}
