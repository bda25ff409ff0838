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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-timetable-engine/api/swagger"
	"github.com/noah-isme/sma-timetable-engine/internal/handler"
	"github.com/noah-isme/sma-timetable-engine/internal/middleware"
	"github.com/noah-isme/sma-timetable-engine/internal/repository"
	"github.com/noah-isme/sma-timetable-engine/internal/service"
	"github.com/noah-isme/sma-timetable-engine/pkg/cache"
	"github.com/noah-isme/sma-timetable-engine/pkg/config"
	"github.com/noah-isme/sma-timetable-engine/pkg/database"
	"github.com/noah-isme/sma-timetable-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-engine/pkg/middleware/requestid"
)

// @title SMA Timetable Engine
// @version 0.1.0
// @description Timetable generation and conflict management service
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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, conflict scan caching disabled", "error", err)
		redisClient = nil
	}

	loadRepo := repository.NewTeachingLoadRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	versionRepo := repository.NewScheduleVersionRepository(db)
	conflictRepo := repository.NewConflictRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	conflictSvc := service.NewConflictService(
		conflictRepo, sessionRepo, loadRepo, settingsRepo, roomRepo,
		cacheRepo, db, logr, metricsSvc, cfg.Engine.ScanCacheTTL,
	)
	generationSvc := service.NewGenerationService(
		loadRepo, settingsRepo, roomRepo, sessionRepo, versionRepo,
		conflictSvc, db, nil, logr, metricsSvc,
		service.GenerationConfig{JobTTL: cfg.Engine.JobTTL, Workers: cfg.Engine.Workers},
	)
	timetableSvc := service.NewTimetableService(sessionRepo, versionRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	generationSvc.Start(ctx)
	defer generationSvc.Stop()

	generationHandler := handler.NewGenerationHandler(generationSvc)
	conflictHandler := handler.NewConflictHandler(conflictSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)

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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "pending_jobs": generationSvc.PendingJobs()})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.ServiceToken(cfg.Auth.ServiceTokenSecret))
	api.Use(middleware.WithResponseMeta())
	{
		api.POST("/timetable/generate", generationHandler.Generate)
		api.GET("/timetable/jobs/:id", generationHandler.Progress)
		api.GET("/timetable/jobs/:id/result", generationHandler.Result)
		api.POST("/timetable/jobs/:id/cancel", generationHandler.Cancel)

		api.POST("/schedules/:id/conflicts/scan", conflictHandler.Scan)
		api.GET("/schedules/:id/conflicts", conflictHandler.List)
		api.POST("/conflicts/:id/resolve", conflictHandler.Resolve)
		api.POST("/conflicts/:id/ignore", conflictHandler.Ignore)

		api.GET("/schedules/:id/sessions", timetableHandler.Sessions)
		api.GET("/schedules/:id/versions", timetableHandler.Versions)
		api.POST("/versions/:id/publish", timetableHandler.Publish)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
