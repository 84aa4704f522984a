package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightclass/cbt-service/internal/cache"
	"github.com/brightclass/cbt-service/internal/config"
	"github.com/brightclass/cbt-service/internal/exambank"
	"github.com/brightclass/cbt-service/internal/handlers"
	"github.com/brightclass/cbt-service/internal/repositories/postgres"
	"github.com/brightclass/cbt-service/internal/roster"
	"github.com/brightclass/cbt-service/internal/services"
	"github.com/brightclass/cbt-service/internal/utils"
	"github.com/brightclass/cbt-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}
	slogger := logger.(*utils.SlogLogger).GetSlogLogger()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.LogError(err, "Failed to connect to database")
		os.Exit(1)
	}
	if err := postgres.AutoMigrate(db); err != nil {
		logger.LogError(err, "Failed to run migrations")
		os.Exit(1)
	}
	repo := postgres.NewRepository(db)

	// Redis is an accelerator, not a dependency; class result reads fall
	// back to the database when it is absent.
	var cacheSvc cache.CacheService = cache.NoopCache{}
	if redisClient, err := pkg.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, running without cache", "error", err)
	} else {
		cacheSvc = cache.NewRedisCache(redisClient, slogger)
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.LogError(err, "Failed to create event publisher")
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.LogError(err, "Failed to close event publisher")
		}
	}()

	var rosterProvider roster.Provider
	if cfg.Casdoor.Enabled {
		rosterProvider = roster.NewCasdoorProvider(roster.CasdoorConfig{
			Endpoint:     cfg.Casdoor.Endpoint,
			ClientID:     cfg.Casdoor.ClientID,
			ClientSecret: cfg.Casdoor.ClientSecret,
			Certificate:  cfg.Casdoor.Certificate,
			Organization: cfg.Casdoor.Organization,
			Application:  cfg.Casdoor.Application,
		})
		logger.Info("Roster lookups via Casdoor", "endpoint", cfg.Casdoor.Endpoint)
	} else {
		rosterProvider = roster.NewStaticProvider()
		logger.Warn("Casdoor disabled, roster lookups will not resolve")
	}

	bank := exambank.NewPostgresProvider(db)
	validator := utils.NewValidator()

	sessionService := services.NewSessionService(repo, bank, publisher, cacheSvc, slogger, validator, cfg.SubmitGrace)
	gradeService := services.NewGradeService(repo, slogger, validator)
	resultService := services.NewResultService(repo, rosterProvider, publisher, cacheSvc, slogger, validator)
	importService := services.NewImportExportService(repo, slogger, validator)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager := handlers.NewHandlerManager(
		sessionService, gradeService, resultService, importService,
		validator, logger,
	)
	handlerManager.SetupRoutes(router)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runExpirySweep(ctx, sessionService, cfg.SweepInterval, logger)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting CBT service", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError(err, "Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "Forced shutdown")
	}
}

// runExpirySweep periodically finalizes sessions whose deadline passed
// without a submit. Lazy expiry on read covers the window between ticks.
func runExpirySweep(ctx context.Context, svc services.SessionService, interval time.Duration, logger utils.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.ExpireOverdue(ctx); err != nil {
				logger.LogError(err, "Expiry sweep failed")
			}
		}
	}
}
