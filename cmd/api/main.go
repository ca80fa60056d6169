package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/dirt2meme/internal/api"
	"github.com/timmy/dirt2meme/internal/api/handler"
	"github.com/timmy/dirt2meme/internal/api/middleware"
	"github.com/timmy/dirt2meme/internal/app"
	"github.com/timmy/dirt2meme/internal/config"
	"github.com/timmy/dirt2meme/internal/logger"
	"github.com/timmy/dirt2meme/internal/repository"
	"github.com/timmy/dirt2meme/internal/service"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// CONFIG_PATH selects the config file in deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	memeRepo := repository.NewMemeRepository(db)

	ctx := context.Background()
	objectStorage, err := app.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	generator := app.NewGenerator(cfg, objectStorage, memeRepo, appLogger)
	var fetchOpts []service.FetchOption
	if cfg.Fetch.AllowPrivateHosts {
		appLogger.Warn("from-url may reach private networks")
		fetchOpts = append(fetchOpts, service.WithPrivateHosts())
	}
	fetcher := service.NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes, fetchOpts...)

	memeHandler := handler.NewMemeHandler(generator, fetcher, memeRepo, objectStorage, cfg.Server.MaxUploadBytes())
	router := api.SetupRouter(memeHandler, api.RouterConfig{
		Mode:           cfg.Server.Mode,
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
	}, appLogger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":    cfg.Server.Port,
			"mode":    cfg.Server.Mode,
			"storage": cfg.Storage.Type,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	appLogger.Info("Server exited")
}
