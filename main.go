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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/seo-optimizer/content-processor/api"
	"github.com/seo-optimizer/content-processor/config"
	"github.com/seo-optimizer/content-processor/fetch"
	"github.com/seo-optimizer/content-processor/logging"
	"github.com/seo-optimizer/content-processor/metrics"
	"github.com/seo-optimizer/content-processor/middleware"
	"github.com/seo-optimizer/content-processor/processor"
	"github.com/seo-optimizer/content-processor/stats"
)

func setupGinMode(cfg *config.Config) {
	mode := cfg.GinMode
	if mode == "" {
		if cfg.IsProduction() {
			mode = gin.ReleaseMode
		} else {
			mode = gin.DebugMode
		}
	}
	gin.SetMode(mode)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupGinMode(cfg)

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	statsStorage, err := stats.NewStorage(cfg.DataDir)
	if err != nil {
		logger.Fatal("Failed to initialize stats storage", zap.Error(err))
	}

	collector := metrics.NewCollector("seo")

	importer := fetch.New(cfg.Fetch,
		fetch.WithLogger(logger),
		fetch.WithStats(statsStorage),
		fetch.WithMetrics(collector),
	)

	server := api.NewServer(api.Deps{
		Config:    cfg,
		Logger:    logger,
		Processor: processor.New(),
		Stats:     statsStorage,
		Metrics:   collector,
		Importer:  importer,
		Limiter:   middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.MaxClients),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Fetch.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("SEO Content Processor started",
			zap.String("address", "http://localhost:"+cfg.Port),
			zap.String("environment", string(cfg.Env)),
			zap.String("version", config.Version),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info("Shutting down gracefully", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	importer.Close()
	if err := statsStorage.Shutdown(); err != nil {
		logger.Error("Failed to flush statistics", zap.Error(err))
	}

	logger.Info("Server stopped")
}
