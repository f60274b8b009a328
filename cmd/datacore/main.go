package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/config"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/health"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/metrics"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/registry"
	"github.com/appliedinnovationcorp/nexus-v3-sub003/internal/service"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting data access core",
		zap.String("primary_host", cfg.Primary.Host),
		zap.Int("replicas", len(cfg.Replicas)),
		zap.Int("shards", len(cfg.Shards)),
		zap.String("cache_host", cfg.Cache.Host))

	// Initialize metrics
	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	logger.Info("Metrics initialized")

	// Initialize the pool registry (opens and pings every backend)
	ctx := context.Background()
	reg, err := registry.New(ctx, cfg, m, logger)
	if err != nil {
		logger.Fatal("Failed to initialize pool registry", zap.Error(err))
	}

	// Initialize the data access facade
	entities := service.NewEntityService(reg, cfg.Cache.EntityTTL, logger)
	logger.Info("Data access facade initialized")

	// Start the background retention sweep
	var sweeper *service.RetentionSweeper
	if cfg.Retention.Enabled {
		sweeper = service.NewRetentionSweeper(entities, cfg.Retention.MaxAge, cfg.Retention.Interval, logger)
		sweeper.Start()
	}

	// Start metrics server
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("Starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Start health check server
	healthChecker := health.NewHealthChecker(reg, cfg.Health.ProbeTimeout, logger)
	go func() {
		if err := health.StartHealthServer(healthChecker, cfg.Health.Port, logger); err != nil {
			logger.Error("Health check server failed", zap.Error(err))
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Graceful shutdown: stop background work, then drain and close
	// every pool
	if sweeper != nil {
		sweeper.Stop()
	}
	done := make(chan error, 1)
	go func() {
		done <- reg.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("Shutdown finished with error", zap.Error(err))
			os.Exit(1)
		}
	case <-time.After(30 * time.Second):
		logger.Error("Shutdown timed out")
		os.Exit(1)
	}

	logger.Info("Shutdown complete")
}

// buildLogger constructs a zap logger honoring the configured level and
// format.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
