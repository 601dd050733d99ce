// Package main runs a standalone award worker consuming the Redis award queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventpoints/backend/config"
	"github.com/eventpoints/backend/internal/app"
	"github.com/eventpoints/backend/internal/telemetry"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Queue.Backend != config.QueueBackendRedis {
		logger.Fatal("worker requires QUEUE_BACKEND=redis", zap.String("queue", cfg.Queue.Backend))
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName+"-worker", cfg.Telemetry.Endpoint, cfg.Telemetry.Enabled)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	stores, err := app.OpenStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	defer stores.Close()

	rt, err := app.NewRuntime(ctx, cfg, stores, logger)
	if err != nil {
		logger.Fatal("award runtime", zap.Error(err))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt.Start(workerCtx)
	logger.Info("worker started", zap.String("store", stores.Kind))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := rt.Stop(shutdownCtx); err != nil {
		logger.Error("award pool shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown", zap.Error(err))
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
