// Package main runs the event registration HTTP server with the award pipeline and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eventpoints/backend/config"
	"github.com/eventpoints/backend/internal/admin"
	"github.com/eventpoints/backend/internal/app"
	"github.com/eventpoints/backend/internal/middleware"
	"github.com/eventpoints/backend/internal/points"
	"github.com/eventpoints/backend/internal/registrations"
	"github.com/eventpoints/backend/internal/telemetry"
	"github.com/eventpoints/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint, cfg.Telemetry.Enabled)
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

	registrationHandler := registrations.NewHandler(stores.Registrations, stores.Events, stores.Users, rt.Enqueuer, rt.Rewards, logger)
	pointsHandler := points.NewHandler(stores.Ledger, logger)
	var dlq admin.DeadLetters
	if rt.Queue != nil {
		dlq = rt.Queue
	}
	adminHandler := admin.NewHandler(rt.Enqueuer, rt.Pool, dlq, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "store": stores.Kind, "queue": cfg.Queue.Backend, "awards": rt.Pool.Stats()})
	})

	// Public: event registration
	router.POST("/events/:id/register", registrationHandler.Register)
	router.GET("/registrations/:id", registrationHandler.Get)

	// Internal points API (fallback reward service)
	pointsHandler.Register(router.Group("/api/v1"))

	// Operator endpoints
	adminHandler.Register(router.Group("/admin"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Award workers (and the Redis consumer when QUEUE_BACKEND=redis)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	rt.Start(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("store", stores.Kind), zap.String("queue", cfg.Queue.Backend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	workerCancel()
	if err := rt.Stop(shutdownCtx); err != nil {
		logger.Error("award pool shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
