package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"conti/internal/amqp"
	"conti/internal/backend"
	"conti/internal/cli"
	apphttp "conti/internal/http"
	"conti/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// AMQP mutation events are optional; the service runs without them.
	var events *amqp.Publisher
	if cfg.AMQPURL != "" {
		events, err = amqp.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP publisher, continuing without events", "error", err)
			events = nil
		} else {
			logger.Info("Initialized AMQP publisher",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	data := services.New(services.Config{
		CacheTTL:      cfg.CacheTTL,
		CacheCapacity: cfg.CacheCapacity,
		ChunkSize:     cfg.ChunkSize,
		RemoteTimeout: cfg.RemoteTimeout,
		CoalesceReads: cfg.CoalesceReads,
	}, result.Store, events)

	srv := apphttp.NewServer(":"+cfg.Port, data)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Error("AMQP close error", "error", err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting conti server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
