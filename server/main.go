package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/krelinga/vod-trigger/internal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run() error {
	// Create context that listens for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A .env file is optional; the process environment always wins.
	_ = godotenv.Load()

	// Load configuration
	cfg := internal.NewConfigFromEnv()

	logger, err := internal.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	// Continue traces started by the notification sender.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if err := cfg.CheckTranscode(); err != nil {
		logger.Warn("transcode configuration is incomplete, uploads will be skipped", zap.Error(err))
	}
	if cfg.COSEndpoint != "" {
		if err := internal.CheckOutputBucket(ctx, internal.NewCOSClient(cfg), cfg); err != nil {
			logger.Warn("output bucket check failed", zap.Error(err))
		} else {
			logger.Info("output bucket is reachable", zap.String("bucket", cfg.Output.Bucket))
		}
	}

	api, err := internal.LoadAPI(ctx)
	if err != nil {
		return err
	}

	signer, err := internal.NewSigner(cfg.APIEndpoint)
	if err != nil {
		return err
	}

	httpClient, err := internal.NewHTTPClient(cfg.Proxy)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := internal.NewMetrics(registry)

	dispatcher := &internal.HTTPDispatcher{
		HTTPClient: httpClient,
		API:        api,
		Logger:     logger,
		Metrics:    metrics,
	}
	router := internal.NewRouter(cfg, signer, dispatcher, logger, internal.WithMetrics(metrics))

	// Create server and wire up HTTP handlers
	server := NewServer(router, api, logger)

	// Configure HTTP server
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Handler(registry),
	}

	// Start HTTP server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("Starting HTTP server on port %d", cfg.Server.Port),
			zap.String("endpoint", signer.Endpoint()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, shutting down gracefully...")
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}
