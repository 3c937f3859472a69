// Command fraudserve exposes stored fraud models over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"fraudml/pkg/artifact"
	"fraudml/pkg/config"
	"fraudml/pkg/logging"
	"fraudml/pkg/metrics"
	"fraudml/pkg/serve"
	"fraudml/pkg/traces"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	flag.StringVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flag.StringVar(&cfg.ModelDir, "models", cfg.ModelDir, "artifact directory for the file backend")
	flag.StringVar(&cfg.DefaultModel, "default-model", cfg.DefaultModel, "model used when a request names none")
	flag.Parse()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	gin.SetMode(gin.ReleaseMode)

	ctx := context.Background()
	shutdownTracing, err := traces.Init(ctx, "fraudserve", cfg.OTLPEndpoint, logger)
	if err != nil {
		log.Fatalf("tracing: %v", err)
	}

	store, closeStore, err := artifact.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}
	defer closeStore()

	collector := metrics.NewCollector(logger)
	cache := artifact.NewCache(store, logger)
	names, err := cache.Available(ctx)
	if err != nil {
		log.Fatalf("artifact store: %v", err)
	}
	logger.Info("models available", "models", names, "default", cfg.DefaultModel)

	scorer := serve.NewScorer(cache, collector, logger)
	router := serve.NewRouter(serve.NewHandler(scorer, cfg.DefaultModel), collector, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = collector.StartMetricsServer(cfg.MetricsAddr)
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	waitForShutdown(logger, server, metricsServer, collector, shutdownTracing)
	logger.Info("Server shutdown complete")
}

func waitForShutdown(
	logger *slog.Logger,
	server *http.Server,
	metricsServer *http.Server,
	collector *metrics.Collector,
	shutdownTracing func(context.Context) error,
) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown failed", slog.String("error", err.Error()))
	}
	if err := collector.Shutdown(ctx, metricsServer); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("Tracing shutdown failed", slog.String("error", err.Error()))
	}
}
