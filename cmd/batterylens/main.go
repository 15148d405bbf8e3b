package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sanspareilsmyn/batterylens/internal/config"
	"github.com/sanspareilsmyn/batterylens/internal/logging"
	"github.com/sanspareilsmyn/batterylens/internal/pipeline"
)

var (
	configFile = flag.String("config", "configs/config.dev.yaml", "Path to the configuration file")
	logger     *zap.Logger
)

func main() {
	// Initialize Configuration
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration from %s: %v\n", *configFile, err)
		os.Exit(1)
	}

	// Initialize Logger
	var logErr error
	logger, logErr = logging.NewLogger(cfg.Log)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", logErr)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync() // Flush buffered logs on exit
	}()

	sugar := logger.Sugar()
	sugar.Infow("Logger initialized",
		"level", cfg.Log.Level,
		"format", cfg.Log.Format,
	)
	sugar.Infow("Configuration loaded successfully", "path", *configFile)

	// Initialize Pipeline
	sugar.Info("Initializing pipeline...")
	pipe, err := pipeline.New(cfg, logger)
	if err != nil {
		sugar.Fatalw("Failed to initialize pipeline", "error", err)
	}
	sugar.Info("Battery monitoring pipeline initialized")

	// Handle Graceful Shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		sugar.Infow("Received signal, initiating shutdown...", "signal", sig.String())
		cancel()
	}()

	// Serve Prometheus Metrics
	if cfg.Metrics.Enabled {
		startMetricsServer(ctx, cfg.Metrics.Addr, sugar)
	}

	// Run Pipeline
	sugar.Info("Starting battery monitoring pipeline...")
	runErr := pipe.Run(ctx)

	// Evaluate Pipeline Result
	finalLogLevel := zapcore.InfoLevel
	shutdownReason := "gracefully"
	var finalErrorField = zap.Skip()

	switch {
	case runErr == nil:
		sugar.Info("Pipeline execution completed without error.")
	case errors.Is(runErr, context.Canceled):
		sugar.Info("Pipeline execution cancelled (expected on shutdown).")
	default: // Unexpected error
		shutdownReason = "due to error"
		finalLogLevel = zapcore.ErrorLevel
		finalErrorField = zap.Error(runErr)
		sugar.Errorw("Pipeline execution stopped unexpectedly", zap.Error(runErr))
	}

	finalMessage := fmt.Sprintf("Pipeline shutdown %s.", shutdownReason)
	logger.Log(finalLogLevel, finalMessage,
		zap.String("reason", shutdownReason),
		finalErrorField,
	)

	sugar.Info("BatteryLens finished.")
}

// startMetricsServer exposes /metrics and shuts the listener down with the
// pipeline context.
func startMetricsServer(ctx context.Context, addr string, sugar *zap.SugaredLogger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sugar.Infow("Serving Prometheus metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Errorw("Metrics server stopped unexpectedly", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("Metrics server shutdown failed", zap.Error(err))
		}
	}()
}
