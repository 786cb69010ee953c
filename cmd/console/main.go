package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/laudoscribe/laudoscribe/internal/config"
	"github.com/laudoscribe/laudoscribe/internal/console"
	"github.com/laudoscribe/laudoscribe/internal/metrics"
	"github.com/laudoscribe/laudoscribe/internal/reconcile"
	"github.com/laudoscribe/laudoscribe/internal/server"
	"github.com/laudoscribe/laudoscribe/internal/session"
	"github.com/laudoscribe/laudoscribe/internal/store"
	"github.com/laudoscribe/laudoscribe/internal/transcription"
	"github.com/laudoscribe/laudoscribe/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "laudoscribe"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	reportID := flag.String("report", "", "Report ID to attach transcriptions to (generated when empty)")
	userID := flag.String("user", "local", "User ID recorded on transcriptions")
	flag.Parse()

	// Load .env before the config so GEMINI_API_KEY fallback works
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	report := *reportID
	if report == "" {
		report = uuid.New().String()
	}

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
		slog.String("report_id", report),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("session_endpoint", cfg.Session.Endpoint),
		slog.String("session_model", cfg.Session.Model),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("vad_threshold", cfg.VAD.Threshold),
		slog.String("transcription_model", cfg.Transcription.Model),
		slog.Int("typing_suspension_ms", cfg.Editor.TypingSuspensionMs),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize silence trimmer
	trimmer, err := vad.NewTrimmer(vad.Config{
		Threshold:   cfg.VAD.Threshold,
		SampleRate:  cfg.Audio.SampleRate,
		WindowMs:    cfg.VAD.WindowMs,
		TailTrimSec: cfg.VAD.TailTrimSec,
		MinKeepSec:  cfg.VAD.MinKeepSec,
	}, appMetrics)
	if err != nil {
		logger.Error("Failed to create silence trimmer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize transcription pipeline
	capability, err := transcription.NewGeminiCapability(ctx, cfg.Transcription.APIKey, cfg.Transcription.Model)
	if err != nil {
		logger.Error("Failed to create transcription capability", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pipeline := transcription.NewPipeline(capability, trimmer, transcription.Config{
		SampleRate:    cfg.Audio.SampleRate,
		Channels:      cfg.Audio.Channels,
		BitsPerSample: cfg.Audio.BitDepth,
		Timeout:       cfg.Transcription.GetTimeoutDuration(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	}, appMetrics, logger)
	logger.Info("Transcription pipeline initialized",
		slog.String("model", cfg.Transcription.Model),
		slog.Int("max_retries", cfg.Transcription.MaxRetries),
	)

	// Initialize reconciliation engine
	engine := reconcile.NewEngine(reconcile.Config{
		TypingSuspension: cfg.Editor.GetTypingSuspension(),
	}, appMetrics, logger)
	logger.Info("Reconciliation engine initialized",
		slog.Duration("typing_suspension", cfg.Editor.GetTypingSuspension()),
	)

	// Initialize session client
	client, err := session.NewClient(session.Config{
		Endpoint:         cfg.Session.Endpoint,
		APIKey:           cfg.Session.APIKey,
		Model:            cfg.Session.Model,
		HandshakeTimeout: cfg.Session.GetHandshakeTimeout(),
	}, appMetrics, logger)
	if err != nil {
		logger.Error("Failed to create session client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize transcription store
	transcriptionStore := store.NewMemoryStore()

	// Initialize the dictation console
	cons := console.NewConsole(console.Config{
		ReportID:      report,
		UserID:        *userID,
		SampleRate:    cfg.Audio.SampleRate,
		Channels:      cfg.Audio.Channels,
		BitsPerSample: cfg.Audio.BitDepth,
	}, client, engine, pipeline, transcriptionStore, appMetrics, logger)
	cons.Start(ctx)

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, cons, pipeline, client, transcriptionStore, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Connect the realtime session
	if err := client.Connect(ctx); err != nil {
		logger.Error("Failed to connect session", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Console started successfully, waiting for signals...")

	// Wait for shutdown signal or session close
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-client.Done():
		logger.Info("Session closed, shutting down")
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Close the session (stops inbound events)
	if err := client.Close(); err != nil {
		logger.Error("Error closing session", slog.String("error", err.Error()))
	}

	// Stop the console (waits for in-flight transcriptions)
	cons.Stop()

	// Get final statistics
	sessionStats := client.GetStats()
	engineStats := engine.GetStats()
	logger.Info("Final session statistics",
		slog.Uint64("frames_received", sessionStats.FramesReceived),
		slog.Uint64("events_dispatched", sessionStats.EventsDispatched),
		slog.Uint64("parse_errors", sessionStats.ParseErrors),
		slog.Uint64("turns_finalized", engineStats.TurnsFinalized),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
