// Package main implements a License Plate Logger CLI application that watches
// a camera for vehicle number plates and records every accepted read.
//
// The application captures frames at a configurable interval, proposes plate
// regions with a Haar cascade, reads them with Tesseract OCR, filters the
// results through a small set of plausibility checks and appends the
// survivors to a daily CSV file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clalos/plate-logger/internal/feed"
	"github.com/clalos/plate-logger/internal/pipeline"
	"github.com/clalos/plate-logger/internal/plate"
	"github.com/clalos/plate-logger/internal/readlog"
	"github.com/clalos/plate-logger/internal/vision"
)

const feedShutdownTimeout = 5 * time.Second

// setupLogger configures structured logging based on the specified format.
func setupLogger(format string, verbose bool) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "kv":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// loadDotEnv reads PLATE_* overrides from .env when the file exists.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func main() {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading environment: %v\n", err)
		os.Exit(1)
	}

	config, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(config.LogFormat, config.Verbose)
	slog.SetDefault(logger)

	logger.Info("Starting License Plate Logger",
		"device", config.Device,
		"resolution", fmt.Sprintf("%dx%d", config.Width, config.Height),
		"cascade", config.CascadePath,
		"interval", config.Interval,
		"language", config.Language,
		"min_area", config.MinArea,
		"min_alnum", config.MinAlnum,
		"headless", config.Headless,
		"log_format", config.LogFormat,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received shutdown signal, stopping...")
		cancel()
	}()

	if err := run(ctx, config, logger); err != nil {
		logger.Error("License Plate Logger failed", "error", err)
		os.Exit(1)
	}

	logger.Info("License Plate Logger stopped")
}

// run builds every component from config and drives the pipeline until it
// stops. The returned error is fatal.
func run(ctx context.Context, config *Config, logger *slog.Logger) error {
	csvLog, err := readlog.Initialize(readlog.PathFor(config.LogDir, time.Now()))
	if err != nil {
		return err
	}
	logger.Info("Logging plate reads", "path", csvLog.Path())

	detector, err := vision.NewCascadeDetector(config.CascadePath, config.ScaleFactor, config.MinNeighbors)
	if err != nil {
		return fmt.Errorf("failed to create region detector: %w", err)
	}
	defer detector.Close()

	extractor, err := vision.NewTesseractExtractor(vision.OCRConfig{
		Language:    config.Language,
		PageSegMode: config.PageSegMode,
		Preprocess:  config.Preprocess,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create text extractor: %w", err)
	}
	defer extractor.Close()

	var (
		observers []pipeline.Observer
		recent    feed.RecentReads
	)

	if config.DBPath != "" {
		mirror, err := readlog.OpenSQLiteMirror(config.DBPath)
		if err != nil {
			return err
		}
		defer mirror.Close()
		observers = append(observers, mirror)
		recent = mirror.Recent
		logger.Info("Mirroring plate reads to SQLite", "path", config.DBPath)
	}

	var hub *feed.Hub
	if config.ListenAddr != "" {
		hub = feed.NewHub(logger)
		observers = append(observers, hub)
	}

	camera, err := vision.OpenCamera(vision.CameraConfig{
		Device: config.Device,
		Width:  config.Width,
		Height: config.Height,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}

	// A nil *Window must not end up inside the interface.
	var display pipeline.Display
	if !config.Headless {
		display = vision.NewWindow(vision.WindowTitle)
	}

	retry := pipeline.DefaultRetryPolicy(config.Interval)
	retry.MaxFailures = config.MaxAcquireFailures

	controller, err := pipeline.New(pipeline.Options{
		Source:    camera,
		Detector:  detector,
		Extractor: extractor,
		Validator: plate.NewValidator(config.MinArea, config.MinAlnum),
		Log:       csvLog,
		Observers: observers,
		Display:   display,
		Interval:  config.Interval,
		StopKey:   config.StopKey,
		Retry:     retry,
		Logger:    logger,
	})
	if err != nil {
		camera.Close()
		if display != nil {
			display.Close()
		}
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	if hub != nil {
		stop, err := startFeed(ctx, feed.NewServer(config.ListenAddr, hub, controller.Metrics, recent, logger), hub, logger)
		if err != nil {
			controller.Close()
			return fmt.Errorf("failed to start live feed: %w", err)
		}
		defer stop()
	}

	return controller.Run(ctx)
}

// startFeed binds the server's address, then runs the hub and server in
// the background. The returned function shuts both down.
func startFeed(ctx context.Context, server *feed.Server, hub *feed.Hub, logger *slog.Logger) (func(), error) {
	ln, err := server.Listen()
	if err != nil {
		return nil, err
	}

	hubCtx, cancelHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	go func() {
		if err := server.Serve(ln); err != nil {
			logger.Warn("Live feed server stopped", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), feedShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down live feed server", "error", err)
		}
		cancelHub()
	}, nil
}
