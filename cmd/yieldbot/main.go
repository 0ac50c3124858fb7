// Command yieldbot is the entry point for the daily bond data collector. It
// loads configuration, validates it, wires dependencies, sets up signal
// handling, and runs the collection mode selected by configuration or the
// -mode flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/shikwambipolly/how-is-bloomberg/internal/app"
	"github.com/shikwambipolly/how-is-bloomberg/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "run mode: all, terminal, nsx, ijg, or closing (overrides config)")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	// Set log level from config and tee logs into the configured directory
	// so each scheduled run leaves a dated file behind.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	out, closeLog := logOutput(cfg.Output.LogsDir, logger)
	defer closeLog()
	logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("bond data collector starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)
	logger.Debug("active configuration", slog.Any("config", config.RedactedConfig(cfg)))

	// Create the application.
	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run the application.
	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if err == context.Canceled {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("bond data collector stopped")
}

// logOutput opens a dated log file under logsDir and returns a writer that
// duplicates log lines to stdout and the file. When the file cannot be
// opened the collector still runs with stdout alone.
func logOutput(logsDir string, logger *slog.Logger) (io.Writer, func()) {
	if logsDir == "" {
		return os.Stdout, func() {}
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		logger.Warn("logs directory not created, logging to stdout only",
			slog.String("dir", logsDir),
			slog.String("error", err.Error()),
		)
		return os.Stdout, func() {}
	}

	path := filepath.Join(logsDir, fmt.Sprintf("yieldbot_%s.log", time.Now().Format("20060102")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warn("log file not opened, logging to stdout only",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return os.Stdout, func() {}
	}
	return io.MultiWriter(os.Stdout, f), func() { _ = f.Close() }
}
