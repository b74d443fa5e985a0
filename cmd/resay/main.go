// Command resay runs the pronunciation assessment HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/tackung/re-say/internal/assessment"
	"github.com/tackung/re-say/internal/config"
	"github.com/tackung/re-say/internal/health"
	"github.com/tackung/re-say/internal/observe"
	"github.com/tackung/re-say/internal/server"
	assessazure "github.com/tackung/re-say/pkg/provider/assess/azure"
	synthazure "github.com/tackung/re-say/pkg/provider/synth/azure"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// A .env file is a development convenience; absence is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "resay: load .env: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resay: %v\n", err)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("resay starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"region", cfg.Speech.Region,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "re-say",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	assessProvider, err := assessazure.New(cfg.Speech.Key, cfg.Speech.Region,
		assessazure.WithLanguage(cfg.Speech.Language))
	if err != nil {
		slog.Error("failed to create assessment provider", "err", err)
		return 1
	}

	var synthOpts []synthazure.Option
	if len(cfg.Synthesis.Voices) > 0 {
		synthOpts = append(synthOpts, synthazure.WithVoices(cfg.Synthesis.Voices))
	}
	if cfg.Synthesis.OutputFormat != "" {
		synthOpts = append(synthOpts, synthazure.WithOutputFormat(cfg.Synthesis.OutputFormat))
	}
	synthProvider, err := synthazure.New(cfg.Speech.Key, cfg.Speech.Region, synthOpts...)
	if err != nil {
		slog.Error("failed to create synthesis provider", "err", err)
		return 1
	}

	metrics := observe.DefaultMetrics()
	orchestrator := assessment.New(assessProvider, assessment.WithMetrics(metrics))

	srv := server.New(cfg, orchestrator, synthProvider, metrics,
		health.Checker{Name: "temp-dir", Check: tempDirCheck(cfg.Storage.TempDir)},
	)

	// The watcher hot-applies log level changes; everything else needs a
	// restart.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		if old.Server.LogLevel != new.Server.LogLevel {
			logLevel.Set(slogLevel(new.Server.LogLevel))
			slog.Info("log level changed", "level", new.Server.LogLevel)
		}
	})
	if err != nil {
		// Running without hot reload is fine; Load already accepted a
		// missing file.
		slog.Debug("config watcher not started", "err", err)
	} else {
		defer watcher.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown signal received, draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	slog.Info("server ready")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// tempDirCheck verifies the spool directory is writable.
func tempDirCheck(dir string) func(ctx context.Context) error {
	if dir == "" {
		dir = os.TempDir()
	}
	return func(_ context.Context) error {
		f, err := os.CreateTemp(dir, "readyz-*")
		if err != nil {
			return fmt.Errorf("spool dir %s not writable: %w", dir, err)
		}
		name := f.Name()
		f.Close()
		return os.Remove(filepath.Clean(name))
	}
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
