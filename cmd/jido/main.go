// Command jido runs a Jido agent instance: it loads configuration, builds
// an internal/instance.Instance wired with the configured scheduler and
// telemetry, and serves until an interrupt or termination signal arrives.
//
// Grounded on cmd/cortex/main.go's overall shape (flag parsing,
// configureLogger, signal.Notify'd shutdown loop) — the component wiring
// itself (config -> lock -> instance -> signal handling) follows the same
// order cortex's main uses (config -> store -> dispatcher/scheduler ->
// goroutine launches -> signal loop), adapted since this binary supervises
// one Jido Instance rather than Cortex's fixed set of services.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/antigravity-dev/jido/internal/config"
	"github.com/antigravity-dev/jido/internal/instance"
	"github.com/antigravity-dev/jido/internal/instancelock"
	"github.com/antigravity-dev/jido/internal/telemetry"
)

func configureLogger(logLevel string, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if dev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	configPath := flag.String("config", "jido.toml", "path to config file")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jido: failed to load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	logger := configureLogger(cfg.Instance.LogLevel, *dev)
	slog.SetDefault(logger)
	logger.Info("jido starting", "config", *configPath, "instance", cfg.Instance.Name)

	if cfg.Instance.LockFile != "" {
		lockFile, err := instancelock.Acquire(cfg.Instance.LockFile)
		if err != nil {
			logger.Error("failed to acquire instance lock", "lock_file", cfg.Instance.LockFile, "error", err)
			os.Exit(1)
		}
		defer instancelock.Release(lockFile)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tracerShutdown func(context.Context) error
	var tracer *telemetry.Tracer
	if cfg.Telemetry.Endpoint != "" {
		shutdown, err := telemetry.InitProvider(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion)
		if err != nil {
			logger.Error("failed to init telemetry provider", "error", err)
			os.Exit(1)
		}
		tracerShutdown = shutdown
		tracer = telemetry.New()
	}

	in := instance.Start(instance.Options{
		Name:             cfg.Instance.Name,
		MailboxCapacity:  cfg.Instance.MailboxCapacity,
		SchedulerEnabled: cfg.Scheduler.Enabled,
		Logger:           logger,
		Tracer:           tracer,
		ReapInterval:     cfg.Instance.ReapInterval.Duration,
		ReapStaleAfter:   cfg.Instance.ReapStaleAfter.Duration,
	})

	for name, ref := range cfg.Modules {
		logger.Warn("module referenced in config but not registered by this binary; a real deployment provides a RegisterModule call per module", "module", name, "path", ref.Path)
	}

	logger.Info("jido running", "instance", cfg.Instance.Name, "scheduler_enabled", cfg.Scheduler.Enabled)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for {
		sig := <-sigCh
		switch sig {
		case syscall.SIGHUP:
			if _, err := config.Reload(*configPath); err != nil {
				logger.Error("config reload failed", "error", err)
				continue
			}
			logger.Info("config reloaded (restart required for most settings to take effect)")
		case syscall.SIGINT, syscall.SIGTERM:
			shutdownStart := time.Now()
			logger.Info("received signal, shutting down", "signal", sig)

			stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Instance.ShutdownTimeout.Duration)
			if err := in.Stop(stopCtx); err != nil {
				logger.Error("error during instance shutdown", "error", err)
			}
			stopCancel()
			cancel()

			if tracerShutdown != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := tracerShutdown(shutdownCtx); err != nil {
					logger.Error("error shutting down telemetry provider", "error", err)
				}
				shutdownCancel()
			}

			logger.Info("jido stopped", "shutdown_duration", time.Since(shutdownStart).String())
			return
		default:
			cancel()
			return
		}
	}
}
