package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/antigravity-dev/jido/internal/signal"
)

// Logger dispatches by writing a structured log line at the configured
// level (spec.md §4.7 observability sinks).
type Logger struct {
	Level  slog.Level
	Logger *slog.Logger
}

func (Logger) Kind() string { return "logger" }

func (l Logger) Send(ctx context.Context, sig signal.Signal) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(ctx, l.Level, "signal dispatched",
		slog.String("signal_id", sig.ID),
		slog.String("signal_type", sig.Type),
		slog.String("source", sig.Source),
	)
	return nil
}

// Console dispatches by printing the signal to stdout. Mainly for local
// development and examples.
type Console struct{}

func (Console) Kind() string { return "console" }

func (Console) Send(ctx context.Context, sig signal.Signal) error {
	fmt.Printf("[%s] %s <- %s %v\n", sig.Time.Format("15:04:05"), sig.Type, sig.Source, sig.Data)
	return nil
}
