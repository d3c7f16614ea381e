package instance

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// TaskSupervisor runs directive-initiated async work (spec.md §4.8
// "TaskSupervisor (for async directive work)", §5 "Any potentially-
// blocking work ... must be performed by spawning under the instance
// TaskSupervisor"). Every spawned fn is tracked in an errgroup.Group so
// Stop can wait for in-flight work to finish during an orderly instance
// shutdown (spec.md §5 "the TaskSupervisor" stops last).
//
// golang.org/x/sync/errgroup was an indirect-only dependency of the
// teacher's go.mod (never imported directly); this is what promotes it to
// direct, real use, as the fan-out/fan-in primitive behind every async
// directive outcome.
type TaskSupervisor struct {
	logger *slog.Logger
	group  *errgroup.Group
}

// NewTaskSupervisor returns a ready TaskSupervisor. Each task runs under
// the ctx passed to its own Go call, not a shared one — Wait only tracks
// completion, it does not impose a shared cancellation signal across
// unrelated tasks.
func NewTaskSupervisor(logger *slog.Logger) *TaskSupervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskSupervisor{logger: logger, group: &errgroup.Group{}}
}

// Go satisfies internal/server.TaskSupervisor. Panics inside fn are
// recovered and logged — a misbehaving async task must never take down
// the instance (same "no panics cross package boundaries" rule as the
// AgentServer boundary).
func (t *TaskSupervisor) Go(ctx context.Context, fn func(context.Context)) {
	t.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("task panicked", "recovered", r)
			}
		}()
		fn(ctx)
		return nil
	})
}

// Wait blocks until every task spawned via Go has returned.
func (t *TaskSupervisor) Wait() error {
	return t.group.Wait()
}
