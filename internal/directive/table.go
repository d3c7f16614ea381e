package directive

import (
	"context"
	"fmt"

	"github.com/antigravity-dev/jido/internal/signal"
)

// ExecFunc is the executor contract for one directive kind (spec §4.5).
// Concrete executors (internal/server's buildExecTable) close over whatever
// dependencies they need — the dispatch table, the childproc launcher, the
// instance Scheduler, the owning AgentServer's process state — rather than
// receiving them as a parameter here, keeping this package free of any
// dependency on those subsystems.
type ExecFunc func(ctx context.Context, d Directive, origin signal.Signal) (Result, error)

// Table maps a directive Kind to its executor. Built once at AgentServer
// construction time and treated as read-only thereafter.
type Table map[string]ExecFunc

// Exec looks up the executor for d.Kind() and runs it. A directive kind
// with no registered executor is a wiring bug, not a runtime condition the
// drain loop should treat as a transient failure, so it is reported as an
// error value rather than silently ignored.
func (t Table) Exec(ctx context.Context, d Directive, origin signal.Signal) (Result, error) {
	fn, ok := t[d.Kind()]
	if !ok {
		return Result{}, fmt.Errorf("directive: no executor registered for kind %q", d.Kind())
	}
	return fn(ctx, d, origin)
}
