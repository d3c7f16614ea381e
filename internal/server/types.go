// Package server implements the AgentServer process runtime (spec.md
// §4.3): a single-threaded actor owning one agent value, serializing every
// mutation through one goroutine, translating inbound signals into agent
// inputs, running the strategy's cmd, and draining the resulting
// directives through an executor table.
//
// No pack example repo implements a literal actor/mailbox process (the
// teacher's concurrency idiom is ticker-driven poll loops — see
// internal/scheduler/scheduler.go's Run — not per-entity goroutines), so
// the mailbox shape itself is the idiomatic Go rendition of spec.md's
// process model: a single consumer goroutine draining a channel of
// closures, the standard "actor via channel of functions" pattern. The
// surrounding conventions (slog logging, mutex-free single-writer state,
// context-scoped cancellation) follow the teacher's general style.
package server

import (
	"context"
	"time"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/dispatch"
	"github.com/antigravity-dev/jido/internal/signal"
)

// Mailbox is the delivery contract a process exposes to the outside
// world. Server implements it directly, so a dispatch.Pid descriptor can
// target a Server without internal/dispatch importing internal/server.
type Mailbox = dispatch.Mailbox

// AgentSupervisor starts and stops child agent processes under the owning
// instance (spec.md §4.3 "Child lifecycle", §4.8). Narrow interface so
// this package never imports internal/instance; internal/instance
// implements it and imports this package instead (one-directional, same
// cycle-avoidance shape as agent.Strategy/agent.Plugin).
type AgentSupervisor interface {
	StartChild(ctx context.Context, module string, opts map[string]any, parent ParentRef) (child Mailbox, id string, err error)
	StopChild(ctx context.Context, id string, reason string) error
}

// TaskSupervisor runs potentially-blocking work off the server's single
// goroutine (spec.md §5 "Any potentially-blocking work ... must be
// performed by spawning under the instance TaskSupervisor").
type TaskSupervisor interface {
	Go(ctx context.Context, fn func(context.Context))
}

// Scheduler backs the Schedule/Cron/CronCancel directives (spec.md §4.5,
// §4.8).
type Scheduler interface {
	// Schedule arranges for fire to be called once after delay, and
	// returns a cancel func (unused by the Schedule directive itself,
	// which has no corresponding cancel operation, but kept symmetric
	// with Cron/CronCancel for implementers).
	Schedule(delay time.Duration, fire func()) (cancel func())
	Cron(expr string, jobID string, fire func()) error
	CronCancel(jobID string) error
}

// Tracer is the narrow span contract internal/telemetry implements (spec
// §6.3). A nil Tracer in Config disables tracing entirely.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs ...any) (context.Context, func(err error))
}

// ParentRef is what a child agent's state.__parent__ is built from, and
// what a parent records about a monitored child (spec.md §4.3).
type ParentRef struct {
	ID      string
	Tag     string
	Mailbox Mailbox
	Meta    map[string]any
	// OnOrphan controls what a monitored child does when this parent
	// exits: "continue" (default), "stop", or "clear_parent".
	OnOrphan string
}

type childInfo struct {
	id      string
	mailbox Mailbox
	meta    map[string]any
}

// Config are the inputs to New. Definition is required; an empty ID gets a
// generated one, and the rest default to permissive no-op implementations
// suitable for a standalone agent with no instance around it.
type Config struct {
	ID              string
	Definition      *agent.Definition
	QueueCapacity   int // bounded directive FIFO; <=0 defaults to 1024
	DefaultDispatch signal.Descriptor
	Supervisor      AgentSupervisor
	Tasks           TaskSupervisor
	Scheduler       Scheduler
	Tracer          Tracer
	Parent          *ParentRef
	// Spawner backs the Spawn directive (generic worker process launch,
	// spec.md §3.3/§4.5). Nil disables Spawn ("no process spawner
	// configured").
	Spawner Spawner
}

// Status is the process-level view returned by the Status API (spec.md
// §4.3 "wraps strategy_snapshot/1 with process metadata").
type Status struct {
	Snapshot    agent.Snapshot
	ID          string
	AgentModule string
}
