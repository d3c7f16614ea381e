// Package directive defines the tagged effect values a `cmd` invocation
// returns alongside the new agent value (spec §3.3), and the small executor
// table contract an AgentServer drains them through (spec §4.5).
//
// Directives never mutate agent state directly; every agent-state change is
// already folded into the agent value returned next to the directive list.
// Concrete directive kinds are a closed set: Emit, Error, Spawn, SpawnAgent,
// StopChild, Schedule, Cron, CronCancel, Stop.
package directive

import "github.com/antigravity-dev/jido/internal/signal"

// Directive is the sum type every concrete directive implements. Kind
// reports the stable string used for telemetry (`directive_type`) and
// executor table lookup.
type Directive interface {
	Kind() string
}

// ChildSpec describes a generic worker process to launch via Spawn.
// Kind distinguishes a native process launch from a container launch
// (internal/childproc's opt-in Docker-backed path).
type ChildSpec struct {
	Kind    string // "process" (default) or "container"
	Command string
	Args    []string
	Env     map[string]string
	Stdin   string
	WorkDir string
	Image   string // container image, only meaningful when Kind == "container"
}

// Emit dispatches a signal, using Dispatch (or the signal's own
// DispatchHint) if set, otherwise the server's default dispatch.
type Emit struct {
	Signal   signal.Signal
	Dispatch signal.Descriptor
}

func (Emit) Kind() string { return "emit" }

// Error records an error as a structured event and emits an error signal.
type Error struct {
	Type    string
	Context map[string]any
}

func (Error) Kind() string { return "error" }

// Spawn starts a generic worker process, fire-and-forget.
type Spawn struct {
	ChildSpec ChildSpec
}

func (Spawn) Kind() string { return "spawn" }

// SpawnAgent starts a child agent under the instance AgentSupervisor,
// tracked by the parent under Tag, with a parent reference injected into
// the child's initial state.
type SpawnAgent struct {
	Module string
	Tag    string
	Opts   map[string]any
	Meta   map[string]any
}

func (SpawnAgent) Kind() string { return "spawn_agent" }

// StopChild stops a tracked child agent by tag.
type StopChild struct {
	Tag    string
	Reason string
}

func (StopChild) Kind() string { return "stop_child" }

// Schedule delivers Message to self after DelayMS milliseconds.
type Schedule struct {
	DelayMS int64
	Message any
}

func (Schedule) Kind() string { return "schedule" }

// Cron registers a recurring delivery of Message governed by CronExpr,
// keyed by JobID.
type Cron struct {
	CronExpr string
	Message  any
	JobID    string
}

func (Cron) Kind() string { return "cron" }

// CronCancel deregisters a previously-registered Cron job by JobID.
type CronCancel struct {
	JobID string
}

func (CronCancel) Kind() string { return "cron_cancel" }

// Stop halts the server after the current drain step completes.
// Stop{Reason: "normal"} is permitted but discouraged — logical completion
// should be expressed by writing a terminal status into agent state
// instead (spec §3.3, §4.3).
type Stop struct {
	Reason string
}

func (Stop) Kind() string { return "stop" }
