package agent

import (
	"github.com/antigravity-dev/jido/internal/directive"
	"github.com/antigravity-dev/jido/internal/router"
)

// Status is the public, coarse-grained view of a strategy's progress
// (spec §4.1 strategy_snapshot).
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusWaiting Status = "waiting"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Snapshot is the stable public view of strategy execution state,
// derived only from state.__strategy__ (spec §4.1).
type Snapshot struct {
	Status  Status
	Done    bool
	Result  any
	Details map[string]any
}

// Ctx carries compile-time options and the injected pseudo-environment a
// strategy and its actions run against (spec §4.4).
type Ctx struct {
	Module  string
	Actions map[string]ActionSpec
	Opts    any
	Env     Env
}

// Strategy decides how normalized instructions drive actions and owns
// state.__strategy__ exclusively (spec §3.2, §4.4). Direct and FSM are the
// two built-in implementations (internal/strategy); a Strategy operates
// purely on the Agent value, never on the AgentServer process state.
type Strategy interface {
	// Init seeds state.__strategy__ after base validation in New.
	Init(a Agent, ctx Ctx) (Agent, []directive.Directive, error)
	// Cmd is the real workhorse: runs instructions, returning the updated
	// agent and any directives produced.
	Cmd(a Agent, instructions []Instruction, ctx Ctx) (Agent, []directive.Directive, error)
	// Snapshot derives the public Snapshot view from state.__strategy__.
	Snapshot(a Agent) Snapshot
}

// RouteContributor is implemented by strategies (and plugins) that
// contribute signal routes to the merged router (spec §4.4's optional
// `signal_routes/1`, §3.5's plugin route contributions).
type RouteContributor interface {
	SignalRoutes(ctx Ctx) []router.Route
}
