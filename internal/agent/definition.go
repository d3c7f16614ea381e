package agent

import (
	"fmt"

	"github.com/antigravity-dev/jido/internal/router"
	"github.com/antigravity-dev/jido/internal/signal"
)

// Definition is the compile-time binding of an agent module: its schema,
// allowed actions, strategy, and the merged signal router. It corresponds
// to spec §3.2's "module" concept — the thing `new(opts)` is parameterized
// by — kept distinct from the per-instance Agent value.
//
// internal/plugin builds an extended Definition from a base one plus a
// plugin list (merged schema/actions/routes, wrapped strategy); this
// package only knows how to build the unplugged base case.
type Definition struct {
	Name     string
	Schema   Schema
	Actions  map[string]ActionSpec
	Strategy Strategy
	Opts     any
	Env      Env
	Router   *router.Router

	// SignalIntercept, if set, runs before signal-driven Normalize and may
	// rewrite the effective input (spec §3.5/§4.6 plugin `handle_signal`
	// hook: continue | {override, action_spec} | error). internal/plugin
	// sets this when composing plugins into a Definition; a plain
	// (unplugged) Definition leaves it nil.
	SignalIntercept func(sig signal.Signal, ctx ActionContext) (any, error)
}

// NewDefinition compiles a base Definition: the module name, state schema,
// allowed actions, and a strategy with its compile-time options. The
// router is built from the strategy's contributed routes, if any.
func NewDefinition(name string, schema Schema, actions map[string]ActionSpec, strategy Strategy, opts any, env Env) (*Definition, error) {
	if name == "" {
		return nil, fmt.Errorf("agent: module name is required")
	}
	if strategy == nil {
		return nil, fmt.Errorf("agent: strategy is required")
	}
	if env == nil {
		env = RealEnv{}
	}
	if actions == nil {
		actions = map[string]ActionSpec{}
	}

	ctx := Ctx{Module: name, Actions: actions, Opts: opts, Env: env}

	var routes []router.Route
	if rc, ok := strategy.(RouteContributor); ok {
		routes = rc.SignalRoutes(ctx)
	}
	rt, err := router.New(routes)
	if err != nil {
		return nil, fmt.Errorf("agent: %s: %w", name, err)
	}

	return &Definition{
		Name:     name,
		Schema:   schema,
		Actions:  actions,
		Strategy: strategy,
		Opts:     opts,
		Env:      env,
		Router:   rt,
	}, nil
}

func (d *Definition) ctx() Ctx {
	return Ctx{Module: d.Name, Actions: d.Actions, Opts: d.Opts, Env: d.Env}
}
