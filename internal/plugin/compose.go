// Package plugin implements compile-time plugin/skill composition (spec
// §3.5, §4.6): merging a base agent module with a list of plugins into a
// single extended agent.Definition, with disjoint state slots, a unioned
// action set, a unioned signal router, and the handle_signal/
// transform_result hooks wired around dispatch.
package plugin

import (
	"fmt"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/router"
	"github.com/antigravity-dev/jido/internal/signal"
)

// Config is the per-plugin configuration passed to its Mount hook, keyed
// by the plugin's StateKey.
type Config map[string]map[string]any

// Compose builds an extended agent.Definition from a base module and an
// ordered plugin list (spec §4.6 steps 1-6):
//
//  1. resolve the plugin list (the order given is declaration order)
//  2. validate state_key disjointness against the base schema and other
//     plugins
//  3. merge schemas, each plugin's nested under its state_key
//  4. union the action set (plugin action names must not collide)
//  5. union signal routes (base strategy's + every plugin's)
//  6. wrap dispatch: Mount runs during agent.New (via a decorated
//     Strategy), action results pass through TransformResult, and signals
//     pass through HandleSignal before routing
func Compose(name string, baseSchema agent.Schema, baseActions map[string]agent.ActionSpec, strat agent.Strategy, strategyOpts any, env agent.Env, plugins []agent.Plugin, cfg Config) (*agent.Definition, error) {
	schema, err := mergeSchemas(baseSchema, plugins)
	if err != nil {
		return nil, err
	}
	actions, err := mergeActions(baseActions, plugins)
	if err != nil {
		return nil, err
	}

	routes := collectRoutes(name, strat, strategyOpts, env, actions, plugins)

	wrapped := &mountingStrategy{inner: strat, plugins: plugins, cfg: cfg}

	def, err := agent.NewDefinition(name, schema, actions, wrapped, strategyOpts, env)
	if err != nil {
		return nil, err
	}
	// NewDefinition rebuilds the router from wrapped's own contributed
	// routes (it has none directly); override with the full merged set.
	rt, err := router.New(routes)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", name, err)
	}
	def.Router = rt

	def.SignalIntercept = func(sig signal.Signal, ctx agent.ActionContext) (any, error) {
		return handleSignal(sig, ctx, plugins)
	}

	return def, nil
}

func mergeSchemas(base agent.Schema, plugins []agent.Plugin) (agent.Schema, error) {
	schema := base
	seen := make(map[string]struct{}, len(plugins))
	for _, p := range plugins {
		key := p.StateKey()
		if key == "" {
			return agent.Schema{}, fmt.Errorf("plugin: a plugin's state_key must not be empty")
		}
		if _, dup := seen[key]; dup {
			return agent.Schema{}, fmt.Errorf("plugin: state_key %q is used by more than one plugin", key)
		}
		seen[key] = struct{}{}

		merged, err := schema.Merge(key, p.Schema())
		if err != nil {
			return agent.Schema{}, fmt.Errorf("plugin: %w", err)
		}
		schema = merged
	}
	return schema, nil
}

func mergeActions(base map[string]agent.ActionSpec, plugins []agent.Plugin) (map[string]agent.ActionSpec, error) {
	actions := make(map[string]agent.ActionSpec, len(base))
	for k, v := range base {
		actions[k] = v
	}
	for _, p := range plugins {
		for name, spec := range p.Actions() {
			if _, dup := actions[name]; dup {
				return nil, fmt.Errorf("plugin: action %q from plugin %q collides with an existing action", name, p.StateKey())
			}
			actions[name] = spec
		}
	}

	// Wrap every action's Run with the transform_result chain so every
	// external-facing result is transformed uniformly, regardless of
	// which plugin (or the base module) owns the action.
	for name, spec := range actions {
		spec := spec
		origRun := spec.Run
		spec.Run = func(ctx agent.ActionContext, params map[string]any) agent.ActionResult {
			res := origRun(ctx, params)
			if res.Err != nil {
				return res
			}
			for _, p := range plugins {
				rt, ok := p.(agent.ResultTransformer)
				if !ok {
					continue
				}
				transformed, err := rt.TransformResult(name, res.Result, ctx)
				if err != nil {
					return agent.Failed(err)
				}
				res.Result = transformed
			}
			return res
		}
		actions[name] = spec
	}
	return actions, nil
}

func collectRoutes(name string, strat agent.Strategy, strategyOpts any, env agent.Env, actions map[string]agent.ActionSpec, plugins []agent.Plugin) []router.Route {
	var routes []router.Route
	if rc, ok := strat.(agent.RouteContributor); ok {
		ctx := agent.Ctx{Module: name, Actions: actions, Opts: strategyOpts, Env: env}
		routes = append(routes, rc.SignalRoutes(ctx)...)
	}
	for _, p := range plugins {
		if rc, ok := p.(agent.PluginRouteContributor); ok {
			routes = append(routes, rc.Routes()...)
		}
	}
	return routes
}

func handleSignal(sig signal.Signal, ctx agent.ActionContext, plugins []agent.Plugin) (any, error) {
	for _, p := range plugins {
		sh, ok := p.(agent.SignalHandler)
		if !ok {
			continue
		}
		verdict, err := sh.HandleSignal(sig, ctx)
		if err != nil {
			return nil, err
		}
		if verdict.Override {
			return verdict.Instruction, nil
		}
	}
	return sig, nil
}
