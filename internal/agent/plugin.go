package agent

import (
	"github.com/antigravity-dev/jido/internal/router"
	"github.com/antigravity-dev/jido/internal/signal"
)

// Plugin is a named, versioned capability contributing a disjoint state
// slot, actions, routes, and optional lifecycle hooks (spec §3.5). Only
// StateKey and Mount are required; the remaining hooks are optional and
// detected via the SignalHandler/ResultTransformer/RouteContributor
// interfaces below, following the same structural-typing convention as
// Strategy's optional RouteContributor.
type Plugin interface {
	// StateKey names this plugin's disjoint slot in agent state.
	StateKey() string
	// Schema is the (possibly empty) schema nested under StateKey.
	Schema() Schema
	// Actions this plugin contributes, unioned into the agent's allowed
	// action set.
	Actions() map[string]ActionSpec
	// Mount is a pure transform applied to the agent at composition time
	// (spec §4.6 step 6), in plugin declaration order.
	Mount(a Agent, config map[string]any) (Agent, error)
}

// HandleVerdict is the result of a SignalHandler.HandleSignal call:
// `continue | {override, action_spec} | error` (spec §3.5, §4.6).
type HandleVerdict struct {
	Override    bool
	Instruction Instruction
}

// ContinueVerdict proceeds with the router's normally-resolved action.
func ContinueVerdict() HandleVerdict { return HandleVerdict{} }

// OverrideVerdict replaces the dispatched action with spec.
func OverrideVerdict(spec Instruction) HandleVerdict {
	return HandleVerdict{Override: true, Instruction: spec}
}

// SignalHandler is an optional Plugin hook intercepting signal-driven
// dispatch before the router's resolved action runs.
type SignalHandler interface {
	HandleSignal(sig signal.Signal, ctx ActionContext) (HandleVerdict, error)
}

// ResultTransformer is an optional Plugin hook applied once per
// external-facing action result, in plugin declaration order.
type ResultTransformer interface {
	TransformResult(action string, result any, ctx ActionContext) (any, error)
}

// PluginRouteContributor is the plugin-side analogue of
// Strategy.RouteContributor (spec §3.5 "optional signal route
// contributions").
type PluginRouteContributor interface {
	Routes() []router.Route
}
