package agent

import (
	"fmt"

	"github.com/antigravity-dev/jido/internal/directive"
	"github.com/antigravity-dev/jido/internal/signal"
)

// Reserved top-level state keys (spec §3.2): __strategy__ is owned
// exclusively by the strategy, __parent__ is injected by the parent
// AgentServer when this agent is spawned as a child (spec §3.4).
const (
	StateKeyStrategy = "__strategy__"
	StateKeyParent   = "__parent__"
)

// Agent is an immutable value: an id, its compiled module Definition, and
// current state. All operations below return new values; nothing mutates
// an existing Agent in place.
type Agent struct {
	ID     string
	Module string
	State  map[string]any
	def    *Definition
}

// NewOpts are the optional inputs to New.
type NewOpts struct {
	ID           string
	InitialState map[string]any
}

// New constructs an agent value: state is the module's schema defaults
// overlaid with opts.InitialState, then validated strictly, then passed
// through the strategy's Init hook (spec §4.1 `new/1`).
func New(def *Definition, opts NewOpts) (Agent, error) {
	if def == nil {
		return Agent{}, fmt.Errorf("agent: definition is required")
	}
	id := opts.ID
	if id == "" {
		id = def.Env.NewID()
	}

	state := def.Schema.Defaults()
	for k, v := range opts.InitialState {
		state[k] = v
	}

	if _, err := def.Schema.Validate(state, true); err != nil {
		return Agent{}, err
	}

	a := Agent{ID: id, Module: def.Name, State: state, def: def}

	a2, _, err := def.Strategy.Init(a, def.ctx())
	if err != nil {
		return Agent{}, fmt.Errorf("%w: strategy init: %v", ErrStrategy, err)
	}
	return a2, nil
}

// Set merges attrs into the top-level of agent state and revalidates
// non-strictly (spec §4.1 `set/2`).
func Set(a Agent, attrs map[string]any) (Agent, error) {
	return setWithValidation(a, attrs, false)
}

// SetStrict is Set under strict validation: missing required fields are
// errors rather than warnings.
func SetStrict(a Agent, attrs map[string]any) (Agent, error) {
	return setWithValidation(a, attrs, true)
}

func setWithValidation(a Agent, attrs map[string]any, strict bool) (Agent, error) {
	next := make(map[string]any, len(a.State)+len(attrs))
	for k, v := range a.State {
		next[k] = v
	}
	for k, v := range attrs {
		next[k] = v
	}
	if _, err := a.def.Schema.Validate(next, strict); err != nil {
		return a, err
	}
	return Agent{ID: a.ID, Module: a.Module, State: next, def: a.def}, nil
}

// Validate checks the agent's current state against its schema.
func Validate(a Agent, strict bool) (Agent, error) {
	if _, err := a.def.Schema.Validate(a.State, strict); err != nil {
		return a, err
	}
	return a, nil
}

// Cmd is the pure transition function (spec §4.1 `cmd/2`). input is one
// of: an action identifier, an (action, params) pair, a signal, or a list
// of any of these. On any error the returned agent is unchanged and the
// single directive returned is an Error.
func Cmd(a Agent, input any) (Agent, []directive.Directive) {
	if sig, ok := input.(signal.Signal); ok && a.def.SignalIntercept != nil {
		overridden, err := a.def.SignalIntercept(sig, ActionContext{
			AgentID: a.ID, Module: a.Module, State: a.State, Env: a.def.Env,
		})
		if err != nil {
			return a, []directive.Directive{errDirective("strategy_error", fmt.Errorf("%w: handle_signal: %v", ErrStrategy, err))}
		}
		input = overridden
	}

	instructions, err := Normalize(input, a.def.Router)
	if err != nil {
		return a, []directive.Directive{errDirective("invalid_input", err)}
	}
	if len(instructions) == 0 {
		return a, nil
	}

	for _, instr := range instructions {
		if _, ok := a.def.Actions[instr.Action]; !ok {
			return a, []directive.Directive{errDirective("action_not_allowed", fmt.Errorf("%w: %s", ErrActionNotAllowed, instr.Action))}
		}
	}

	next, directives, err := a.def.Strategy.Cmd(a, instructions, a.def.ctx())
	if err != nil {
		return a, []directive.Directive{errDirective("strategy_error", fmt.Errorf("%w: %v", ErrStrategy, err))}
	}

	if _, err := a.def.Schema.Validate(next.State, false); err != nil {
		return a, []directive.Directive{errDirective("schema_error", err)}
	}

	return next, directives
}

// StrategySnapshot returns the strategy's public execution-state view,
// derived only from state.__strategy__ (spec §4.1 `strategy_snapshot/1`).
func StrategySnapshot(a Agent) Snapshot {
	return a.def.Strategy.Snapshot(a)
}

// Definition returns the agent's compiled module definition.
func (a Agent) Definition() *Definition { return a.def }

// WithState returns a copy of a with its state replaced by state,
// preserving id, module, and compiled definition. Strategies use this to
// produce the updated agent value Cmd/Init return, since the def field is
// unexported and otherwise inaccessible outside this package.
func (a Agent) WithState(state map[string]any) Agent {
	return Agent{ID: a.ID, Module: a.Module, State: state, def: a.def}
}

func errDirective(kind string, err error) directive.Directive {
	return directive.Error{Type: kind, Context: map[string]any{"error": err.Error()}}
}
