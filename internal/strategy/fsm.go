package strategy

import (
	"fmt"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/directive"
)

// FSMConfig is the compile-time configuration for an FSM strategy (spec
// §4.4 "Strategy: FSM"), passed as an agent.Definition's Opts and
// retrieved from agent.Ctx.Opts.
type FSMConfig struct {
	States      []string
	Initial     string
	Transitions map[string][]string // phase -> allowed next phases
	Allowed     map[string][]string // phase -> action names permitted while in that phase
	Terminal    map[string]agent.Status
	OnEnter     map[string]func(a agent.Agent, ctx agent.Ctx) (agent.Agent, []directive.Directive)
	OnExit      map[string]func(a agent.Agent, ctx agent.Ctx) (agent.Agent, []directive.Directive)
}

func (c *FSMConfig) canTransition(from, to string) bool {
	for _, next := range c.Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (c *FSMConfig) actionAllowed(phase, action string) bool {
	for _, a := range c.Allowed[phase] {
		if a == action {
			return true
		}
	}
	return false
}

// FSM gates instruction execution by a finite-state machine held in
// state.__strategy__.phase. An action requests a transition by setting
// __strategy__.phase via a SetPath effect; FSM validates the edge against
// Transitions before accepting it.
type FSM struct{}

func cfgFrom(ctx agent.Ctx) (*FSMConfig, error) {
	cfg, ok := ctx.Opts.(*FSMConfig)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("strategy: FSM requires a *FSMConfig passed as Definition Opts")
	}
	return cfg, nil
}

func phaseOf(state map[string]any) string {
	strat, _ := state[agent.StateKeyStrategy].(map[string]any)
	p, _ := strat["phase"].(string)
	return p
}

func (FSM) Init(a agent.Agent, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	cfg, err := cfgFrom(ctx)
	if err != nil {
		return a, nil, err
	}
	strat := map[string]any{"phase": cfg.Initial}
	state, _, err := agent.ApplyEffects(a.State, []agent.Effect{agent.SetState{Values: map[string]any{agent.StateKeyStrategy: strat}}})
	if err != nil {
		return a, nil, err
	}
	return a.WithState(state), nil, nil
}

func (FSM) Cmd(a agent.Agent, instructions []agent.Instruction, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	cfg, err := cfgFrom(ctx)
	if err != nil {
		return a, nil, err
	}

	state := a.State
	phase := phaseOf(state)
	var directives []directive.Directive

	for _, instr := range instructions {
		if !cfg.actionAllowed(phase, instr.Action) {
			directives = append(directives, directive.Error{
				Type:    "invalid_transition",
				Context: map[string]any{"phase": phase, "action": instr.Action},
			})
			break
		}

		spec, ok := ctx.Actions[instr.Action]
		if !ok {
			return a, nil, fmt.Errorf("strategy: unknown action %q (should have been rejected by agent.Cmd)", instr.Action)
		}

		res := agent.InvokeAction(spec, agent.ActionContext{
			AgentID: a.ID,
			Module:  a.Module,
			State:   state,
			Env:     ctx.Env,
		}, instr.Params)

		if res.Err != nil {
			directives = append(directives, directive.Error{
				Type:    "action_failure",
				Context: map[string]any{"action": instr.Action, "error": res.Err.Error()},
			})
			break
		}

		candidate, ds, err := agent.ApplyEffects(state, res.Effects)
		if err != nil {
			return a, nil, err
		}

		nextPhase := phaseOf(candidate)
		if nextPhase != "" && nextPhase != phase {
			if !cfg.canTransition(phase, nextPhase) {
				directives = append(directives, directive.Error{
					Type:    "invalid_transition",
					Context: map[string]any{"from": phase, "to": nextPhase},
				})
				break
			}
			tmp := a.WithState(candidate)
			if hook := cfg.OnExit[phase]; hook != nil {
				var hds []directive.Directive
				tmp, hds = hook(tmp, ctx)
				candidate = tmp.State
				directives = append(directives, hds...)
			}
			if hook := cfg.OnEnter[nextPhase]; hook != nil {
				var hds []directive.Directive
				tmp, hds = hook(a.WithState(candidate), ctx)
				candidate = tmp.State
				directives = append(directives, hds...)
			}
			phase = nextPhase
		}

		state = candidate
		directives = append(directives, ds...)
	}

	return a.WithState(state), directives, nil
}

func (FSM) Snapshot(a agent.Agent) agent.Snapshot {
	phase := phaseOf(a.State)
	cfg, ok := a.Definition().Opts.(*FSMConfig)
	if !ok || cfg == nil {
		return agent.Snapshot{Status: agent.StatusIdle, Details: map[string]any{"phase": phase}}
	}
	if status, terminal := cfg.Terminal[phase]; terminal {
		return agent.Snapshot{Status: status, Done: true, Details: map[string]any{"phase": phase}}
	}
	status := agent.StatusRunning
	if phase == cfg.Initial {
		status = agent.StatusIdle
	}
	return agent.Snapshot{Status: status, Done: false, Details: map[string]any{"phase": phase}}
}
