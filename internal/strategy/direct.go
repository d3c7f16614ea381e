// Package strategy provides the two built-in strategy implementations:
// Direct (sequential, first-error-wins) and FSM (phase-gated transitions).
package strategy

import (
	"fmt"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/directive"
)

// Direct executes instructions sequentially, short-circuiting on the
// first action failure (spec §4.4 "Strategy: Direct").
type Direct struct{}

// direct's __strategy__ shape: {"status": string, "result": any}.

func (Direct) Init(a agent.Agent, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	strat := map[string]any{"status": string(agent.StatusIdle), "result": nil}
	state, _, err := agent.ApplyEffects(a.State, []agent.Effect{agent.SetState{Values: map[string]any{agent.StateKeyStrategy: strat}}})
	if err != nil {
		return a, nil, err
	}
	return a.WithState(state), nil, nil
}

func (Direct) Cmd(a agent.Agent, instructions []agent.Instruction, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	state := a.State
	var directives []directive.Directive
	var lastResult any
	failed := false

	for _, instr := range instructions {
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
			failed = true
			break
		}

		newState, ds, err := agent.ApplyEffects(state, res.Effects)
		if err != nil {
			return a, nil, err
		}
		state = newState
		directives = append(directives, ds...)
		lastResult = res.Result
	}

	status := agent.StatusSuccess
	if failed {
		status = agent.StatusFailure
	}
	strat, _ := state[agent.StateKeyStrategy].(map[string]any)
	strat = cloneStrategyState(strat)
	strat["status"] = string(status)
	strat["result"] = lastResult

	state, _, err := agent.ApplyEffects(state, []agent.Effect{agent.SetState{Values: map[string]any{agent.StateKeyStrategy: strat}}})
	if err != nil {
		return a, nil, err
	}

	return a.WithState(state), directives, nil
}

func (Direct) Snapshot(a agent.Agent) agent.Snapshot {
	strat, _ := a.State[agent.StateKeyStrategy].(map[string]any)
	statusStr, _ := strat["status"].(string)
	status := agent.Status(statusStr)
	if status == "" {
		status = agent.StatusIdle
	}
	done := status == agent.StatusSuccess || status == agent.StatusFailure
	return agent.Snapshot{Status: status, Done: done, Result: strat["result"]}
}

func cloneStrategyState(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}
