package agent

import (
	"fmt"

	"github.com/antigravity-dev/jido/internal/router"
	"github.com/antigravity-dev/jido/internal/signal"
)

// Instruction is the normalized unit of work `cmd` feeds to the strategy:
// an action identifier paired with its parameters (spec §4.1).
type Instruction struct {
	Action string
	Params map[string]any
}

// Normalize applies the input-normalization rules of spec §4.1:
//
//  1. a bare action identifier becomes Instruction{Action, {}}
//  2. an (action, params) pair (Instruction) is kept
//  3. a signal.Signal with a matching route becomes one Instruction per
//     matched route target, with Params taken from the signal's data
//  4. a []any is flattened and normalized element-wise
//  5. anything else is invalid_input
//
// Action-set authorization (rule 5's "action_not_allowed") is checked by
// the caller (agent.Cmd), not here, since Normalize has no notion of which
// actions are allowed.
func Normalize(input any, r *router.Router) ([]Instruction, error) {
	switch v := input.(type) {
	case string:
		return []Instruction{{Action: v, Params: map[string]any{}}}, nil
	case Instruction:
		if v.Params == nil {
			v.Params = map[string]any{}
		}
		return []Instruction{v}, nil
	case signal.Signal:
		return normalizeSignal(v, r)
	case []any:
		var out []Instruction
		for _, elem := range v {
			ins, err := Normalize(elem, r)
			if err != nil {
				return nil, err
			}
			out = append(out, ins...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported input type %T", ErrInvalidInput, input)
	}
}

func normalizeSignal(sig signal.Signal, r *router.Router) ([]Instruction, error) {
	if r == nil {
		return nil, nil
	}
	targets := r.Match(sig.Type)
	if len(targets) == 0 {
		return nil, nil
	}
	params := dataAsParams(sig.Data)

	var out []Instruction
	for _, t := range targets {
		switch target := t.(type) {
		case string:
			out = append(out, Instruction{Action: target, Params: params})
		case Instruction:
			merged := make(map[string]any, len(target.Params)+len(params))
			for k, v := range target.Params {
				merged[k] = v
			}
			for k, v := range params {
				merged[k] = v
			}
			out = append(out, Instruction{Action: target.Action, Params: merged})
		default:
			return nil, fmt.Errorf("%w: route target has unsupported type %T", ErrInvalidInput, t)
		}
	}
	return out, nil
}

func dataAsParams(data any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	if m, ok := data.(map[string]any); ok {
		return m
	}
	return map[string]any{"data": data}
}
