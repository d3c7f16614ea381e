package agent

import "github.com/antigravity-dev/jido/internal/directive"

// Effect is the mixed internal/external result an action may return
// alongside its value (spec §4.4 step 4): internal state operations are
// applied atomically to agent state; DirectiveEffect wraps an external
// directive.Directive and is threaded through to the directive list
// `cmd` ultimately returns.
type Effect interface {
	isEffect()
}

// DirectiveEffect carries an external directive untouched through to the
// caller.
type DirectiveEffect struct {
	Directive directive.Directive
}

func (DirectiveEffect) isEffect() {}

// SetState merges Values into the top level of agent state.
type SetState struct {
	Values map[string]any
}

func (SetState) isEffect() {}

// ReplaceState replaces agent state wholesale.
type ReplaceState struct {
	State map[string]any
}

func (ReplaceState) isEffect() {}

// DeleteKeys removes top-level keys from agent state.
type DeleteKeys struct {
	Keys []string
}

func (DeleteKeys) isEffect() {}

// SetPath sets a nested value at Path, creating intermediate maps as
// needed.
type SetPath struct {
	Path  []string
	Value any
}

func (SetPath) isEffect() {}

// DeletePath removes a nested value at Path.
type DeletePath struct {
	Path []string
}

func (DeletePath) isEffect() {}

// ApplyEffects folds effects over state, returning the new state and the
// external directives collected along the way. State operations apply in
// order; a malformed SetPath/DeletePath (path into a non-map) is an error.
func ApplyEffects(state map[string]any, effects []Effect) (map[string]any, []directive.Directive, error) {
	next := shallowCopy(state)
	var directives []directive.Directive

	for _, eff := range effects {
		switch e := eff.(type) {
		case DirectiveEffect:
			directives = append(directives, e.Directive)
		case SetState:
			for k, v := range e.Values {
				next[k] = v
			}
		case ReplaceState:
			next = shallowCopy(e.State)
		case DeleteKeys:
			for _, k := range e.Keys {
				delete(next, k)
			}
		case SetPath:
			if err := setPath(next, e.Path, e.Value); err != nil {
				return state, nil, err
			}
		case DeletePath:
			if err := deletePath(next, e.Path); err != nil {
				return state, nil, err
			}
		}
	}
	return next, directives, nil
}

func shallowCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// setPath walks path, copy-on-write: every existing nested map it
// descends into is shallow-copied before being linked back into its
// parent, so the write never mutates a map reachable from the input
// state (agent values are deeply immutable, spec §3.2).
func setPath(m map[string]any, path []string, value any) error {
	if len(path) == 0 {
		return errPathEmpty
	}
	cur := m
	for _, seg := range path[:len(path)-1] {
		next, ok := cur[seg]
		if !ok {
			nm := make(map[string]any)
			cur[seg] = nm
			cur = nm
			continue
		}
		nm, ok := next.(map[string]any)
		if !ok {
			return errPathNotMap(seg)
		}
		nm = shallowCopy(nm)
		cur[seg] = nm
		cur = nm
	}
	cur[path[len(path)-1]] = value
	return nil
}

// deletePath walks path the same copy-on-write way as setPath.
func deletePath(m map[string]any, path []string) error {
	if len(path) == 0 {
		return errPathEmpty
	}
	cur := m
	for _, seg := range path[:len(path)-1] {
		next, ok := cur[seg]
		if !ok {
			return nil
		}
		nm, ok := next.(map[string]any)
		if !ok {
			return errPathNotMap(seg)
		}
		nm = shallowCopy(nm)
		cur[seg] = nm
		cur = nm
	}
	delete(cur, path[len(path)-1])
	return nil
}
