package plugin

import (
	"fmt"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/directive"
)

// mountingStrategy decorates a base Strategy so that every plugin's Mount
// hook runs, in declaration order, right after the base strategy's own
// Init (spec §4.6 step 6). Cmd and Snapshot simply delegate: plugin
// dispatch interception (handle_signal) and result transformation
// (transform_result) are wired elsewhere (Definition.SignalIntercept and
// the action Run wrappers in mergeActions), not here.
type mountingStrategy struct {
	inner   agent.Strategy
	plugins []agent.Plugin
	cfg     Config
}

func (s *mountingStrategy) Init(a agent.Agent, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	next, ds, err := s.inner.Init(a, ctx)
	if err != nil {
		return a, nil, err
	}
	for _, p := range s.plugins {
		mounted, err := p.Mount(next, s.cfg[p.StateKey()])
		if err != nil {
			return a, nil, fmt.Errorf("plugin: mount %q: %w", p.StateKey(), err)
		}
		next = mounted
	}
	return next, ds, nil
}

func (s *mountingStrategy) Cmd(a agent.Agent, instructions []agent.Instruction, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	return s.inner.Cmd(a, instructions, ctx)
}

func (s *mountingStrategy) Snapshot(a agent.Agent) agent.Snapshot {
	return s.inner.Snapshot(a)
}
