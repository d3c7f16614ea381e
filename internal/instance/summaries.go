package instance

import (
	"context"
	"sort"

	"github.com/antigravity-dev/jido/internal/agent"
)

// ModuleSummary aggregates per-module agent status counts. Modeled on the
// teacher's coordination.ProjectSummary/ProjectStats, but computed live
// from currently tracked agents rather than from a persisted store: this
// runtime keeps no durable state of its own (see internal/persist for
// the optional extension point).
type ModuleSummary struct {
	Module  string
	Running int
	Success int
	Failure int
}

// Summaries aggregates status counts across every tracked agent, grouped
// by module, for operational visibility without requiring a persistence
// layer.
func (in *Instance) Summaries(ctx context.Context) ([]ModuleSummary, error) {
	in.mu.Lock()
	handles := make([]*agentHandle, 0, len(in.agents))
	for _, h := range in.agents {
		handles = append(handles, h)
	}
	in.mu.Unlock()

	byModule := make(map[string]*ModuleSummary)
	for _, h := range handles {
		st, err := h.srv.Status(ctx)
		if err != nil {
			continue
		}

		sum, ok := byModule[h.module]
		if !ok {
			sum = &ModuleSummary{Module: h.module}
			byModule[h.module] = sum
		}

		switch st.Snapshot.Status {
		case agent.StatusSuccess:
			sum.Success++
		case agent.StatusFailure:
			sum.Failure++
		default:
			sum.Running++
		}
	}

	out := make([]ModuleSummary, 0, len(byModule))
	for _, sum := range byModule {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out, nil
}
