package instance

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/directive"
	"github.com/antigravity-dev/jido/internal/router"
	"github.com/antigravity-dev/jido/internal/signal"
)

// pingStrategy is a minimal module: every "jido.test.spawn_child" signal
// spawns a child tagged "kid" under the given module name, every
// "jido.test.stop" signal issues a Stop directive, everything else is a
// no-op that increments n (used as a liveness probe).
type pingStrategy struct{}

func (pingStrategy) Init(a agent.Agent, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	return a, nil, nil
}

func (pingStrategy) Cmd(a agent.Agent, instructions []agent.Instruction, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	state := make(map[string]any, len(a.State)+1)
	for k, v := range a.State {
		state[k] = v
	}
	n, _ := state["n"].(int)
	var ds []directive.Directive
	for _, instr := range instructions {
		switch instr.Action {
		case "spawn_child":
			module, _ := instr.Params["module"].(string)
			var opts map[string]any
			if policy, ok := instr.Params["on_parent_death"].(string); ok && policy != "" {
				opts = map[string]any{"on_parent_death": policy}
			}
			ds = append(ds, directive.SpawnAgent{Module: module, Tag: "kid", Opts: opts})
		case "stop":
			ds = append(ds, directive.Stop{Reason: "normal"})
		}
		n++
	}
	state["n"] = n
	return a.WithState(state), ds, nil
}

func (pingStrategy) Snapshot(a agent.Agent) agent.Snapshot {
	n, _ := a.State["n"].(int)
	return agent.Snapshot{Status: agent.StatusRunning, Done: false, Result: n}
}

func (pingStrategy) SignalRoutes(ctx agent.Ctx) []router.Route {
	return []router.Route{
		{Pattern: "jido.test.spawn_child", Target: "spawn_child"},
		{Pattern: "jido.test.stop", Target: "stop"},
		{Pattern: "jido.test.noop", Target: "noop"},
		{Pattern: "jido.orphaned", Target: "noop"},
	}
}

func testModule(t *testing.T, name string) *agent.Definition {
	t.Helper()
	schema := agent.Schema{Fields: map[string]agent.Field{
		"n": {Kind: agent.KindInt, Default: 0},
	}}
	actions := map[string]agent.ActionSpec{
		"spawn_child": {Name: "spawn_child"},
		"stop":        {Name: "stop"},
		"noop":        {Name: "noop"},
	}
	def, err := agent.NewDefinition(name, schema, actions, pingStrategy{}, nil, agent.RealEnv{})
	if err != nil {
		t.Fatalf("NewDefinition(%q): %v", name, err)
	}
	return def
}

// doneStrategy is a module whose Snapshot always reports terminal
// success, used to exercise the stale-agent reaper without needing a
// real "stop" signal round trip.
type doneStrategy struct{}

func (doneStrategy) Init(a agent.Agent, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	return a, nil, nil
}

func (doneStrategy) Cmd(a agent.Agent, instructions []agent.Instruction, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	return a, nil, nil
}

func (doneStrategy) Snapshot(a agent.Agent) agent.Snapshot {
	return agent.Snapshot{Status: agent.StatusSuccess, Done: true, Result: nil}
}

func (doneStrategy) SignalRoutes(ctx agent.Ctx) []router.Route {
	return []router.Route{{Pattern: "jido.orphaned", Target: "noop"}}
}

func testModuleDone(t *testing.T, name string) *agent.Definition {
	t.Helper()
	def, err := agent.NewDefinition(name, agent.Schema{}, map[string]agent.ActionSpec{}, doneStrategy{}, nil, agent.RealEnv{})
	if err != nil {
		t.Fatalf("NewDefinition(%q): %v", name, err)
	}
	return def
}

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	in := Start(Options{Name: "test"})
	in.RegisterModule("parent", testModule(t, "parent"))
	in.RegisterModule("child", testModule(t, "child"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = in.Stop(ctx)
	})
	return in
}

func sig(typ string, data map[string]any) signal.Signal {
	s, err := signal.New("", "test", typ, signal.WithData(data))
	if err != nil {
		panic(err)
	}
	return s
}

func TestStartAgent_TracksAndResolvesViaWhereis(t *testing.T) {
	in := newTestInstance(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	id, mbox, err := in.StartAgent(ctx, "parent", nil)
	if err != nil {
		t.Fatalf("StartAgent: %v", err)
	}
	if mbox == nil {
		t.Fatal("expected non-nil mailbox")
	}
	if in.Count() != 1 {
		t.Fatalf("expected count 1, got %d", in.Count())
	}
	got, ok := in.Whereis(id)
	if !ok || got == nil {
		t.Fatalf("Whereis(%q): ok=%v", id, ok)
	}
	names := in.ListAgents()
	if len(names) != 1 || names[0] != id {
		t.Fatalf("ListAgents: got %v, want [%s]", names, id)
	}
}

func TestStartAgent_UnregisteredModuleErrors(t *testing.T) {
	in := newTestInstance(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, _, err := in.StartAgent(ctx, "nope", nil); err == nil {
		t.Fatal("expected error for unregistered module")
	}
}

func TestStopAgent_RemovesFromRegistry(t *testing.T) {
	in := newTestInstance(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	id, _, err := in.StartAgent(ctx, "parent", nil)
	if err != nil {
		t.Fatalf("StartAgent: %v", err)
	}
	if err := in.StopAgent(ctx, id, "test_done"); err != nil {
		t.Fatalf("StopAgent: %v", err)
	}
	if _, ok := in.Whereis(id); ok {
		t.Fatal("expected agent to be gone from registry after StopAgent")
	}
	if in.Count() != 0 {
		t.Fatalf("expected count 0, got %d", in.Count())
	}
}

func TestSpawnAgentDirective_ReachesInstanceAndSpawnsChild(t *testing.T) {
	in := newTestInstance(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, mbox, err := in.StartAgent(ctx, "parent", nil)
	if err != nil {
		t.Fatalf("StartAgent: %v", err)
	}
	parent := mbox.(interface {
		Call(ctx context.Context, sig signal.Signal) (agent.Agent, error)
	})

	_, err = parent.Call(ctx, sig("jido.test.spawn_child", map[string]any{"module": "child"}))
	if err != nil {
		t.Fatalf("Call(spawn_child): %v", err)
	}

	if in.Count() != 2 {
		t.Fatalf("expected 2 tracked agents (parent+child), got %d", in.Count())
	}
}

func TestOnParentDeath_DefaultContinuePolicyKeepsChildAliveWhenParentStops(t *testing.T) {
	in := newTestInstance(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	parentID, parentMbox, err := in.StartAgent(ctx, "parent", nil)
	if err != nil {
		t.Fatalf("StartAgent: %v", err)
	}
	parent := parentMbox.(interface {
		Call(ctx context.Context, sig signal.Signal) (agent.Agent, error)
	})

	_, err = parent.Call(ctx, sig("jido.test.spawn_child", map[string]any{"module": "child"}))
	if err != nil {
		t.Fatalf("Call(spawn_child): %v", err)
	}
	if in.Count() != 2 {
		t.Fatalf("expected 2 tracked agents before parent stop, got %d", in.Count())
	}

	if err := in.StopAgent(ctx, parentID, "shutdown"); err != nil {
		t.Fatalf("StopAgent(parent): %v", err)
	}

	// The child is still tracked in the Instance's own registry (StopAgent
	// on the parent does not cascade instance-level bookkeeping for its
	// children). This test's module uses the default "continue"
	// on_parent_death policy (no opt given), so the child must remain live
	// and answerable after the parent stops.
	names := in.ListAgents()
	var childID string
	for _, name := range names {
		if name != parentID {
			childID = name
		}
	}
	if childID == "" {
		t.Fatal("expected child still tracked after default (continue) on_parent_death policy")
	}
	childMbox, ok := in.Whereis(childID)
	if !ok {
		t.Fatal("expected child mailbox still resolvable")
	}
	child := childMbox.(interface {
		Call(ctx context.Context, sig signal.Signal) (agent.Agent, error)
	})
	if _, err := child.Call(ctx, sig("jido.test.noop", nil)); err != nil {
		t.Fatalf("expected child still answering Call after parent stop (continue policy), got: %v", err)
	}
}

func TestOnParentDeath_StopPolicyStopsChildWhenParentStops(t *testing.T) {
	in := newTestInstance(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	parentID, parentMbox, err := in.StartAgent(ctx, "parent", nil)
	if err != nil {
		t.Fatalf("StartAgent: %v", err)
	}
	parent := parentMbox.(interface {
		Call(ctx context.Context, sig signal.Signal) (agent.Agent, error)
	})

	_, err = parent.Call(ctx, sig("jido.test.spawn_child", map[string]any{
		"module":          "child",
		"on_parent_death": "stop",
	}))
	if err != nil {
		t.Fatalf("Call(spawn_child): %v", err)
	}

	names := in.ListAgents()
	var childID string
	for _, name := range names {
		if name != parentID {
			childID = name
		}
	}
	if childID == "" {
		t.Fatal("expected child tracked after spawn")
	}
	childMbox, ok := in.Whereis(childID)
	if !ok {
		t.Fatal("expected child mailbox resolvable before parent stop")
	}
	child := childMbox.(interface {
		Call(ctx context.Context, sig signal.Signal) (agent.Agent, error)
	})

	if err := in.StopAgent(ctx, parentID, "shutdown"); err != nil {
		t.Fatalf("StopAgent(parent): %v", err)
	}

	// The child's server itself stops in response to the parent's Orphaned
	// signal (stop policy), so a subsequent Call must fail even though the
	// Instance's own bookkeeping still resolves the id.
	if _, err := child.Call(ctx, sig("jido.test.noop", nil)); err == nil {
		t.Fatal("expected child Call to fail after parent stop (stop policy)")
	}
}

func TestSelfStoppedChild_NotifiesParentAndRemovesFromChildren(t *testing.T) {
	in := newTestInstance(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	parentID, parentMbox, err := in.StartAgent(ctx, "parent", nil)
	if err != nil {
		t.Fatalf("StartAgent: %v", err)
	}
	parent := parentMbox.(interface {
		Call(ctx context.Context, sig signal.Signal) (agent.Agent, error)
	})

	_, err = parent.Call(ctx, sig("jido.test.spawn_child", map[string]any{"module": "child"}))
	if err != nil {
		t.Fatalf("Call(spawn_child): %v", err)
	}

	names := in.ListAgents()
	var childID string
	for _, name := range names {
		if name != parentID {
			childID = name
		}
	}
	if childID == "" {
		t.Fatal("expected child tracked after spawn")
	}
	childMbox, ok := in.Whereis(childID)
	if !ok {
		t.Fatal("expected child mailbox resolvable before self-stop")
	}
	child := childMbox.(interface {
		Call(ctx context.Context, sig signal.Signal) (agent.Agent, error)
	})

	// The child stops itself directly — never via the parent's stop_child
	// directive — so only the background exit monitor can tell the parent.
	if _, err := child.Call(ctx, sig("jido.test.stop", nil)); err != nil {
		t.Fatalf("Call(stop) on child: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		_, lastErr = in.AwaitChild(ctx, parentID, "kid", 50*time.Millisecond)
		if lastErr != nil && strings.Contains(lastErr.Error(), "not_found") {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected parent's children[%q] removed after child self-stopped, last error: %v", "kid", lastErr)
}

func TestSummaries_AggregatesByModule(t *testing.T) {
	in := newTestInstance(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, _, err := in.StartAgent(ctx, "parent", nil); err != nil {
		t.Fatalf("StartAgent(parent): %v", err)
	}
	if _, _, err := in.StartAgent(ctx, "child", nil); err != nil {
		t.Fatalf("StartAgent(child): %v", err)
	}
	if _, _, err := in.StartAgent(ctx, "child", nil); err != nil {
		t.Fatalf("StartAgent(child): %v", err)
	}

	summaries, err := in.Summaries(ctx)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 module summaries, got %d: %+v", len(summaries), summaries)
	}

	byModule := make(map[string]ModuleSummary, len(summaries))
	for _, s := range summaries {
		byModule[s.Module] = s
	}
	if byModule["parent"].Running != 1 {
		t.Errorf("expected 1 running parent agent, got %+v", byModule["parent"])
	}
	if byModule["child"].Running != 2 {
		t.Errorf("expected 2 running child agents, got %+v", byModule["child"])
	}
}

func TestReap_RemovesAgentsStaleInTerminalStatus(t *testing.T) {
	in := Start(Options{Name: "test-reap", ReapInterval: 20 * time.Millisecond, ReapStaleAfter: 20 * time.Millisecond})
	in.RegisterModule("done", testModuleDone(t, "done"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = in.Stop(ctx)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id, _, err := in.StartAgent(ctx, "done", nil)
	if err != nil {
		t.Fatalf("StartAgent: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := in.Whereis(id); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected agent %q to be reaped after sitting terminal past the stale window", id)
}
