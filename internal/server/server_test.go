package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/directive"
	"github.com/antigravity-dev/jido/internal/router"
	"github.com/antigravity-dev/jido/internal/signal"
)

// echoStrategy turns each instruction's Action into directives (emit,
// spawn, spawn_agent, stop_child, stop, bad_executor, flood; "panic"
// panics inside Cmd), so tests can drive the drain loop's executor
// dispatch without a real domain module. It also
// counts every completed Cmd invocation in n.
type echoStrategy struct{}

func (echoStrategy) Init(a agent.Agent, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	return a, nil, nil
}

func (echoStrategy) Cmd(a agent.Agent, instructions []agent.Instruction, ctx agent.Ctx) (agent.Agent, []directive.Directive, error) {
	state := cloneState(a.State)
	n, _ := state["n"].(int)
	var ds []directive.Directive
	for _, instr := range instructions {
		switch instr.Action {
		case "panic":
			panic("boom")
		case "emit":
			ds = append(ds, directive.Emit{Signal: mustSignal("jido.echoed")})
		case "spawn":
			ds = append(ds, directive.Spawn{ChildSpec: directive.ChildSpec{Command: "/bin/true"}})
		case "spawn_agent":
			ds = append(ds, directive.SpawnAgent{Module: "child", Tag: "c1"})
		case "stop_child":
			ds = append(ds, directive.StopChild{Tag: "c1", Reason: "done"})
		case "stop":
			ds = append(ds, directive.Stop{Reason: "normal"})
		case "bad_executor":
			ds = append(ds, badDirective{})
		case "flood":
			count, _ := instr.Params["count"].(int)
			for i := 0; i < count; i++ {
				ds = append(ds, directive.Emit{Signal: mustSignal("jido.echoed")})
			}
		}
		n++
	}
	state["n"] = n
	return a.WithState(state), ds, nil
}

func (echoStrategy) Snapshot(a agent.Agent) agent.Snapshot {
	n, _ := a.State["n"].(int)
	return agent.Snapshot{Status: agent.StatusRunning, Done: false, Result: n}
}

func (echoStrategy) SignalRoutes(ctx agent.Ctx) []router.Route {
	var routes []router.Route
	for _, action := range []string{
		"noop", "panic", "emit", "spawn", "spawn_agent", "stop_child", "stop", "bad_executor", "flood",
	} {
		routes = append(routes, router.Route{Pattern: "jido.test." + action, Target: action})
	}
	return routes
}

func cloneState(state map[string]any) map[string]any {
	next := make(map[string]any, len(state)+1)
	for k, v := range state {
		next[k] = v
	}
	return next
}

func mustSignal(typ string) signal.Signal {
	sig, err := signal.New("", "test", typ)
	if err != nil {
		panic(err)
	}
	return sig
}

type badDirective struct{}

func (badDirective) Kind() string { return "nonexistent" }

func testDefinition(t *testing.T) *agent.Definition {
	t.Helper()
	schema := agent.Schema{Fields: map[string]agent.Field{
		"n": {Kind: agent.KindInt, Default: 0},
	}}
	actions := map[string]agent.ActionSpec{}
	for _, name := range []string{
		"noop", "panic", "emit", "spawn", "spawn_agent", "stop_child", "stop", "bad_executor", "flood",
	} {
		actions[name] = agent.ActionSpec{Name: name}
	}
	def, err := agent.NewDefinition("echo", schema, actions, echoStrategy{}, nil, agent.RealEnv{})
	if err != nil {
		t.Fatalf("NewDefinition: %v", err)
	}
	return def
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Definition == nil {
		cfg.Definition = testDefinition(t)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Run(ctx)
	return srv
}

func instr(action string) signal.Signal {
	return instrWithData(action, map[string]any{})
}

func instrWithData(action string, data map[string]any) signal.Signal {
	sig, _ := signal.New("", "test", "jido.test."+action, signal.WithData(data))
	return sig
}

func TestCall_RunsActionAndReturnsSnapshot(t *testing.T) {
	srv := newTestServer(t, Config{ID: "a1"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, err := srv.Call(ctx, instr("noop"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if a.State["n"] != 1 {
		t.Fatalf("expected n=1, got %v", a.State["n"])
	}
}

func TestCall_WaitsForDirectivesFromSameSignalOnly(t *testing.T) {
	var mu sync.Mutex
	var delivered []string
	mbox := &recordingMailboxServer{onDeliver: func(sig signal.Signal) {
		mu.Lock()
		delivered = append(delivered, sig.Type)
		mu.Unlock()
	}}
	srv := newTestServer(t, Config{ID: "a1", DefaultDispatch: pidDesc{mbox}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, err := srv.Call(ctx, instr("emit"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if a.State["n"] != 1 {
		t.Fatalf("expected n=1, got %v", a.State["n"])
	}

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		count := len(delivered)
		mu.Unlock()
		if count == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected emitted signal to be dispatched, got %v", delivered)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCast_QueueOverflowIsNonFatal(t *testing.T) {
	srv := newTestServer(t, Config{ID: "a1", QueueCapacity: 2})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sig := instrWithData("flood", map[string]any{"count": 5})
	err := srv.Cast(ctx, sig)
	if err != ErrQueueOverflow {
		t.Fatalf("expected ErrQueueOverflow, got %v", err)
	}

	// overflow must not crash the process: it stays responsive.
	if _, err := srv.Call(ctx, instr("noop")); err != nil {
		t.Fatalf("server unresponsive after queue overflow: %v", err)
	}
}

func TestPanicInCmd_IsRecoveredAsErrorDirective(t *testing.T) {
	srv := newTestServer(t, Config{ID: "a1"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, err := srv.Call(ctx, instr("panic"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	// agent left unchanged by the panicking cmd (n still 0)
	if a.State["n"] != 0 {
		t.Fatalf("expected agent state unchanged after cmd panic, got %v", a.State["n"])
	}
}

func TestDirectiveWithoutExecutor_DoesNotCrashServer(t *testing.T) {
	srv := newTestServer(t, Config{ID: "a1"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := srv.Call(ctx, instr("bad_executor")); err != nil {
		t.Fatalf("Call: %v", err)
	}

	// server must still be responsive afterwards
	if _, err := srv.Call(ctx, instr("noop")); err != nil {
		t.Fatalf("server unresponsive after bad executor: %v", err)
	}
}

func TestStop_TerminatesProcess(t *testing.T) {
	srv := newTestServer(t, Config{ID: "a1"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := srv.Call(ctx, instr("stop")); err != nil {
		t.Fatalf("Call: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if err := srv.Cast(ctx, instr("noop")); err == nil {
		t.Fatalf("expected delivery to a stopped server to fail")
	}
}

func TestSpawnAgent_TracksChildAndEmitsChildStarted(t *testing.T) {
	sup := &fakeSupervisor{mbox: &recordingMailboxServer{}, id: "child-1"}
	srv := newTestServer(t, Config{ID: "a1", Supervisor: sup})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := srv.Call(ctx, instr("spawn_agent")); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !sup.started {
		t.Fatalf("expected StartChild to be called")
	}
}

func TestChildExited_RemovesTrackedChild(t *testing.T) {
	sup := &fakeSupervisor{mbox: &recordingMailboxServer{}, id: "child-1"}
	srv := newTestServer(t, Config{ID: "a1", Supervisor: sup})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := srv.Call(ctx, instr("spawn_agent")); err != nil {
		t.Fatalf("Call: %v", err)
	}

	// No stopChild ever ran: this is the case of a child that exited on
	// its own (self-stop, crash, or its Run loop simply returning).
	if err := srv.ChildExited(ctx, "c1", "child-1", "crashed"); err != nil {
		t.Fatalf("ChildExited: %v", err)
	}

	if _, ok, err := srv.Child(ctx, "c1"); err != nil || ok {
		t.Fatalf("expected child untracked after ChildExited, ok=%v err=%v", ok, err)
	}
}

func TestChildExited_IgnoresExitAlreadyHandledByStopChild(t *testing.T) {
	sup := &fakeSupervisor{mbox: &recordingMailboxServer{}, id: "child-1"}
	srv := newTestServer(t, Config{ID: "a1", Supervisor: sup})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := srv.Call(ctx, instr("spawn_agent")); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, err := srv.Call(ctx, instr("stop_child")); err != nil {
		t.Fatalf("Call: %v", err)
	}

	// stopChild already removed and notified synchronously; a monitor's
	// late-arriving notification for that same exit must be a no-op
	// rather than a second ChildExit signal.
	if err := srv.ChildExited(ctx, "c1", "child-1", "context_canceled"); err != nil {
		t.Fatalf("ChildExited: %v", err)
	}
	if _, ok, err := srv.Child(ctx, "c1"); err != nil || ok {
		t.Fatalf("expected child to remain untracked, ok=%v err=%v", ok, err)
	}
}

func TestStopChild_RemovesTrackedChild(t *testing.T) {
	sup := &fakeSupervisor{mbox: &recordingMailboxServer{}, id: "child-1"}
	srv := newTestServer(t, Config{ID: "a1", Supervisor: sup})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := srv.Call(ctx, instr("spawn_agent")); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, err := srv.Call(ctx, instr("stop_child")); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !sup.stopped {
		t.Fatalf("expected StopChild to be called")
	}
}

func TestSpawn_WithoutSpawnerFails(t *testing.T) {
	srv := newTestServer(t, Config{ID: "a1"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := srv.Call(ctx, instr("spawn")); err != nil {
		t.Fatalf("Call: %v", err)
	}
	// directive.ErrorWith is non-fatal: Call still succeeds, error is only logged.
}

func TestSpawn_WithSpawnerSucceeds(t *testing.T) {
	spawner := fakeSpawnerFunc(func(ctx context.Context, spec directive.ChildSpec) (int, error) {
		return 42, nil
	})
	srv := newTestServer(t, Config{ID: "a1", Spawner: spawner})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := srv.Call(ctx, instr("spawn")); err != nil {
		t.Fatalf("Call: %v", err)
	}
}

func TestStreamStatus_ClosesOnContextCancellation(t *testing.T) {
	srv := newTestServer(t, Config{ID: "a1"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	count := 0
	for range srv.StreamStatus(ctx, 5*time.Millisecond) {
		count++
		if count > 1000 {
			t.Fatalf("StreamStatus did not stop after context cancellation")
		}
	}
}

// --- fixtures ---

type recordingMailboxServer struct {
	mu        sync.Mutex
	received  []signal.Signal
	onDeliver func(signal.Signal)
}

func (m *recordingMailboxServer) Deliver(ctx context.Context, sig signal.Signal) error {
	m.mu.Lock()
	m.received = append(m.received, sig)
	m.mu.Unlock()
	if m.onDeliver != nil {
		m.onDeliver(sig)
	}
	return nil
}

type pidDesc struct{ target Mailbox }

func (pidDesc) Kind() string { return "pid" }

func (p pidDesc) Send(ctx context.Context, sig signal.Signal) error {
	return p.target.Deliver(ctx, sig)
}

type fakeSupervisor struct {
	mbox    Mailbox
	id      string
	started bool
	stopped bool
}

func (f *fakeSupervisor) StartChild(ctx context.Context, module string, opts map[string]any, parent ParentRef) (Mailbox, string, error) {
	f.started = true
	return f.mbox, f.id, nil
}

func (f *fakeSupervisor) StopChild(ctx context.Context, id, reason string) error {
	f.stopped = true
	return nil
}

type fakeSpawnerFunc func(ctx context.Context, spec directive.ChildSpec) (int, error)

func (f fakeSpawnerFunc) Spawn(ctx context.Context, spec directive.ChildSpec) (int, error) {
	return f(ctx, spec)
}
