// Package instance implements the Jido instance supervisor (spec.md
// §4.8): a Registry, a dynamic one-for-one AgentSupervisor, a
// TaskSupervisor, and a Scheduler, bundled with no global state so
// multiple instances can coexist in one process.
//
// Grounded on cmd/cortex/main.go's top-level wiring (construct config,
// store, dispatcher, rate limiter, scheduler, then run them together) —
// here reshaped into a reusable constructor instead of main-only wiring,
// since an Instance must be embeddable by any number of host programs,
// not just one CLI entrypoint.
package instance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/scheduler"
	"github.com/antigravity-dev/jido/internal/server"
	"github.com/antigravity-dev/jido/internal/signal"
	"github.com/antigravity-dev/jido/internal/telemetry"
)

// Options configure a new Instance (spec.md §6.4 "Environment /
// configuration").
type Options struct {
	Name             string
	MailboxCapacity  int // default_dispatch's companion knob; 0 defaults to 1024 (per-agent)
	DefaultDispatch  signal.Descriptor
	SchedulerEnabled bool
	Logger           *slog.Logger
	Tracer           server.Tracer // nil disables tracing
	Spawner          server.Spawner

	// ReapInterval, when positive, starts a background reconciliation
	// loop that removes agents left in a terminal status for longer
	// than ReapStaleAfter (default 5m if unset). Zero disables reaping;
	// a host program that always calls StopAgent/Await itself doesn't
	// need it.
	ReapInterval   time.Duration
	ReapStaleAfter time.Duration
}

type agentHandle struct {
	srv      *server.Server
	cancel   context.CancelFunc
	parentID string
	tag      string
	module   string

	// doneSince tracks when this agent was first observed terminal, for
	// the reaper's grace-period check. Zero means "not yet observed
	// terminal" or "observed running since".
	doneSince time.Time
}

// Instance bundles a Registry, AgentSupervisor, TaskSupervisor, and
// Scheduler (spec.md §4.8). It implements server.AgentSupervisor directly
// rather than composing a separate type for it (its Registry, not the
// Instance, satisfies dispatch.Registry): an Instance already holds every
// dependency that role needs
// (the module table, the Registry, the Scheduler, the Tracer), so a
// wrapper type would only forward calls.
type Instance struct {
	Name string

	logger *slog.Logger

	registry  *Registry
	tasks     *TaskSupervisor
	scheduler *scheduler.Scheduler
	tracer    server.Tracer
	spawner   server.Spawner

	defaultDispatch signal.Descriptor
	mailboxCapacity int

	mu      sync.Mutex
	modules map[string]*agent.Definition
	agents  map[string]*agentHandle // agent id -> handle

	reapCancel context.CancelFunc
}

// Start constructs and returns a ready Instance (spec.md §4.8 "start(name,
// opts)"). It does not itself register any agent modules; call
// RegisterModule before the first StartAgent.
func Start(opts Options) *Instance {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("instance", opts.Name)

	var sched *scheduler.Scheduler
	if opts.SchedulerEnabled {
		sched = scheduler.New(logger.With("component", "scheduler"))
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.New()
	}

	in := &Instance{
		Name:            opts.Name,
		logger:          logger,
		registry:        NewRegistry(),
		tasks:           NewTaskSupervisor(logger.With("component", "tasks")),
		scheduler:       sched,
		tracer:          tracer,
		spawner:         opts.Spawner,
		defaultDispatch: opts.DefaultDispatch,
		mailboxCapacity: opts.MailboxCapacity,
		modules:         make(map[string]*agent.Definition),
		agents:          make(map[string]*agentHandle),
	}

	if opts.ReapInterval > 0 {
		staleAfter := opts.ReapStaleAfter
		if staleAfter <= 0 {
			staleAfter = 5 * time.Minute
		}
		reapCtx, cancel := context.WithCancel(context.Background())
		in.reapCancel = cancel
		in.tasks.Go(reapCtx, func(ctx context.Context) {
			in.reap(ctx, opts.ReapInterval, staleAfter)
		})
	}

	return in
}

// RegisterModule makes module available to StartAgent/SpawnAgent under
// name. Registration is a startup-time operation, not expected to race
// with agent lifecycle calls.
func (in *Instance) RegisterModule(name string, def *agent.Definition) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.modules[name] = def
}

// StartAgent starts a top-level agent (no parent) under module, returning
// its id and mailbox (spec.md §4.8 "start_agent(instance, module, opts)").
func (in *Instance) StartAgent(ctx context.Context, module string, opts map[string]any) (string, server.Mailbox, error) {
	mbox, id, err := in.startAgent(ctx, module, opts, nil)
	return id, mbox, err
}

// StartChild satisfies internal/server.AgentSupervisor: it is how a
// running AgentServer's SpawnAgent directive reaches this instance.
func (in *Instance) StartChild(ctx context.Context, module string, opts map[string]any, parent server.ParentRef) (server.Mailbox, string, error) {
	return in.startAgent(ctx, module, opts, &parent)
}

func (in *Instance) startAgent(ctx context.Context, module string, opts map[string]any, parent *server.ParentRef) (server.Mailbox, string, error) {
	in.mu.Lock()
	def, ok := in.modules[module]
	in.mu.Unlock()
	if !ok {
		return nil, "", fmt.Errorf("instance: not_found: unregistered agent module %q", module)
	}

	var parentRef *server.ParentRef
	if parent != nil {
		p := *parent
		p.OnOrphan = onParentDeathPolicy(opts)
		parentRef = &p
	}

	srv, err := server.New(server.Config{
		Definition:      def,
		QueueCapacity:   in.mailboxCapacity,
		DefaultDispatch: in.defaultDispatch,
		Supervisor:      in,
		Tasks:           in.tasks,
		Scheduler:       schedulerOrNil(in.scheduler),
		Tracer:          in.tracer,
		Spawner:         in.spawner,
		Parent:          parentRef,
	})
	if err != nil {
		return nil, "", fmt.Errorf("instance: start_agent %q: %w", module, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	childID := srv.ID()
	go func() {
		reason := srv.Run(runCtx)
		if parent != nil {
			in.notifyParentOfChildExit(parent.ID, parent.Tag, childID, reason)
		}
	}()

	handle := &agentHandle{srv: srv, cancel: cancel, module: module}
	if parent != nil {
		handle.parentID = parent.ID
		handle.tag = parent.Tag
	}

	in.mu.Lock()
	in.agents[srv.ID()] = handle
	in.mu.Unlock()
	in.registry.register(srv.ID(), srv)

	return srv, srv.ID(), nil
}

// notifyParentOfChildExit routes a child's own termination back to its
// parent server (spec.md §3.4 "a child exit removes it from children and
// enqueues a ChildExit signal"). It covers every way a child can end that
// isn't the parent's own explicit stopChild call — self-stop, crash, or
// Run simply returning on context cancellation — mirroring
// internal/dispatch's Dispatcher.monitorProcess: an async goroutine
// observes the exit and hands it back to the owning process, which
// decides whether it's still actionable. ChildExited itself is the
// recheck that makes this safe to call even when stopChild already
// handled the same exit synchronously.
func (in *Instance) notifyParentOfChildExit(parentID, tag, childID, reason string) {
	in.mu.Lock()
	parentHandle, ok := in.agents[parentID]
	in.mu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := parentHandle.srv.ChildExited(ctx, tag, childID, reason); err != nil {
		in.logger.Warn("failed to notify parent of child exit",
			"parent_id", parentID, "child_id", childID, "tag", tag, "error", err)
	}
}

func onParentDeathPolicy(opts map[string]any) string {
	if opts == nil {
		return "continue"
	}
	if v, ok := opts["on_parent_death"].(string); ok && v != "" {
		return v
	}
	return "continue"
}

// schedulerOrNil adapts a possibly-nil *scheduler.Scheduler to a possibly-
// nil server.Scheduler interface value — a plain assignment would produce
// a non-nil interface wrapping a nil pointer.
func schedulerOrNil(s *scheduler.Scheduler) server.Scheduler {
	if s == nil {
		return nil
	}
	return s
}

// StopAgent stops a tracked agent by id and removes it from the Registry
// (spec.md §4.8 "stop_agent(instance, id_or_pid)").
func (in *Instance) StopAgent(ctx context.Context, id, reason string) error {
	in.mu.Lock()
	handle, ok := in.agents[id]
	in.mu.Unlock()
	if !ok {
		return fmt.Errorf("instance: not_found: unknown agent id %q", id)
	}

	err := handle.srv.Stop(ctx, reason)
	// Stop only requests termination; cancel guarantees Run's goroutine
	// exits even if the process never drains its current step (e.g. a
	// wedged Call from another goroutine holding the single queue slot).
	handle.cancel()

	in.mu.Lock()
	delete(in.agents, id)
	in.mu.Unlock()
	in.registry.unregister(id)

	return err
}

// StopChild satisfies internal/server.AgentSupervisor.
func (in *Instance) StopChild(ctx context.Context, id, reason string) error {
	return in.StopAgent(ctx, id, reason)
}

// Whereis resolves an agent id to its mailbox (spec.md §4.8 "whereis(instance,
// id)").
func (in *Instance) Whereis(id string) (server.Mailbox, bool) {
	return in.registry.Resolve(id)
}

// ListAgents returns the ids of every currently tracked agent (spec.md
// §4.8 "list_agents(instance)").
func (in *Instance) ListAgents() []string {
	return in.registry.names()
}

// Count returns the number of currently tracked agents (spec.md §4.8
// "count(instance)").
func (in *Instance) Count() int {
	return in.registry.count()
}

// Await polls id's status until it reaches a terminal state or timeout
// elapses (spec.md §4.8 "await(server, timeout)").
func (in *Instance) Await(ctx context.Context, id string, timeout time.Duration) (server.Status, error) {
	in.mu.Lock()
	handle, ok := in.agents[id]
	in.mu.Unlock()
	if !ok {
		return server.Status{}, fmt.Errorf("instance: not_found: unknown agent id %q", id)
	}
	return server.Await(ctx, handle.srv, timeout)
}

// AwaitChild awaits the agent tagged under parentID's child tag (spec.md
// §4.8 "await_child"), resolving the concrete child Server through the
// parent's own Child accessor rather than a second instance-level lookup.
func (in *Instance) AwaitChild(ctx context.Context, parentID, tag string, timeout time.Duration) (server.Status, error) {
	in.mu.Lock()
	handle, ok := in.agents[parentID]
	in.mu.Unlock()
	if !ok {
		return server.Status{}, fmt.Errorf("instance: not_found: unknown agent id %q", parentID)
	}
	mbox, ok, err := handle.srv.Child(ctx, tag)
	if err != nil {
		return server.Status{}, err
	}
	if !ok {
		return server.Status{}, fmt.Errorf("instance: not_found: no child tagged %q under %q", tag, parentID)
	}
	child, ok := mbox.(*server.Server)
	if !ok {
		return server.Status{}, fmt.Errorf("instance: child tagged %q is not a directly awaitable agent process", tag)
	}
	return server.Await(ctx, child, timeout)
}

// Stop shuts down the instance in the order spec.md §5 requires: the
// scheduler first (halting new timers), then every tracked agent, then
// the TaskSupervisor (waiting for in-flight async work to finish).
func (in *Instance) Stop(ctx context.Context) error {
	if in.reapCancel != nil {
		in.reapCancel()
	}
	if in.scheduler != nil {
		in.scheduler.Stop()
	}

	in.mu.Lock()
	ids := make([]string, 0, len(in.agents))
	for id := range in.agents {
		ids = append(ids, id)
	}
	in.mu.Unlock()

	for _, id := range ids {
		if err := in.StopAgent(ctx, id, "instance_stopping"); err != nil {
			in.logger.Warn("error stopping agent during instance shutdown", "agent_id", id, "error", err)
		}
	}

	return in.tasks.Wait()
}
