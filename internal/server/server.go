package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/directive"
	"github.com/antigravity-dev/jido/internal/dispatch"
	"github.com/antigravity-dev/jido/internal/signal"
)

// Sentinel errors surfaced by the public API (spec.md §4.3).
var (
	ErrQueueOverflow = errors.New("server: directive queue overflow")
	ErrStopped       = errors.New("server: process has stopped")
)

const defaultQueueCapacity = 1024

type queuedDirective struct {
	d      directive.Directive
	origin signal.Signal
	// barrier, if set, is invoked instead of looking up an executor; used
	// to implement Call's "reply only once every directive from this
	// signal has drained" semantics without a separate wait mechanism.
	barrier func()
}

// Server owns one agent value and drains its directives single-threaded.
// Every field below this comment is only ever touched from the goroutine
// running Run; external access goes through cmds.
type Server struct {
	id     string
	def    *agent.Definition
	logger *slog.Logger

	defaultDispatch signal.Descriptor
	supervisor      AgentSupervisor
	tasks           TaskSupervisor
	scheduler       Scheduler
	tracer          Tracer
	spawner         Spawner
	execTable       directive.Table

	cmds chan func()

	// process state (spec.md §4.3 "Process state"), mutated only inside Run
	a          agent.Agent
	queue      []queuedDirective
	queueCap   int
	draining   bool
	stopped    bool
	stopReason string
	children   map[string]childInfo
	parent     *ParentRef
	cronJobs   map[string]struct{}
}

// New constructs a Server and its initial agent value but does not start
// it; call Run in its own goroutine to begin processing.
func New(cfg Config) (*Server, error) {
	if cfg.Definition == nil {
		return nil, fmt.Errorf("server: definition is required")
	}
	a, err := agent.New(cfg.Definition, agent.NewOpts{ID: cfg.ID})
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	cap := cfg.QueueCapacity
	if cap <= 0 {
		cap = defaultQueueCapacity
	}

	s := &Server{
		id:              a.ID,
		def:             cfg.Definition,
		logger:          slog.Default().With("agent_id", a.ID, "agent_module", cfg.Definition.Name),
		defaultDispatch: cfg.DefaultDispatch,
		supervisor:      cfg.Supervisor,
		tasks:           cfg.Tasks,
		scheduler:       cfg.Scheduler,
		tracer:          cfg.Tracer,
		spawner:         cfg.Spawner,
		cmds:            make(chan func(), 256),
		a:               a,
		queueCap:        cap,
		children:        make(map[string]childInfo),
		parent:          cfg.Parent,
		cronJobs:        make(map[string]struct{}),
	}
	s.execTable = s.buildExecTable()

	if cfg.Parent != nil {
		a2 := s.a.WithState(withParentState(s.a.State, *cfg.Parent))
		if _, err := agent.Validate(a2, false); err == nil {
			s.a = a2
		}
	}

	return s, nil
}

// withParentState builds __parent__ with the {pid, id, tag, meta} shape
// spec.md §3.4 specifies. pid is a dispatch.Pid descriptor wrapping the
// parent's own mailbox, letting a child's strategy dispatch straight back
// to it (e.g. `Emit{Dispatch: state["__parent__"]["pid"].(signal.Descriptor), ...}`)
// without the instance's named registry in the loop.
func withParentState(state map[string]any, p ParentRef) map[string]any {
	next := make(map[string]any, len(state)+1)
	for k, v := range state {
		next[k] = v
	}
	parent := map[string]any{
		"id": p.ID, "tag": p.Tag, "meta": p.Meta,
	}
	if p.Mailbox != nil {
		parent["pid"] = dispatch.Pid{Target: p.Mailbox}
	}
	next[agent.StateKeyParent] = parent
	return next
}

// withoutParentState strips __parent__, used by the "clear_parent"
// on_parent_death policy (spec.md §6.4, §7 "parent_down").
func withoutParentState(state map[string]any) map[string]any {
	next := make(map[string]any, len(state))
	for k, v := range state {
		if k == agent.StateKeyParent {
			continue
		}
		next[k] = v
	}
	return next
}

// Run processes commands until ctx is cancelled or a Stop directive
// completes. It must be called exactly once, typically via `go s.Run(ctx)`.
// The returned reason is what a monitoring parent reports as this
// process's ChildExit reason (spec.md §3.4, §4.3 "child exit ... enqueues
// a ChildExit signal").
func (s *Server) Run(ctx context.Context) (reason string) {
	for {
		select {
		case <-ctx.Done():
			return "context_canceled"
		case fn, ok := <-s.cmds:
			if !ok {
				return "mailbox_closed"
			}
			fn()
			if s.stopped {
				// The run ctx may already be cancelled by whoever asked for
				// the stop, so the Orphaned notices get a bounded ctx of
				// their own.
				notifyCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				s.notifyChildrenOrphaned(notifyCtx)
				cancel()
				if s.stopReason != "" {
					return s.stopReason
				}
				return "stopped"
			}
		}
	}
}

// submit enqueues fn onto the actor's command channel, blocking until
// either it is accepted or ctx is done. fn always runs on the Server's
// single goroutine.
func (s *Server) submit(ctx context.Context, fn func()) error {
	select {
	case s.cmds <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ID returns the owned agent's id, stable for the process's lifetime.
func (s *Server) ID() string {
	return s.id
}

func (s *Server) span(ctx context.Context, name string, attrs ...any) (context.Context, func(err error)) {
	if s.tracer == nil {
		return ctx, func(error) {}
	}
	return s.tracer.StartSpan(ctx, name, attrs...)
}
