package server

import (
	"context"
	"fmt"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/directive"
	"github.com/antigravity-dev/jido/internal/signal"
)

// Deliver implements Mailbox: route sig, run cmd, enqueue the resulting
// directives, and kick the drain loop if it isn't already running (spec.md
// §4.3 "Core algorithm: drain loop", steps 1-5). It blocks the caller
// until that step has run on the server's goroutine (not until the
// directives drain) and returns its error.
func (s *Server) Deliver(ctx context.Context, sig signal.Signal) error {
	done := make(chan error, 1)
	err := s.submit(ctx, func() {
		done <- s.ingest(ctx, sig, nil)
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ingest performs one routing+cmd+enqueue step. If onDrained is non-nil it
// is invoked once every directive this signal produced has drained
// (Call's synchronous-reply semantics); for Cast/internal delivery it is
// nil.
func (s *Server) ingest(ctx context.Context, sig signal.Signal, onDrained func(agent.Agent, error)) error {
	if s.stopped {
		return ErrStopped
	}

	if sig.Type == SignalOrphaned && s.parent != nil {
		switch s.parent.OnOrphan {
		case "stop":
			s.stopped = true
			s.stopReason = "parent_down"
			if onDrained != nil {
				onDrained(s.a, nil)
			}
			return nil
		case "clear_parent":
			s.a = s.a.WithState(withoutParentState(s.a.State))
			// fall through: the agent module still sees the signal routed
			// normally below, just without a __parent__ to react to.
		}
	}

	spanCtx, end := s.span(ctx, "server.signal.ingest", "signal_type", sig.Type, "agent_id", s.id)
	defer func() { end(nil) }()

	cmdCtx, cmdEnd := s.span(spanCtx, "agent.cmd", "agent_id", s.id)
	next, directives := s.runCmd(cmdCtx, sig)
	cmdEnd(nil)

	needed := len(directives)
	if onDrained != nil {
		needed++
	}
	if len(s.queue)+needed > s.queueCap {
		if onDrained != nil {
			onDrained(s.a, ErrQueueOverflow)
		}
		return ErrQueueOverflow
	}

	s.a = next
	for _, d := range directives {
		s.queue = append(s.queue, queuedDirective{d: d, origin: sig})
	}
	if onDrained != nil {
		s.queue = append(s.queue, queuedDirective{barrier: func() { onDrained(s.a, nil) }})
	}

	s.scheduleDrain(ctx)
	return nil
}

// runCmd invokes the strategy's cmd, recovering any panic into an Error
// directive (spec.md §4.3 "A crash inside cmd is caught; the agent value
// is left unchanged, an Error directive is synthesized").
func (s *Server) runCmd(ctx context.Context, sig signal.Signal) (next agent.Agent, directives []directive.Directive) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cmd panicked", "recovered", r)
			next = s.a
			directives = []directive.Directive{directive.Error{
				Type:    "cmd_panic",
				Context: map[string]any{"recovered": r},
			}}
		}
	}()
	return agent.Cmd(s.a, sig)
}

// scheduleDrain marks draining active and arranges for one drain step to
// run next, if one isn't already scheduled.
func (s *Server) scheduleDrain(ctx context.Context) {
	if s.draining || len(s.queue) == 0 {
		return
	}
	s.draining = true
	_ = s.submit(ctx, func() { s.drainStep(ctx) })
}

// drainStep pops and executes up to one queued directive (spec.md §4.3
// step 6), then reschedules itself if more remain.
func (s *Server) drainStep(ctx context.Context) {
	if len(s.queue) == 0 {
		s.draining = false
		return
	}

	qd := s.queue[0]
	s.queue = s.queue[1:]

	if qd.barrier != nil {
		qd.barrier()
	} else {
		s.execDirective(ctx, qd.d, qd.origin)
	}

	if s.stopped {
		// Release any Call still waiting on a barrier queued behind the
		// stop, so its caller gets a reply rather than waiting out its ctx.
		for _, rest := range s.queue {
			if rest.barrier != nil {
				rest.barrier()
			}
		}
		s.draining = false
		return
	}

	if len(s.queue) > 0 {
		_ = s.submit(ctx, func() { s.drainStep(ctx) })
	} else {
		s.draining = false
	}
}

// execDirective runs one directive through the executor table, recovering
// panics the same way runCmd does (spec.md §4.3 "A crash inside a
// directive executor is caught").
func (s *Server) execDirective(ctx context.Context, d directive.Directive, origin signal.Signal) {
	spanCtx, end := s.span(ctx, "server.directive.exec", "directive_type", d.Kind(), "agent_id", s.id)

	res, err := s.safeExec(spanCtx, d, origin)
	end(err)
	if err != nil {
		s.logger.Error("directive executor failed", "directive_type", d.Kind(), "error", err)
		return
	}

	switch res.Outcome {
	case directive.Failed:
		s.logger.Warn("directive failed", "directive_type", d.Kind(), "reason", res.Reason)
	case directive.StopRequested:
		s.stopped = true
		s.stopReason = res.Reason
		s.logger.Info("server stopping", "reason", res.Reason)
	}
}

func (s *Server) safeExec(ctx context.Context, d directive.Directive, origin signal.Signal) (res directive.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicErr(d.Kind(), r)
		}
	}()
	return s.execTable.Exec(ctx, d, origin)
}

func panicErr(kind string, r any) error {
	return fmt.Errorf("server: directive executor %q panicked: %v", kind, r)
}
