package server

import (
	"context"
	"time"

	"github.com/antigravity-dev/jido/internal/agent"
	"github.com/antigravity-dev/jido/internal/signal"
)

// Call is the synchronous public API (spec.md §4.3 "call/2"): route sig,
// run cmd, and block until every directive that signal produced has
// drained, then return the resulting agent snapshot.
func (s *Server) Call(ctx context.Context, sig signal.Signal) (agent.Agent, error) {
	type reply struct {
		a   agent.Agent
		err error
	}
	repCh := make(chan reply, 1)

	err := s.submit(ctx, func() {
		_ = s.ingest(ctx, sig, func(a agent.Agent, err error) {
			repCh <- reply{a: a, err: err}
		})
	})
	if err != nil {
		return agent.Agent{}, err
	}

	select {
	case r := <-repCh:
		return r.a, r.err
	case <-ctx.Done():
		return agent.Agent{}, ctx.Err()
	}
}

// Cast is the fire-and-forget public API (spec.md §4.3 "cast/2"): errors
// are limited to enqueue failures (overflow, a stopped process).
func (s *Server) Cast(ctx context.Context, sig signal.Signal) error {
	return s.Deliver(ctx, sig)
}

// State returns a read-only snapshot of the current agent value.
func (s *Server) State(ctx context.Context) (agent.Agent, error) {
	type reply struct{ a agent.Agent }
	repCh := make(chan reply, 1)
	err := s.submit(ctx, func() { repCh <- reply{a: s.a} })
	if err != nil {
		return agent.Agent{}, err
	}
	select {
	case r := <-repCh:
		return r.a, nil
	case <-ctx.Done():
		return agent.Agent{}, ctx.Err()
	}
}

// Status wraps strategy_snapshot/1 with process metadata (spec.md §4.3
// "status/1").
func (s *Server) Status(ctx context.Context) (Status, error) {
	a, err := s.State(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Snapshot:    agent.StrategySnapshot(a),
		ID:          a.ID,
		AgentModule: a.Module,
	}, nil
}

// StreamStatus returns a channel of Status values polled every interval,
// closed once Snapshot.Done is true or ctx is cancelled (spec.md §4.3
// "stream_status/2" — "a lazy sequence of status values suitable for
// waiting on terminal state").
func (s *Server) StreamStatus(ctx context.Context, interval time.Duration) <-chan Status {
	out := make(chan Status)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			st, err := s.Status(ctx)
			if err != nil {
				return
			}
			select {
			case out <- st:
			case <-ctx.Done():
				return
			}
			if st.Snapshot.Done {
				return
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Stop requests normal termination (spec.md §4.3 "stop/2"). The current
// drain step, if any, completes first.
func (s *Server) Stop(ctx context.Context, reason string) error {
	return s.submit(ctx, func() {
		s.stopped = true
		s.stopReason = reason
	})
}

// Await polls Status until Snapshot.Done is true or timeout elapses
// (spec.md §4.8 "await/2").
func Await(ctx context.Context, s *Server, timeout time.Duration) (Status, error) {
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for st := range s.StreamStatus(deadlineCtx, 25*time.Millisecond) {
		if st.Snapshot.Done {
			return st, nil
		}
	}
	return Status{}, deadlineCtx.Err()
}
