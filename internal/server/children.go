package server

import (
	"context"
	"errors"

	"github.com/antigravity-dev/jido/internal/signal"
)

var errNoSupervisor = errors.New("server: no AgentSupervisor configured")

// spawnAgent starts a child under the instance AgentSupervisor, tracks it
// by tag, and — once started — enqueues a ChildStarted signal to self
// (spec.md §4.3 "Child lifecycle").
func (s *Server) spawnAgent(ctx context.Context, module, tag string, opts, meta map[string]any) error {
	if s.supervisor == nil {
		return errNoSupervisor
	}
	mbox, id, err := s.supervisor.StartChild(ctx, module, opts, ParentRef{
		ID: s.id, Tag: tag, Mailbox: s, Meta: meta,
	})
	if err != nil {
		return err
	}
	s.children[tag] = childInfo{id: id, mailbox: mbox, meta: meta}

	sig, err := signal.New("", "jido://server/"+s.id, SignalChildStarted,
		signal.WithData(map[string]any{"tag": tag, "id": id}))
	if err != nil {
		return err
	}
	return s.ingest(ctx, sig, nil)
}

// stopChild sends a graceful stop to a tracked child and removes it on
// exit notification.
func (s *Server) stopChild(ctx context.Context, tag, reason string) error {
	info, ok := s.children[tag]
	if !ok {
		return nil
	}
	if s.supervisor != nil {
		if err := s.supervisor.StopChild(ctx, info.id, reason); err != nil {
			return err
		}
	}
	delete(s.children, tag)

	sig, err := signal.New("", "jido://server/"+s.id, SignalChildExit,
		signal.WithData(map[string]any{"tag": tag, "id": info.id, "reason": reason}))
	if err != nil {
		return err
	}
	return s.ingest(ctx, sig, nil)
}

// ChildExited notifies this server that the child tracked under tag (by
// child process id) has terminated on its own — self-stop, crash, or its
// Run loop simply returning — rather than through an explicit stopChild
// call. It is the external half of the monitoring spec.md §3.4/§4.3
// require: "the parent monitors each child process; a child exit removes
// it from children and enqueues a ChildExit signal", mirroring
// internal/dispatch's Dispatcher.monitorProcess, which re-checks that a
// tracked process entry still exists before acting on a completion it
// observed asynchronously. That recheck is exactly what makes this safe
// to call unconditionally: if stopChild already removed tag (because the
// parent itself requested the stop), this is a no-op, so a child's exit
// is never reported to the parent's mailbox twice.
func (s *Server) ChildExited(ctx context.Context, tag, id, reason string) error {
	return s.submit(ctx, func() {
		info, ok := s.children[tag]
		if !ok || info.id != id {
			return
		}
		delete(s.children, tag)

		sig, err := signal.New("", "jido://server/"+s.id, SignalChildExit,
			signal.WithData(map[string]any{"tag": tag, "id": id, "reason": reason}))
		if err != nil {
			return
		}
		_ = s.ingest(ctx, sig, nil)
	})
}

// notifyChildrenOrphaned delivers an Orphaned signal to every still-
// tracked child when this server terminates (spec.md §4.3 "Parent exit:
// each monitored child receives an Orphaned signal").
func (s *Server) notifyChildrenOrphaned(ctx context.Context) {
	for tag, info := range s.children {
		if info.mailbox == nil {
			continue
		}
		sig, err := signal.New("", "jido://server/"+s.id, SignalOrphaned,
			signal.WithData(map[string]any{"tag": tag, "parent_id": s.id, "reason": s.stopReason}))
		if err != nil {
			continue
		}
		_ = info.mailbox.Deliver(ctx, sig)
	}
}

// Child returns the mailbox currently tracked under tag, if any
// (internal/instance uses this to resolve await_child/2 against a
// concrete server to poll its status).
func (s *Server) Child(ctx context.Context, tag string) (Mailbox, bool, error) {
	type reply struct {
		mbox Mailbox
		ok   bool
	}
	repCh := make(chan reply, 1)
	err := s.submit(ctx, func() {
		info, ok := s.children[tag]
		repCh <- reply{mbox: info.mailbox, ok: ok}
	})
	if err != nil {
		return nil, false, err
	}
	select {
	case r := <-repCh:
		return r.mbox, r.ok, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
