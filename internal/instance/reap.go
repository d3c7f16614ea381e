package instance

import (
	"context"
	"time"
)

// reap periodically reconciles the tracked agents against their live
// status, removing any agent that has sat in a terminal status (Snapshot
// .Done) for longer than staleAfter. Grounded on the teacher's
// internal/health/zombie.go CleanZombies loop (reconcile tracked state
// against live state, act only on what is stale) — adapted from
// "process exited without us noticing" to "reached a terminal status
// that nobody ever called StopAgent/Await for", since an in-memory
// runtime has no external process table to reconcile against.
func (in *Instance) reap(ctx context.Context, interval, staleAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			in.reapOnce(ctx, staleAfter)
		}
	}
}

func (in *Instance) reapOnce(ctx context.Context, staleAfter time.Duration) {
	in.mu.Lock()
	ids := make([]string, 0, len(in.agents))
	for id := range in.agents {
		ids = append(ids, id)
	}
	in.mu.Unlock()

	now := time.Now()
	for _, id := range ids {
		in.mu.Lock()
		handle, ok := in.agents[id]
		in.mu.Unlock()
		if !ok {
			continue
		}

		st, err := handle.srv.Status(ctx)
		if err != nil {
			// The agent's own goroutine is gone or ctx died; leave
			// cleanup to StopAgent/Stop rather than guessing here.
			continue
		}

		if !st.Snapshot.Done {
			in.mu.Lock()
			handle.doneSince = time.Time{}
			in.mu.Unlock()
			continue
		}

		in.mu.Lock()
		if handle.doneSince.IsZero() {
			handle.doneSince = now
			in.mu.Unlock()
			continue
		}
		stale := now.Sub(handle.doneSince) >= staleAfter
		in.mu.Unlock()

		if !stale {
			continue
		}

		in.logger.Info("reaping agent left in terminal status", "agent_id", id, "module", handle.module)
		handle.cancel()
		in.mu.Lock()
		delete(in.agents, id)
		in.mu.Unlock()
		in.registry.unregister(id)
	}
}
