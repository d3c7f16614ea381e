package server

import (
	"context"
	"time"

	"github.com/antigravity-dev/jido/internal/directive"
	"github.com/antigravity-dev/jido/internal/dispatch"
	"github.com/antigravity-dev/jido/internal/signal"
)

// Spawner is the process-launch contract the Spawn directive executor
// delegates to (internal/childproc.Spawner satisfies it).
type Spawner interface {
	Spawn(ctx context.Context, spec directive.ChildSpec) (int, error)
}

// buildExecTable builds the directive.Table bound to this Server's
// process state (spec.md §4.5). Kept as a method on Server rather than a
// standalone package: every executor closure needs to dispatch signals
// through this specific process, spawn children under this process's
// supervisor relationship, or re-enter this process's own queue — the
// directive.Table/ExecFunc contract was designed exactly so a fresh table
// can be built per process rather than parameterized generically.
func (s *Server) buildExecTable() directive.Table {
	return directive.Table{
		"emit":        s.execEmit,
		"error":       s.execError,
		"spawn":       s.execSpawn,
		"spawn_agent": s.execSpawnAgent,
		"stop_child":  s.execStopChild,
		"schedule":    s.execSchedule,
		"cron":        s.execCron,
		"cron_cancel": s.execCronCancel,
		"stop":        s.execStop,
	}
}

// execEmit dispatches a signal using the directive's own dispatch, the
// signal's DispatchHint, or the server default, in that priority order
// (spec.md §4.5 "Emit"). Dispatch failures are reported as an internal
// error signal but never stop the drain.
func (s *Server) execEmit(ctx context.Context, d directive.Directive, origin signal.Signal) (directive.Result, error) {
	emit := d.(directive.Emit)

	desc := emit.Dispatch
	if desc == nil {
		desc = emit.Signal.DispatchHint
	}
	if desc == nil {
		desc = s.defaultDispatch
	}
	if desc == nil {
		desc = dispatch.Noop{}
	}

	if err := dispatch.Dispatch(ctx, desc, emit.Signal); err != nil {
		s.logger.Error("dispatch failed", "signal_type", emit.Signal.Type, "error", err)
		errSig, sigErr := signal.New("", "jido://server/"+s.id, SignalDispatchError,
			signal.WithData(map[string]any{"signal_type": emit.Signal.Type, "error": err.Error()}))
		if sigErr == nil {
			_ = s.ingest(ctx, errSig, nil)
		}
	}
	return directive.OK(), nil
}

// execError logs a structured error event and emits a corresponding error
// signal (spec.md §3.3 "Error" directive).
func (s *Server) execError(ctx context.Context, d directive.Directive, origin signal.Signal) (directive.Result, error) {
	e := d.(directive.Error)
	s.logger.Error("agent error", "error_type", e.Type, "context", e.Context)

	errSig, err := signal.New("", "jido://server/"+s.id, "jido.error."+e.Type,
		signal.WithData(e.Context))
	if err != nil {
		return directive.ErrorWith(err.Error()), nil
	}
	_ = s.ingest(ctx, errSig, nil)
	return directive.OK(), nil
}

// execSpawn launches a generic worker process and returns immediately;
// the launched process is fire-and-forget from the drain loop's
// perspective (spec.md §3.3 "Spawn").
func (s *Server) execSpawn(ctx context.Context, d directive.Directive, origin signal.Signal) (directive.Result, error) {
	spawn := d.(directive.Spawn)
	if s.spawner == nil {
		return directive.ErrorWith("no process spawner configured"), nil
	}
	if _, err := s.spawner.Spawn(ctx, spawn.ChildSpec); err != nil {
		return directive.ErrorWith(err.Error()), nil
	}
	return directive.OK(), nil
}

func (s *Server) execSpawnAgent(ctx context.Context, d directive.Directive, origin signal.Signal) (directive.Result, error) {
	sa := d.(directive.SpawnAgent)
	if err := s.spawnAgent(ctx, sa.Module, sa.Tag, sa.Opts, sa.Meta); err != nil {
		return directive.ErrorWith(err.Error()), nil
	}
	return directive.OK(), nil
}

func (s *Server) execStopChild(ctx context.Context, d directive.Directive, origin signal.Signal) (directive.Result, error) {
	sc := d.(directive.StopChild)
	if err := s.stopChild(ctx, sc.Tag, sc.Reason); err != nil {
		return directive.ErrorWith(err.Error()), nil
	}
	return directive.OK(), nil
}

// execSchedule wraps Message in a one-shot timer; when it fires, the
// message is delivered to self as a fresh signal (spec.md §4.5
// "Schedule"). The timer itself runs via the instance Scheduler, off the
// server's single goroutine, so this executor returns Async immediately.
func (s *Server) execSchedule(ctx context.Context, d directive.Directive, origin signal.Signal) (directive.Result, error) {
	sched := d.(directive.Schedule)
	if s.scheduler == nil {
		return directive.ErrorWith("no scheduler configured"), nil
	}
	sig, err := toSelfSignal(s.id, SignalScheduled, sched.Message)
	if err != nil {
		return directive.ErrorWith(err.Error()), nil
	}
	s.scheduler.Schedule(time.Duration(sched.DelayMS)*time.Millisecond, func() {
		_ = s.Deliver(context.Background(), sig)
	})
	return directive.Async(), nil
}

// execCron registers a recurring delivery keyed by JobID (spec.md §4.5
// "Cron").
func (s *Server) execCron(ctx context.Context, d directive.Directive, origin signal.Signal) (directive.Result, error) {
	cron := d.(directive.Cron)
	if s.scheduler == nil {
		return directive.ErrorWith("no scheduler configured"), nil
	}
	sig, err := toSelfSignal(s.id, SignalCronFired, cron.Message)
	if err != nil {
		return directive.ErrorWith(err.Error()), nil
	}
	if err := s.scheduler.Cron(cron.CronExpr, cron.JobID, func() {
		_ = s.Deliver(context.Background(), sig)
	}); err != nil {
		return directive.ErrorWith(err.Error()), nil
	}
	s.cronJobs[cron.JobID] = struct{}{}
	return directive.OK(), nil
}

func (s *Server) execCronCancel(ctx context.Context, d directive.Directive, origin signal.Signal) (directive.Result, error) {
	cc := d.(directive.CronCancel)
	if s.scheduler == nil {
		return directive.OK(), nil
	}
	if err := s.scheduler.CronCancel(cc.JobID); err != nil {
		return directive.ErrorWith(err.Error()), nil
	}
	delete(s.cronJobs, cc.JobID)
	return directive.OK(), nil
}

// execStop halts the drain loop after this step and terminates the
// server with Reason (spec.md §4.5 "Stop").
func (s *Server) execStop(ctx context.Context, d directive.Directive, origin signal.Signal) (directive.Result, error) {
	stop := d.(directive.Stop)
	return directive.StopWith(stop.Reason), nil
}

func toSelfSignal(serverID, typ string, message any) (signal.Signal, error) {
	if sig, ok := message.(signal.Signal); ok {
		return sig, nil
	}
	return signal.New("", "jido://server/"+serverID, typ, signal.WithData(message))
}
