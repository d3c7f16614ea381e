package directive

// Outcome is the executor's verdict for one directive, mirroring spec
// §4.5's `ok(state') | async(task, state') | stop(reason, state') |
// error(reason, state')` result shape.
type Outcome int

const (
	// Continue means the directive completed; the drain loop proceeds to
	// the next queued directive.
	Continue Outcome = iota
	// AsyncScheduled means a task was spawned under the instance
	// TaskSupervisor; its eventual result (a signal, or nothing) arrives
	// later via the owning agent's mailbox. The drain loop proceeds
	// immediately.
	AsyncScheduled
	// StopRequested means the drain loop should halt and the server
	// should terminate with Reason.
	StopRequested
	// Failed means the directive errored; the drain loop records it and
	// continues.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case AsyncScheduled:
		return "async"
	case StopRequested:
		return "stop"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// Result is what an ExecFunc returns.
type Result struct {
	Outcome Outcome
	Reason  string
}

// OK reports ordinary, synchronous completion.
func OK() Result { return Result{Outcome: Continue} }

// Async reports that work was handed off to the TaskSupervisor.
func Async() Result { return Result{Outcome: AsyncScheduled} }

// StopWith requests server termination after the current drain step.
func StopWith(reason string) Result { return Result{Outcome: StopRequested, Reason: reason} }

// ErrorWith records a non-fatal executor failure; the drain loop continues.
func ErrorWith(reason string) Result { return Result{Outcome: Failed, Reason: reason} }
