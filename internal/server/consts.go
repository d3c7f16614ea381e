package server

// Well-known signal types this package emits to itself or to tracked
// children (spec.md §4.3 "Child lifecycle", §7 error taxonomy). Domain
// agent modules match against these in their own routers the same way
// they'd match any other signal type.
const (
	SignalChildStarted  = "jido.child.started"
	SignalChildExit     = "jido.child.exit"
	SignalOrphaned      = "jido.orphaned"
	SignalDispatchError = "jido.dispatch_error"
	SignalScheduled     = "jido.scheduled"
	SignalCronFired     = "jido.cron_fired"
)
