// Package dispatch implements the spec's §4.7 dispatch adapter table: the
// small set of descriptor kinds an Emit directive (or a signal's
// dispatch_hint) can name, and the delivery implementation behind each.
//
// internal/signal defines the narrow Descriptor interface (Kind() string)
// so it never needs to import this package; every concrete descriptor here
// satisfies it and additionally implements Sender, letting Dispatch stay a
// single generic entry point regardless of kind.
package dispatch

import (
	"context"
	"fmt"

	"github.com/antigravity-dev/jido/internal/signal"
)

// Sender is the contract every dispatch descriptor implements: deliver the
// signal, or report an error. Dispatch failures are reported but must never
// panic (spec.md §4.7: "Failures are reported but never crash the caller").
type Sender interface {
	signal.Descriptor
	Send(ctx context.Context, sig signal.Signal) error
}

// Dispatch delivers sig via desc. It never panics: adapter-level failures
// come back as a plain error for the caller (server drain loop) to fold
// into a dispatch_error signal.
func Dispatch(ctx context.Context, desc signal.Descriptor, sig signal.Signal) (err error) {
	if desc == nil {
		return fmt.Errorf("dispatch: nil descriptor")
	}
	sender, ok := desc.(Sender)
	if !ok {
		return fmt.Errorf("dispatch: descriptor kind %q does not implement Sender", desc.Kind())
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: kind %q panicked: %v", desc.Kind(), r)
		}
	}()
	return sender.Send(ctx, sig)
}

// Mailbox is the narrow delivery contract a Pid descriptor sends into.
// internal/server's process mailbox satisfies this; internal/dispatch
// never imports internal/server (cycle avoidance, same pattern as
// agent.Strategy/agent.Plugin).
type Mailbox interface {
	Deliver(ctx context.Context, sig signal.Signal) error
}

// Registry is the narrow name-lookup contract a Named descriptor resolves
// through. internal/instance's Registry satisfies this.
type Registry interface {
	Resolve(name string) (Mailbox, bool)
}

// Pid dispatches directly to a known process mailbox (spec.md §4.7 "direct
// process message").
type Pid struct {
	Target Mailbox
}

func (Pid) Kind() string { return "pid" }

func (p Pid) Send(ctx context.Context, sig signal.Signal) error {
	if p.Target == nil {
		return fmt.Errorf("dispatch: pid: nil target")
	}
	return p.Target.Deliver(ctx, sig)
}

// Named resolves a process by name in an instance registry, then delivers
// as Pid (spec.md §4.7 "lookup by name in the instance registry, then
// deliver as pid").
type Named struct {
	Name     string
	Registry Registry
}

func (Named) Kind() string { return "named" }

func (n Named) Send(ctx context.Context, sig signal.Signal) error {
	if n.Registry == nil {
		return fmt.Errorf("dispatch: named(%s): no registry configured", n.Name)
	}
	mbox, ok := n.Registry.Resolve(n.Name)
	if !ok {
		return fmt.Errorf("dispatch: named(%s): not registered", n.Name)
	}
	return Pid{Target: mbox}.Send(ctx, sig)
}

// Noop discards the signal. Used for tests and explicit "don't dispatch"
// configuration.
type Noop struct{}

func (Noop) Kind() string                                    { return "noop" }
func (Noop) Send(ctx context.Context, sig signal.Signal) error { return nil }
