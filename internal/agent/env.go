package agent

import (
	"time"

	"github.com/antigravity-dev/jido/internal/signal"
)

// Env is the pseudo-environment injected into strategies and actions so
// `cmd` stays deterministic under test (spec §4.1, Testable Property 1):
// wall-clock reads and ID generation are delegated here rather than read
// directly from the runtime.
type Env interface {
	Now() time.Time
	NewID() string
}

// RealEnv is the production Env, backed by the real clock and UUIDv7 IDs.
type RealEnv struct{}

func (RealEnv) Now() time.Time { return time.Now().UTC() }
func (RealEnv) NewID() string  { return signal.NewID() }

// FixedEnv is a deterministic Env for tests: a fixed clock and a
// monotonically incrementing counter-based ID generator.
type FixedEnv struct {
	Clock   time.Time
	counter int
	prefix  string
}

// NewFixedEnv returns a FixedEnv whose clock is frozen at clock and whose
// generated IDs are "<prefix>-1", "<prefix>-2", ...
func NewFixedEnv(clock time.Time, prefix string) *FixedEnv {
	return &FixedEnv{Clock: clock, prefix: prefix}
}

func (e *FixedEnv) Now() time.Time { return e.Clock }

func (e *FixedEnv) NewID() string {
	e.counter++
	if e.prefix == "" {
		e.prefix = "fixed"
	}
	return fmtID(e.prefix, e.counter)
}

func fmtID(prefix string, n int) string {
	const digits = "0123456789"
	if n < 10 {
		return prefix + "-" + string(digits[n])
	}
	// Rare in tests; fall back to a simple decimal conversion.
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return prefix + "-" + string(buf)
}
