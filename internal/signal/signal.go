// Package signal defines the CloudEvents-shaped message that crosses every
// subsystem boundary in Jido: the only type an AgentServer receives, routes,
// and dispatches.
package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SpecVersion is the fixed CloudEvents version this runtime speaks.
const SpecVersion = "1.0.2"

// reserved lists the core attribute names a signal's extensions must not
// shadow (spec: "extensions keys must not collide with core attribute
// names").
var reserved = map[string]struct{}{
	"id": {}, "source": {}, "type": {}, "specversion": {},
	"subject": {}, "time": {}, "datacontenttype": {}, "data": {},
}

// Descriptor is a dispatch target description. Signal only needs to carry
// one around (as an optional per-signal override); concrete kinds
// (pid/named/pubsub/http/webhook/logger/console/noop) live in
// internal/dispatch, which implements this interface — keeping this
// package free of any dispatch-transport dependency.
type Descriptor interface {
	Kind() string
}

// Signal is an immutable CloudEvents-shaped message.
type Signal struct {
	ID              string
	Source          string
	Type            string
	SpecVersion     string
	Subject         string
	Time            time.Time
	DataContentType string
	Data            any
	Extensions      map[string]any

	// DispatchHint, if set, overrides the server's default dispatch when
	// this signal is emitted via an Emit directive that doesn't specify
	// its own dispatch.
	DispatchHint Descriptor
}

// NewID returns a new time-sortable unique signal ID (UUIDv7).
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the OS entropy source is broken; fall back
		// to a random v4 rather than panic inside a hot path.
		return uuid.NewString()
	}
	return id.String()
}

// Option mutates a Signal during construction.
type Option func(*Signal)

// WithSubject sets the optional subject attribute.
func WithSubject(subject string) Option {
	return func(s *Signal) { s.Subject = subject }
}

// WithTime sets the optional time attribute. New uses time.Now() if omitted.
func WithTime(t time.Time) Option {
	return func(s *Signal) { s.Time = t }
}

// WithDataContentType sets the optional MIME type of Data.
func WithDataContentType(ct string) Option {
	return func(s *Signal) { s.DataContentType = ct }
}

// WithData sets the structured payload.
func WithData(data any) Option {
	return func(s *Signal) { s.Data = data }
}

// WithExtension adds a single named extension attribute.
func WithExtension(name string, value any) Option {
	return func(s *Signal) {
		if s.Extensions == nil {
			s.Extensions = make(map[string]any)
		}
		s.Extensions[name] = value
	}
}

// WithDispatchHint overrides the server's default dispatch for this signal.
func WithDispatchHint(d Descriptor) Option {
	return func(s *Signal) { s.DispatchHint = d }
}

// New constructs and validates a Signal. id, source, and typ are required
// non-empty attributes; if id is empty, NewID() is used.
func New(id, source, typ string, opts ...Option) (Signal, error) {
	if id == "" {
		id = NewID()
	}
	s := Signal{
		ID:          id,
		Source:      source,
		Type:        typ,
		SpecVersion: SpecVersion,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.Time.IsZero() {
		s.Time = time.Now().UTC()
	}
	if err := s.Validate(); err != nil {
		return Signal{}, err
	}
	return s, nil
}

// Validate checks the required attributes and type-pattern shape (spec §3.1).
func (s Signal) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("signal: id is required")
	}
	if strings.TrimSpace(s.Source) == "" {
		return fmt.Errorf("signal: source is required")
	}
	if s.SpecVersion != SpecVersion {
		return fmt.Errorf("signal: specversion must be %q, got %q", SpecVersion, s.SpecVersion)
	}
	if _, err := Segments(s.Type); err != nil {
		return fmt.Errorf("signal: invalid type: %w", err)
	}
	for name := range s.Extensions {
		if _, ok := reserved[strings.ToLower(name)]; ok {
			return fmt.Errorf("signal: extension %q collides with a core attribute name", name)
		}
	}
	return nil
}

// Segments splits a dotted signal type into its non-empty segments,
// rejecting empty segments and the `*` wildcard character (which is only
// meaningful in router patterns, never in a concrete signal type).
func Segments(typ string) ([]string, error) {
	if strings.TrimSpace(typ) == "" {
		return nil, fmt.Errorf("type is required")
	}
	parts := strings.Split(typ, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("type %q has an empty segment", typ)
		}
		if strings.Contains(p, "*") {
			return nil, fmt.Errorf("type %q segment %q must not contain '*'", typ, p)
		}
	}
	return parts, nil
}
