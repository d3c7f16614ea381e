package agent

import (
	"errors"
	"fmt"
)

// Sentinel errors matching the taxonomy in spec §6.2/§7. Wrap with
// fmt.Errorf("...: %w", ErrX) to attach details; callers unwrap with
// errors.Is.
var (
	ErrSchema           = errors.New("schema_error")
	ErrActionNotAllowed = errors.New("action_not_allowed")
	ErrStrategy         = errors.New("strategy_error")
	ErrInvalidInput     = errors.New("invalid_input")
)

var errPathEmpty = errors.New("agent: path must not be empty")

func errPathNotMap(seg string) error {
	return fmt.Errorf("agent: path segment %q is not a nested map", seg)
}
