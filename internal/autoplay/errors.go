package autoplay

import "fmt"

// InvariantViolation reports a state the scheduler must not continue from.
type InvariantViolation struct {
	Reason string
	Err    error
}

func (e *InvariantViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invariant violation: %s: %v", e.Reason, e.Err)
	}
	return "invariant violation: " + e.Reason
}

func (e *InvariantViolation) Unwrap() error { return e.Err }
