package leads

import (
	"errors"
	"fmt"
)

var (
	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrInvalidLead is wrapped by every ValidationError
	ErrInvalidLead = errors.New("invalid lead")
)

// ValidationError reports which field stopped a lead from being finalized.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("leads: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidLead
}
