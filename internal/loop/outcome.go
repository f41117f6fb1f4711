package loop

import (
	"errors"
	"fmt"
)

// ErrNotVerified is the failure of an action that was not verified because
// the action itself failed.
var ErrNotVerified = errors.New("action not verified")

// Outcome carries either a value or the reason there is none.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Ok wraps a value.
func Ok[T any](v T) Outcome[T] { return Outcome[T]{Value: v} }

// Fail wraps a failure.
func Fail[T any](err error) Outcome[T] { return Outcome[T]{Err: err} }

// OK reports whether the outcome holds a value.
func (o Outcome[T]) OK() bool { return o.Err == nil }

// Get returns the value and failure.
func (o Outcome[T]) Get() (T, error) { return o.Value, o.Err }

// Optional collapses the outcome, returning nil on failure.
func (o Outcome[T]) Optional() *T {
	if o.Err != nil {
		return nil
	}
	v := o.Value
	return &v
}

// GatherInfraError is a fault in context retrieval or caching.
type GatherInfraError struct {
	Cause error
	// Panic is the recovered value when the fault was a panic.
	Panic any
}

func (e *GatherInfraError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("gather infrastructure fault: panic: %v", e.Panic)
	}
	return fmt.Sprintf("gather infrastructure fault: %v", e.Cause)
}

func (e *GatherInfraError) Unwrap() error { return e.Cause }

// VerificationInfraError is a fault inside verification that is not a
// failing check.
type VerificationInfraError struct {
	Tool  string
	Cause error
	Panic any
}

func (e *VerificationInfraError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("verification infrastructure fault for %s: panic: %v", e.Tool, e.Panic)
	}
	return fmt.Sprintf("verification infrastructure fault for %s: %v", e.Tool, e.Cause)
}

func (e *VerificationInfraError) Unwrap() error { return e.Cause }
