package sidetable

import (
	"errors"
	"fmt"
)

var (
	// ErrPolicyViolation is returned when a value cannot be stored under the
	// requested policy. It indicates misuse at the call site.
	ErrPolicyViolation = errors.New("sidetable: policy violation")

	// ErrNotInitialized is returned by strict reads when no entry exists.
	ErrNotInitialized = errors.New("sidetable: not initialized")

	// ErrTypeMismatch is returned by strict reads when the stored value has a
	// different type than the accessor expects.
	ErrTypeMismatch = errors.New("sidetable: type mismatch")
)

// PolicyError describes a rejected write.
type PolicyError struct {
	Policy Policy
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("sidetable: policy violation (%s): %s", e.Policy, e.Reason)
}

func (e *PolicyError) Unwrap() error { return ErrPolicyViolation }

// TypeMismatchError describes a stored value whose dynamic type does not
// match the requested one.
type TypeMismatchError struct {
	Want string
	Got  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("sidetable: type mismatch: want %s, got %s", e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

func policyError(p Policy, format string, args ...any) error {
	return &PolicyError{Policy: p, Reason: fmt.Sprintf(format, args...)}
}
