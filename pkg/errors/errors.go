package errors

import "fmt"

// ErrInvalidInput is returned when a caller passes a missing or malformed
// identifier or quantity. Rejected before any I/O.
type ErrInvalidInput struct {
	Message string
}

func (e *ErrInvalidInput) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "invalid input"
}

// ErrValidation is returned when a submitted form is incomplete.
type ErrValidation struct {
	Fields map[string]string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// ErrPreconditionFailed is returned when checkout is attempted without an
// authenticated identity or with an empty cart.
type ErrPreconditionFailed struct {
	Reason string
}

func (e *ErrPreconditionFailed) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "precondition failed"
}

// ErrPaymentSetup is returned when the charge authorization request fails.
// The cart is untouched and the caller may retry.
type ErrPaymentSetup struct {
	Cause error
}

func (e *ErrPaymentSetup) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("payment setup failed: %v", e.Cause)
	}
	return "payment setup failed"
}

func (e *ErrPaymentSetup) Unwrap() error {
	return e.Cause
}
