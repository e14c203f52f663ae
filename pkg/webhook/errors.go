package webhook

import (
	"errors"
	"fmt"

	"github.com/harun/lineapi/pkg/event"
)

var (
	// ErrSignature is matched by every signature verification failure
	ErrSignature = errors.New("signature verification failed")

	// ErrHandlerPanic is wrapped when a handler panics instead of returning an error
	ErrHandlerPanic = errors.New("handler panicked")
)

// Reasons reported by SignatureVerificationError
const (
	ReasonMissingSignature = "missing signature"
	ReasonMissingSecret    = "missing secret"
	ReasonMismatch         = "mismatch"
)

// SignatureVerificationError is returned when a delivery's signature is
// absent or does not match the body.
type SignatureVerificationError struct {
	Reason string
}

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("signature verification failed: %s", e.Reason)
}

func (e *SignatureVerificationError) Unwrap() error {
	return ErrSignature
}

// PayloadValidationError is returned when the delivery body is not a
// structurally valid envelope. Field names the offending JSON path.
type PayloadValidationError struct {
	Field string
	Err   error
}

func (e *PayloadValidationError) Error() string {
	return fmt.Sprintf("payload validation failed at %s: %v", e.Field, e.Err)
}

func (e *PayloadValidationError) Unwrap() error {
	return e.Err
}

func newPayloadValidationError(err error) *PayloadValidationError {
	var verr *event.ValidationError
	if errors.As(err, &verr) {
		return &PayloadValidationError{Field: verr.Field, Err: err}
	}
	return &PayloadValidationError{Field: "(root)", Err: err}
}

// HandlerExecutionError wraps the failure of one handler for one event.
// Index is the handler's position in registration order.
type HandlerExecutionError struct {
	EventID string
	Kind    event.Kind
	Index   int
	Err     error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("handler %d for %s event %s failed: %v", e.Index, e.Kind, e.EventID, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error {
	return e.Err
}

// UnknownEventKindError describes an event whose type is not recognized.
// Such events are skipped, never dispatched.
type UnknownEventKindError struct {
	EventID string
	Kind    event.Kind
}

func (e *UnknownEventKindError) Error() string {
	return fmt.Sprintf("unknown event kind %q (event %s)", e.Kind, e.EventID)
}
