// FILE: internal/apperr/errors.go
package apperr

import "fmt"

// ValidationError marks malformed input: a bad command body or a webhook
// payload missing a required field. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError covers both "does not exist" and "does not belong to the
// caller" so that cross-user existence is never leaked.
type NotFoundError struct {
	Entity string
	Ref    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Ref)
}

func NotFound(entity, ref string) error {
	return &NotFoundError{Entity: entity, Ref: ref}
}

// PaymentProcessorError wraps a failed outbound Stripe call. Local state is
// untouched when this is returned; retries are the processor's or an
// operator's job, never ours.
type PaymentProcessorError struct {
	Op  string
	Err error
}

func (e *PaymentProcessorError) Error() string {
	return fmt.Sprintf("payment processor %s failed: %v", e.Op, e.Err)
}

func (e *PaymentProcessorError) Unwrap() error { return e.Err }

func Processor(op string, err error) error {
	return &PaymentProcessorError{Op: op, Err: err}
}

// InvalidStateError rejects a command against a subscription whose current
// status forbids it (e.g. reactivating a terminally canceled subscription).
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Message
}

func InvalidState(message string) error {
	return &InvalidStateError{Message: message}
}

// ReconciliationGap records that a remote call succeeded but the local write
// failed. It is internal only: callers log it at error severity with the
// external reference so an operator can reconcile, they do not surface it.
type ReconciliationGap struct {
	Op          string
	ExternalRef string
	Err         error
}

func (e *ReconciliationGap) Error() string {
	return fmt.Sprintf("reconciliation gap in %s (external ref %s): %v", e.Op, e.ExternalRef, e.Err)
}

func (e *ReconciliationGap) Unwrap() error { return e.Err }

func Gap(op, externalRef string, err error) error {
	return &ReconciliationGap{Op: op, ExternalRef: externalRef, Err: err}
}
