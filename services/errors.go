package services

import (
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("invoice not found")
	ErrTransaction = errors.New("transaction failed")
	ErrRender      = errors.New("document rendering failed")
	ErrSend        = errors.New("delivery failed")
)

// PartialFailureError reports a failure that happened after the invoice was
// persisted. The invoice exists; only the follow-up step has to be retried.
type PartialFailureError struct {
	InvoiceID uint
	Step      string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("invoice %d saved, %s failed: %v", e.InvoiceID, e.Step, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
