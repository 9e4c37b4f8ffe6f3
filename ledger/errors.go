package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrReportNotFound is returned when an issuance references a report id
	// that was never submitted.
	ErrReportNotFound = errors.New("verification report not found")

	// ErrCreditNotFound is returned when a transfer references a credit that
	// does not exist or is no longer active.
	ErrCreditNotFound = errors.New("credit not found or inactive")

	// ErrOwnershipMismatch is returned when the transfer source does not own
	// the credit.
	ErrOwnershipMismatch = errors.New("credit not owned by transfer source")

	// ErrInsufficientBalance is returned when the transfer amount exceeds the
	// credit's remaining balance.
	ErrInsufficientBalance = errors.New("transfer amount exceeds credit balance")
)

// ValidationError reports malformed or missing caller input. No state has
// changed when it is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
