package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same code, so errors.Is matches a
// detailed error against its sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Errorf returns a copy of base with a formatted message and the same code.
func Errorf(base *DomainError, format string, args ...any) *DomainError {
	return &DomainError{
		Code:    base.Code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrLockTimeout         = NewDomainError("LOCK_TIMEOUT", "Could not acquire exclusive access in time")
	ErrPostingTimeout      = NewDomainError("POSTING_TIMEOUT", "Posting exceeded its deadline and was rolled back")
)

// Posting core errors
var (
	ErrInsufficientStock  = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrNoTaxRuleFound     = NewDomainError("NO_TAX_RULE_FOUND", "No tax rule matches the operation")
	ErrAmbiguousTaxRule   = NewDomainError("AMBIGUOUS_TAX_RULE", "More than one tax rule matches with equal priority")
	ErrUnbalancedEntry    = NewDomainError("UNBALANCED_ENTRY", "Journal entry debits and credits differ")
	ErrClearingMismatch   = NewDomainError("CLEARING_MISMATCH", "Cleared lines do not net to zero")
	ErrLedgerDrift        = NewDomainError("LEDGER_DRIFT", "Stock level disagrees with its movement ledger")
	ErrAccountNotFound    = NewDomainError("ACCOUNT_NOT_FOUND", "Account not found")
	ErrAccountNotPostable = NewDomainError("ACCOUNT_NOT_POSTABLE", "Account does not accept postings")
	ErrBatchNotAvailable  = NewDomainError("BATCH_NOT_AVAILABLE", "Batch is not available for this operation")
)

// IsRecoverable reports whether err is a business rejection that leaves the
// caller free to correct input and retry.
func IsRecoverable(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code != ErrLedgerDrift.Code
}
