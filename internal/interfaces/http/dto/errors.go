package dto

import (
	"net/http"

	"github.com/erp/posting/internal/domain/shared"
)

// Transport-level error codes. Domain codes are used as they come from
// shared.DomainError.
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeTooLarge     = "REQUEST_TOO_LARGE"
	ErrCodeUnavailable  = "SERVICE_UNAVAILABLE"
	ErrCodeRouteMissing = "ROUTE_NOT_FOUND"
	ErrCodeForbidden    = "FORBIDDEN"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:  http.StatusServiceUnavailable,
	ErrCodeRouteMissing: http.StatusNotFound,
	ErrCodeForbidden:    http.StatusForbidden,

	// lookups
	shared.ErrNotFound.Code:        http.StatusNotFound,
	shared.ErrAccountNotFound.Code: http.StatusNotFound,

	// input
	shared.ErrInvalidInput.Code: http.StatusBadRequest,

	// contention
	shared.ErrAlreadyExists.Code:       http.StatusConflict,
	shared.ErrConcurrencyConflict.Code: http.StatusConflict,
	shared.ErrLockTimeout.Code:         http.StatusConflict,

	// business rules
	shared.ErrInvalidState.Code:       http.StatusUnprocessableEntity,
	shared.ErrInsufficientStock.Code:  http.StatusUnprocessableEntity,
	shared.ErrNoTaxRuleFound.Code:     http.StatusUnprocessableEntity,
	shared.ErrAmbiguousTaxRule.Code:   http.StatusUnprocessableEntity,
	shared.ErrUnbalancedEntry.Code:    http.StatusUnprocessableEntity,
	shared.ErrClearingMismatch.Code:   http.StatusUnprocessableEntity,
	shared.ErrBatchNotAvailable.Code:  http.StatusUnprocessableEntity,
	shared.ErrAccountNotPostable.Code: http.StatusUnprocessableEntity,

	shared.ErrLedgerDrift.Code:    http.StatusInternalServerError,
	shared.ErrPostingTimeout.Code: http.StatusGatewayTimeout,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
