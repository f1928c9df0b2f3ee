package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{shared.ErrInsufficientStock.Code, http.StatusUnprocessableEntity},
		{shared.ErrNoTaxRuleFound.Code, http.StatusUnprocessableEntity},
		{shared.ErrAmbiguousTaxRule.Code, http.StatusUnprocessableEntity},
		{shared.ErrUnbalancedEntry.Code, http.StatusUnprocessableEntity},
		{shared.ErrInvalidState.Code, http.StatusUnprocessableEntity},
		{shared.ErrClearingMismatch.Code, http.StatusUnprocessableEntity},
		{shared.ErrBatchNotAvailable.Code, http.StatusUnprocessableEntity},
		{shared.ErrAccountNotPostable.Code, http.StatusUnprocessableEntity},
		{shared.ErrAccountNotFound.Code, http.StatusNotFound},
		{shared.ErrNotFound.Code, http.StatusNotFound},
		{shared.ErrInvalidInput.Code, http.StatusBadRequest},
		{shared.ErrConcurrencyConflict.Code, http.StatusConflict},
		{shared.ErrLockTimeout.Code, http.StatusConflict},
		{shared.ErrAlreadyExists.Code, http.StatusConflict},
		{shared.ErrLedgerDrift.Code, http.StatusInternalServerError},
		{shared.ErrPostingTimeout.Code, http.StatusGatewayTimeout},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID("INSUFFICIENT_STOCK", "need 100, have 40", "req-1")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INSUFFICIENT_STOCK", resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
	assert.Nil(t, resp.Data)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{{Field: "quantity", Message: "This field is required"}}
	resp := NewValidationErrorResponse("Request validation failed", "req-2", details)

	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, details, resp.Error.Details)
}

func TestErrorResponse_JSONShape(t *testing.T) {
	body, err := json.Marshal(NewErrorResponse("NOT_FOUND", "document not found"))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	assert.Equal(t, false, m["success"])
	assert.NotContains(t, m, "data")
	e := m["error"].(map[string]any)
	assert.Equal(t, "NOT_FOUND", e["code"])
	assert.Equal(t, "document not found", e["message"])
	assert.NotContains(t, e, "request_id")
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	resp := NewSuccessResponseWithMeta([]int{1, 2}, 41, 2, 20)

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Equal(t, 2, resp.Meta.Page)

	assert.Zero(t, NewSuccessResponseWithMeta(nil, 5, 1, 0).Meta.TotalPages)
}

func TestPageRequest_Normalize(t *testing.T) {
	p := PageRequest{}.Normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 20, p.PageSize)

	p = PageRequest{Page: 3, PageSize: 50}.Normalize()
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.PageSize)
}
