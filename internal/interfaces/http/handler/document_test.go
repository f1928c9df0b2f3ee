package handler_test

import (
	"net/http"
	"testing"
	"time"

	postingapp "github.com/erp/posting/internal/application/posting"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *server) salesInvoice(t *testing.T, qty, price string) postingapp.DocumentResponse {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/documents", map[string]any{
		"type":          "SALES_INVOICE",
		"partner_id":    s.partner,
		"source_state":  "SP",
		"dest_state":    "RJ",
		"warehouse_id":  s.warehouse,
		"affects_stock": true,
		"posting_date":  time.Now().UTC(),
		"reference":     "NF-1001",
		"lines": []map[string]any{
			{"material_id": s.material, "quantity": qty, "unit_price": price},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var doc postingapp.DocumentResponse
	decode(t, env, &doc)
	return doc
}

func TestDocument_PostIsBalancedAndIdempotent(t *testing.T) {
	s := newServer(t)
	s.receive(t, "10", "20")
	doc := s.salesInvoice(t, "2", "100")
	assert.Equal(t, "DRAFT", doc.Status)

	w, env := s.do(t, http.MethodPost, "/documents/"+doc.ID.String()+"/post", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res postingapp.PostingResult
	decode(t, env, &res)
	assert.Equal(t, "POSTED", res.Document.Status)
	require.NotNil(t, res.JournalEntry)
	assert.True(t, res.JournalEntry.TotalDebit.Equal(res.JournalEntry.TotalCredit))
	require.Len(t, res.Movements, 1)

	w, env = s.do(t, http.MethodPost, "/documents/"+doc.ID.String()+"/post", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var again postingapp.PostingResult
	decode(t, env, &again)
	assert.Equal(t, res.JournalEntry.ID, again.JournalEntry.ID)
}

func TestDocument_PostWithoutStockRollsBack(t *testing.T) {
	s := newServer(t)
	s.receive(t, "1", "20")
	doc := s.salesInvoice(t, "5", "100")

	w, env := s.do(t, http.MethodPost, "/documents/"+doc.ID.String()+"/post", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)

	w, env = s.do(t, http.MethodGet, "/documents/"+doc.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var current postingapp.DocumentResponse
	decode(t, env, &current)
	assert.Equal(t, "DRAFT", current.Status)
}

func TestDocument_CancelRequiresReason(t *testing.T) {
	s := newServer(t)
	s.receive(t, "10", "20")
	doc := s.salesInvoice(t, "1", "100")
	w, _ := s.do(t, http.MethodPost, "/documents/"+doc.ID.String()+"/post", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, http.MethodPost, "/documents/"+doc.ID.String()+"/cancel", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, env = s.do(t, http.MethodPost, "/documents/"+doc.ID.String()+"/cancel", map[string]any{"reason": "returned"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res postingapp.PostingResult
	decode(t, env, &res)
	assert.Equal(t, "CANCELLED", res.Document.Status)

	w, env = s.do(t, http.MethodPost, "/documents/"+doc.ID.String()+"/cancel", map[string]any{"reason": "twice"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)
}

func TestDocument_ListDeleteAndNotFound(t *testing.T) {
	s := newServer(t)
	first := s.salesInvoice(t, "1", "10")
	s.salesInvoice(t, "1", "20")

	w, env := s.do(t, http.MethodGet, "/documents?status=DRAFT&page_size=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(2), env.Meta.Total)
	assert.Equal(t, 2, env.Meta.TotalPages)
	var docs []postingapp.DocumentResponse
	decode(t, env, &docs)
	assert.Len(t, docs, 1)

	w, env = s.do(t, http.MethodGet, "/documents?sort_by=reference&sort_order=asc", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(2), env.Meta.Total)

	w, env = s.do(t, http.MethodGet, "/documents?sort_order=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, _ = s.do(t, http.MethodDelete, "/documents/"+first.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, env = s.do(t, http.MethodGet, "/documents/"+first.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	w, _ = s.do(t, http.MethodGet, "/documents/"+uuid.NewString()+"x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocument_PaymentSettlesInvoice(t *testing.T) {
	s := newServer(t)
	s.receive(t, "10", "20")
	doc := s.salesInvoice(t, "1", "100")
	w, _ := s.do(t, http.MethodPost, "/documents/"+doc.ID.String()+"/post", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, http.MethodPost, "/documents/"+doc.ID.String()+"/payments", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res postingapp.PostingResult
	decode(t, env, &res)
	assert.Equal(t, "PAID", res.Document.Status)
	assert.NotNil(t, res.ClearingID)
}
