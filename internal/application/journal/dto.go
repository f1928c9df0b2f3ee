package journal

import (
	"time"

	"github.com/erp/posting/internal/domain/journal"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineRequest is one line of a manual entry
type LineRequest struct {
	AccountID    uuid.UUID       `json:"account_id" binding:"required"`
	Side         string          `json:"side" binding:"required,oneof=DEBIT CREDIT"`
	Amount       decimal.Decimal `json:"amount"`
	CostCenter   *string         `json:"cost_center"`
	ProfitCenter *string         `json:"profit_center"`
	PartnerID    *uuid.UUID      `json:"partner_id"`
	Memo         string          `json:"memo"`
}

// CreateEntryRequest represents a request to create a draft entry
type CreateEntryRequest struct {
	EntryType    string        `json:"entry_type"`
	PostingDate  time.Time     `json:"posting_date" binding:"required"`
	DocumentDate *time.Time    `json:"document_date"`
	Description  string        `json:"description" binding:"max=500"`
	Reference    string        `json:"reference" binding:"max=100"`
	Lines        []LineRequest `json:"lines" binding:"required,min=2,dive"`
}

// Header returns the entry header of the request
func (r CreateEntryRequest) Header() journal.EntryHeader {
	h := journal.EntryHeader{
		EntryType:   journal.EntryType(r.EntryType),
		PostingDate: r.PostingDate,
		Description: r.Description,
		Reference:   r.Reference,
	}
	if r.DocumentDate != nil {
		h.DocumentDate = *r.DocumentDate
	}
	return h
}

// LineInputs converts the request lines
func (r CreateEntryRequest) LineInputs() []journal.LineInput {
	out := make([]journal.LineInput, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = journal.LineInput{
			AccountID:    l.AccountID,
			Side:         journal.Side(l.Side),
			Amount:       l.Amount,
			CostCenter:   l.CostCenter,
			ProfitCenter: l.ProfitCenter,
			PartnerID:    l.PartnerID,
			Memo:         l.Memo,
		}
	}
	return out
}

// ReverseRequest represents a request to reverse a posted entry
type ReverseRequest struct {
	Reason      string     `json:"reason" binding:"max=500"`
	PostingDate *time.Time `json:"posting_date"`
}

// ClearRequest represents a request to clear open lines against each other
type ClearRequest struct {
	LineIDs   []uuid.UUID `json:"line_ids" binding:"required,min=2"`
	Reference string      `json:"reference" binding:"required,max=100"`
}

// LineResponse represents an entry line in API responses
type LineResponse struct {
	ID           uuid.UUID       `json:"id"`
	LineNo       int             `json:"line_no"`
	AccountID    uuid.UUID       `json:"account_id"`
	Side         string          `json:"side"`
	Amount       decimal.Decimal `json:"amount"`
	CostCenter   *string         `json:"cost_center,omitempty"`
	ProfitCenter *string         `json:"profit_center,omitempty"`
	PartnerID    *uuid.UUID      `json:"partner_id,omitempty"`
	Memo         string          `json:"memo,omitempty"`
	ClearingID   *uuid.UUID      `json:"clearing_id,omitempty"`
	ClearedAt    *time.Time      `json:"cleared_at,omitempty"`
}

// EntryResponse represents a journal entry in API responses
type EntryResponse struct {
	ID                uuid.UUID       `json:"id"`
	EntryType         string          `json:"entry_type"`
	Status            string          `json:"status"`
	PostingDate       time.Time       `json:"posting_date"`
	DocumentDate      time.Time       `json:"document_date"`
	Description       string          `json:"description"`
	Reference         string          `json:"reference"`
	IsReversal        bool            `json:"is_reversal"`
	ReversedEntryID   *uuid.UUID      `json:"reversed_entry_id,omitempty"`
	ReversedByEntryID *uuid.UUID      `json:"reversed_by_entry_id,omitempty"`
	SourceDocumentID  *uuid.UUID      `json:"source_document_id,omitempty"`
	PostedAt          *time.Time      `json:"posted_at,omitempty"`
	TotalDebit        decimal.Decimal `json:"total_debit"`
	TotalCredit       decimal.Decimal `json:"total_credit"`
	Version           int             `json:"version"`
	Lines             []LineResponse  `json:"lines"`
}

// ToLineResponse converts an entry line
func ToLineResponse(l journal.JournalEntryLine) LineResponse {
	return LineResponse{
		ID:           l.ID,
		LineNo:       l.LineNo,
		AccountID:    l.AccountID,
		Side:         string(l.Side),
		Amount:       l.Amount,
		CostCenter:   l.CostCenter,
		ProfitCenter: l.ProfitCenter,
		PartnerID:    l.PartnerID,
		Memo:         l.Memo,
		ClearingID:   l.ClearingID,
		ClearedAt:    l.ClearedAt,
	}
}

// ToEntryResponse converts an entry with its lines
func ToEntryResponse(e *journal.JournalEntry) *EntryResponse {
	debit, credit := e.Totals()
	resp := &EntryResponse{
		ID:                e.ID,
		EntryType:         string(e.EntryType),
		Status:            e.Status.String(),
		PostingDate:       e.PostingDate,
		DocumentDate:      e.DocumentDate,
		Description:       e.Description,
		Reference:         e.Reference,
		IsReversal:        e.IsReversal,
		ReversedEntryID:   e.ReversedEntryID,
		ReversedByEntryID: e.ReversedByEntryID,
		SourceDocumentID:  e.SourceDocumentID,
		PostedAt:          e.PostedAt,
		TotalDebit:        debit,
		TotalCredit:       credit,
		Version:           e.Version,
		Lines:             make([]LineResponse, len(e.Lines)),
	}
	for i, l := range e.Lines {
		resp.Lines[i] = ToLineResponse(l)
	}
	return resp
}

// ClearingResponse represents a clearing in API responses
type ClearingResponse struct {
	ID        uuid.UUID   `json:"id"`
	Reference string      `json:"reference"`
	AccountID uuid.UUID   `json:"account_id"`
	PartnerID uuid.UUID   `json:"partner_id"`
	ClearedAt time.Time   `json:"cleared_at"`
	LineIDs   []uuid.UUID `json:"line_ids"`
}

// ToClearingResponse converts a clearing
func ToClearingResponse(c *journal.Clearing) *ClearingResponse {
	return &ClearingResponse{
		ID:        c.ID,
		Reference: c.Reference,
		AccountID: c.AccountID,
		PartnerID: c.PartnerID,
		ClearedAt: c.ClearedAt,
		LineIDs:   c.LineIDs,
	}
}
