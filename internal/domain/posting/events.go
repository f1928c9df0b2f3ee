package posting

import (
	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type constants
const (
	EventTypeDocumentPosted    = "posting.document_posted"
	EventTypeDocumentCancelled = "posting.document_cancelled"
	EventTypeDocumentPaid      = "posting.document_paid"
)

// DocumentEvent is raised on every document transition. StockKeys lists
// the lock keys of the stock levels the transition touched.
type DocumentEvent struct {
	shared.BaseDomainEvent
	DocumentType   DocumentType `json:"document_type"`
	Status         string       `json:"status"`
	Reference      string       `json:"reference"`
	JournalEntryID *uuid.UUID   `json:"journal_entry_id,omitempty"`
	StockKeys      []string     `json:"stock_keys,omitempty"`
	Reason         string       `json:"reason,omitempty"`
}

func newDocumentEvent(eventType string, d *BusinessDocument, entryID *uuid.UUID, stockKeys []string) *DocumentEvent {
	return &DocumentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeDocument, d.ID),
		DocumentType:    d.Type,
		Status:          d.Status.String(),
		Reference:       d.Reference,
		JournalEntryID:  entryID,
		StockKeys:       stockKeys,
	}
}

// NewDocumentPostedEvent creates the event for a posted document
func NewDocumentPostedEvent(d *BusinessDocument, stockKeys []string) *DocumentEvent {
	return newDocumentEvent(EventTypeDocumentPosted, d, d.JournalEntryID, stockKeys)
}

// NewDocumentCancelledEvent creates the event for a cancelled document
func NewDocumentCancelledEvent(d *BusinessDocument, reason string, stockKeys []string) *DocumentEvent {
	e := newDocumentEvent(EventTypeDocumentCancelled, d, d.ReversalEntryID, stockKeys)
	e.Reason = reason
	return e
}

// NewDocumentPaidEvent creates the event for a settled invoice
func NewDocumentPaidEvent(d *BusinessDocument) *DocumentEvent {
	return newDocumentEvent(EventTypeDocumentPaid, d, d.PaymentEntryID, nil)
}
