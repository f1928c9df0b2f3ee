package journal

import (
	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type constants
const (
	EventTypeEntryPosted   = "journal.entry_posted"
	EventTypeEntryReversed = "journal.entry_reversed"
)

// EntryPostedEvent is raised when an entry reaches Posted
type EntryPostedEvent struct {
	shared.BaseDomainEvent
	EntryType EntryType       `json:"entry_type"`
	Total     decimal.Decimal `json:"total"`
	Reference string          `json:"reference"`
}

// NewEntryPostedEvent creates a posted event
func NewEntryPostedEvent(e *JournalEntry) *EntryPostedEvent {
	debit, _ := e.Totals()
	return &EntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEntryPosted, AggregateTypeJournalEntry, e.ID),
		EntryType:       e.EntryType,
		Total:           debit,
		Reference:       e.Reference,
	}
}

// EntryReversedEvent is raised on the original entry of a reversal
type EntryReversedEvent struct {
	shared.BaseDomainEvent
	ReversalID uuid.UUID `json:"reversal_id"`
	Reason     string    `json:"reason"`
}

// NewEntryReversedEvent creates a reversed event
func NewEntryReversedEvent(original, reversal *JournalEntry, reason string) *EntryReversedEvent {
	return &EntryReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEntryReversed, AggregateTypeJournalEntry, original.ID),
		ReversalID:      reversal.ID,
		Reason:          reason,
	}
}
