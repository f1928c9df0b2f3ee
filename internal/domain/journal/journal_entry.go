// Package journal implements double-entry bookkeeping: balanced entries,
// additive reversal and open-item clearing.
package journal

import (
	"strings"
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeJournalEntry is the aggregate type of journal events
const AggregateTypeJournalEntry = "JournalEntry"

// LineInput describes one line of a new entry
type LineInput struct {
	AccountID    uuid.UUID
	Side         Side
	Amount       decimal.Decimal
	CostCenter   *string
	ProfitCenter *string
	PartnerID    *uuid.UUID
	Memo         string
}

// JournalEntryLine is one debit or credit of an entry. After posting only
// the clearing fields may change.
type JournalEntryLine struct {
	ID           uuid.UUID
	EntryID      uuid.UUID
	LineNo       int
	AccountID    uuid.UUID
	Side         Side
	Amount       decimal.Decimal
	CostCenter   *string
	ProfitCenter *string
	PartnerID    *uuid.UUID
	Memo         string
	ClearingID   *uuid.UUID
	ClearedAt    *time.Time
}

// SignedAmount is positive for debits and negative for credits
func (l *JournalEntryLine) SignedAmount() decimal.Decimal {
	if l.Side == Credit {
		return l.Amount.Neg()
	}
	return l.Amount
}

// IsOpen reports whether the line is not yet cleared
func (l *JournalEntryLine) IsOpen() bool {
	return l.ClearingID == nil
}

// JournalEntry is the aggregate root of a balanced set of lines
type JournalEntry struct {
	shared.BaseAggregateRoot
	EntryType         EntryType
	Status            EntryStatus
	PostingDate       time.Time
	DocumentDate      time.Time
	Description       string
	Reference         string
	IsReversal        bool
	ReversedEntryID   *uuid.UUID // set on a reversal, points at the original
	ReversedByEntryID *uuid.UUID // set on a cancelled original, points at its reversal
	SourceDocumentID  *uuid.UUID
	PostedAt          *time.Time
	Lines             []JournalEntryLine
}

// EntryHeader carries the descriptive fields of a new entry
type EntryHeader struct {
	EntryType        EntryType
	PostingDate      time.Time
	DocumentDate     time.Time
	Description      string
	Reference        string
	SourceDocumentID *uuid.UUID
}

// NewJournalEntry builds a draft entry. Amounts are rounded to the currency
// unit and the entry must balance exactly; nothing is persisted here.
func NewJournalEntry(header EntryHeader, inputs []LineInput) (*JournalEntry, error) {
	if len(inputs) < 2 {
		return nil, shared.Errorf(shared.ErrInvalidInput, "a journal entry needs at least two lines")
	}
	if header.PostingDate.IsZero() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "posting date is required")
	}
	if header.DocumentDate.IsZero() {
		header.DocumentDate = header.PostingDate
	}
	if header.EntryType == "" {
		header.EntryType = EntryGeneral
	}

	e := &JournalEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		EntryType:         header.EntryType,
		Status:            StatusDraft,
		PostingDate:       header.PostingDate,
		DocumentDate:      header.DocumentDate,
		Description:       strings.TrimSpace(header.Description),
		Reference:         strings.TrimSpace(header.Reference),
		SourceDocumentID:  header.SourceDocumentID,
		Lines:             make([]JournalEntryLine, 0, len(inputs)),
	}

	for i, in := range inputs {
		if in.AccountID == uuid.Nil {
			return nil, shared.Errorf(shared.ErrInvalidInput, "line %d: account is required", i+1)
		}
		if !in.Side.IsValid() {
			return nil, shared.Errorf(shared.ErrInvalidInput, "line %d: invalid side %q", i+1, in.Side)
		}
		amount := valueobject.RoundMoney(in.Amount)
		if !amount.IsPositive() {
			return nil, shared.Errorf(shared.ErrInvalidInput, "line %d: amount must be positive, got %s", i+1, in.Amount)
		}
		e.Lines = append(e.Lines, JournalEntryLine{
			ID:           uuid.New(),
			EntryID:      e.ID,
			LineNo:       i + 1,
			AccountID:    in.AccountID,
			Side:         in.Side,
			Amount:       amount,
			CostCenter:   in.CostCenter,
			ProfitCenter: in.ProfitCenter,
			PartnerID:    in.PartnerID,
			Memo:         in.Memo,
		})
	}

	if err := e.CheckBalanced(); err != nil {
		return nil, err
	}
	return e, nil
}

// Totals returns the sums of debit and credit lines
func (e *JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for i := range e.Lines {
		if e.Lines[i].Side == Debit {
			debit = debit.Add(e.Lines[i].Amount)
		} else {
			credit = credit.Add(e.Lines[i].Amount)
		}
	}
	return debit, credit
}

// CheckBalanced fails with ErrUnbalancedEntry unless debits equal credits
func (e *JournalEntry) CheckBalanced() error {
	debit, credit := e.Totals()
	if !debit.Equal(credit) {
		return shared.Errorf(shared.ErrUnbalancedEntry,
			"debits %s do not equal credits %s (difference %s)", debit.StringFixed(2), credit.StringFixed(2), debit.Sub(credit).StringFixed(2))
	}
	return nil
}

// Post moves a draft to Posted. Posted entries are immutable.
func (e *JournalEntry) Post() error {
	if e.Status != StatusDraft {
		return shared.Errorf(shared.ErrInvalidState, "entry %s is %s, only drafts can be posted", e.ID, e.Status)
	}
	if err := e.CheckBalanced(); err != nil {
		return err
	}
	now := time.Now()
	e.Status = StatusPosted
	e.PostedAt = &now
	e.IncrementVersion()
	e.AddDomainEvent(NewEntryPostedEvent(e))
	return nil
}

// Reverse builds a posted entry with every side swapped and marks this entry
// cancelled. The original lines are not touched.
func (e *JournalEntry) Reverse(reason string, postingDate time.Time) (*JournalEntry, error) {
	if e.Status != StatusPosted {
		return nil, shared.Errorf(shared.ErrInvalidState, "entry %s is %s, only posted entries can be reversed", e.ID, e.Status)
	}
	if e.IsReversal {
		return nil, shared.Errorf(shared.ErrInvalidState, "entry %s is itself a reversal", e.ID)
	}
	for _, l := range e.Lines {
		if !l.IsOpen() {
			return nil, shared.Errorf(shared.ErrInvalidState, "entry %s has cleared line %d", e.ID, l.LineNo)
		}
	}
	if postingDate.IsZero() {
		postingDate = e.PostingDate
	}

	inputs := make([]LineInput, 0, len(e.Lines))
	for _, l := range e.Lines {
		inputs = append(inputs, LineInput{
			AccountID:    l.AccountID,
			Side:         l.Side.Opposite(),
			Amount:       l.Amount,
			CostCenter:   l.CostCenter,
			ProfitCenter: l.ProfitCenter,
			PartnerID:    l.PartnerID,
			Memo:         l.Memo,
		})
	}
	description := "Reversal of " + e.ID.String()
	if r := strings.TrimSpace(reason); r != "" {
		description += ": " + r
	}
	rev, err := NewJournalEntry(EntryHeader{
		EntryType:        EntryReversal,
		PostingDate:      postingDate,
		DocumentDate:     e.DocumentDate,
		Description:      description,
		Reference:        e.Reference,
		SourceDocumentID: e.SourceDocumentID,
	}, inputs)
	if err != nil {
		return nil, err
	}
	rev.IsReversal = true
	rev.ReversedEntryID = &e.ID
	if err := rev.Post(); err != nil {
		return nil, err
	}

	e.Status = StatusCancelled
	e.ReversedByEntryID = &rev.ID
	e.IncrementVersion()
	e.AddDomainEvent(NewEntryReversedEvent(e, rev, reason))
	return rev, nil
}

// Line returns the line with the given ID
func (e *JournalEntry) Line(id uuid.UUID) (*JournalEntryLine, bool) {
	for i := range e.Lines {
		if e.Lines[i].ID == id {
			return &e.Lines[i], true
		}
	}
	return nil, false
}

// NetByAccount sums signed amounts per account
func (e *JournalEntry) NetByAccount() map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal)
	for i := range e.Lines {
		out[e.Lines[i].AccountID] = out[e.Lines[i].AccountID].Add(e.Lines[i].SignedAmount())
	}
	return out
}
