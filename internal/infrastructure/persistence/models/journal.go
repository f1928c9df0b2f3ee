package models

import (
	"time"

	"github.com/erp/posting/internal/domain/journal"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalEntryModel is the persistence model for the JournalEntry aggregate root
type JournalEntryModel struct {
	AggregateModel
	EntryType         string     `gorm:"type:varchar(30);not null"`
	Status            string     `gorm:"type:varchar(20);not null;index"`
	PostingDate       time.Time  `gorm:"not null;index"`
	DocumentDate      time.Time  `gorm:"not null"`
	Description       string     `gorm:"type:varchar(500)"`
	Reference         string     `gorm:"type:varchar(100);index"`
	IsReversal        bool       `gorm:"not null;default:false"`
	ReversedEntryID   *uuid.UUID `gorm:"type:uuid"`
	ReversedByEntryID *uuid.UUID `gorm:"type:uuid"`
	SourceDocumentID  *uuid.UUID `gorm:"type:uuid;index"`
	PostedAt          *time.Time
	// Associations
	Lines []JournalLineModel `gorm:"foreignKey:EntryID;references:ID"`
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return "journal_entries"
}

// ToDomain converts the persistence model to a domain JournalEntry
func (m *JournalEntryModel) ToDomain() (*journal.JournalEntry, error) {
	status, err := journal.ParseEntryStatus(m.Status)
	if err != nil {
		return nil, err
	}
	e := &journal.JournalEntry{
		BaseAggregateRoot: m.ToAggregateRoot(),
		EntryType:         journal.EntryType(m.EntryType),
		Status:            status,
		PostingDate:       m.PostingDate,
		DocumentDate:      m.DocumentDate,
		Description:       m.Description,
		Reference:         m.Reference,
		IsReversal:        m.IsReversal,
		ReversedEntryID:   m.ReversedEntryID,
		ReversedByEntryID: m.ReversedByEntryID,
		SourceDocumentID:  m.SourceDocumentID,
		PostedAt:          m.PostedAt,
		Lines:             make([]journal.JournalEntryLine, len(m.Lines)),
	}
	for i := range m.Lines {
		e.Lines[i] = m.Lines[i].ToDomain()
	}
	return e, nil
}

// JournalEntryModelFromDomain creates a persistence model from a domain
// JournalEntry with its lines
func JournalEntryModelFromDomain(e *journal.JournalEntry) *JournalEntryModel {
	m := &JournalEntryModel{
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
		Lines:             make([]JournalLineModel, len(e.Lines)),
	}
	m.FromDomainAggregateRoot(e.BaseAggregateRoot)
	for i := range e.Lines {
		m.Lines[i] = *JournalLineModelFromDomain(&e.Lines[i])
	}
	return m
}

// JournalLineModel is the persistence model for a journal entry line
type JournalLineModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	EntryID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo       int             `gorm:"not null"`
	AccountID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_journal_line_open_item,priority:1"`
	Side         string          `gorm:"type:varchar(6);not null"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CostCenter   *string         `gorm:"type:varchar(30)"`
	ProfitCenter *string         `gorm:"type:varchar(30)"`
	PartnerID    *uuid.UUID      `gorm:"type:uuid;index:idx_journal_line_open_item,priority:2"`
	Memo         string          `gorm:"type:varchar(200)"`
	ClearingID   *uuid.UUID      `gorm:"type:uuid;index"`
	ClearedAt    *time.Time
}

// TableName returns the table name for GORM
func (JournalLineModel) TableName() string {
	return "journal_lines"
}

// ToDomain converts the persistence model to a domain line
func (m *JournalLineModel) ToDomain() journal.JournalEntryLine {
	return journal.JournalEntryLine{
		ID:           m.ID,
		EntryID:      m.EntryID,
		LineNo:       m.LineNo,
		AccountID:    m.AccountID,
		Side:         journal.Side(m.Side),
		Amount:       m.Amount,
		CostCenter:   m.CostCenter,
		ProfitCenter: m.ProfitCenter,
		PartnerID:    m.PartnerID,
		Memo:         m.Memo,
		ClearingID:   m.ClearingID,
		ClearedAt:    m.ClearedAt,
	}
}

// JournalLineModelFromDomain creates a persistence model from a domain line
func JournalLineModelFromDomain(l *journal.JournalEntryLine) *JournalLineModel {
	return &JournalLineModel{
		ID:           l.ID,
		EntryID:      l.EntryID,
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

// ClearingModel is the persistence model for a clearing
type ClearingModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Reference string    `gorm:"type:varchar(100);index"`
	AccountID uuid.UUID `gorm:"type:uuid;not null"`
	PartnerID uuid.UUID `gorm:"type:uuid;not null"`
	ClearedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ClearingModel) TableName() string {
	return "clearings"
}

// ClearingModelFromDomain creates a persistence model from a domain Clearing
func ClearingModelFromDomain(c *journal.Clearing) *ClearingModel {
	return &ClearingModel{
		ID:        c.ID,
		Reference: c.Reference,
		AccountID: c.AccountID,
		PartnerID: c.PartnerID,
		ClearedAt: c.ClearedAt,
	}
}
