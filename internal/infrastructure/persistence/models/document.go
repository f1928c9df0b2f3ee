package models

import (
	"time"

	"github.com/erp/posting/internal/domain/posting"
	"github.com/erp/posting/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentModel is the persistence model for the BusinessDocument aggregate root
type DocumentModel struct {
	AggregateModel
	DocumentType    string     `gorm:"type:varchar(30);not null;index"`
	Status          string     `gorm:"type:varchar(20);not null;index"`
	PartnerID       *uuid.UUID `gorm:"type:uuid;index"`
	SourceState     string     `gorm:"type:char(2)"`
	DestState       string     `gorm:"type:char(2)"`
	OperationType   string     `gorm:"type:varchar(20)"`
	WarehouseID     uuid.UUID  `gorm:"type:uuid;not null"`
	DestWarehouseID *uuid.UUID `gorm:"type:uuid"`
	AffectsStock    bool       `gorm:"not null;default:false"`
	AllowBackorder  bool       `gorm:"not null;default:false"`
	CostCenter      *string    `gorm:"type:varchar(30)"`
	ProfitCenter    *string    `gorm:"type:varchar(30)"`
	PostingDate     time.Time  `gorm:"not null"`
	DocumentDate    time.Time  `gorm:"not null"`
	Reference       string     `gorm:"type:varchar(100);index"`
	JournalEntryID  *uuid.UUID `gorm:"type:uuid"`
	ReversalEntryID *uuid.UUID `gorm:"type:uuid"`
	PaymentEntryID  *uuid.UUID `gorm:"type:uuid"`
	ClearingID      *uuid.UUID `gorm:"type:uuid"`
	PostedAt        *time.Time
	CancelledAt     *time.Time
	PaidAt          *time.Time
	// Associations
	Lines []DocumentLineModel `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName returns the table name for GORM
func (DocumentModel) TableName() string {
	return "documents"
}

// ToDomain converts the persistence model to a domain BusinessDocument
func (m *DocumentModel) ToDomain() (*posting.BusinessDocument, error) {
	status, err := posting.ParseDocumentStatus(m.Status)
	if err != nil {
		return nil, err
	}
	d := &posting.BusinessDocument{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Type:              posting.DocumentType(m.DocumentType),
		Status:            status,
		PartnerID:         m.PartnerID,
		SourceState:       m.SourceState,
		DestState:         m.DestState,
		OperationType:     tax.OperationType(m.OperationType),
		WarehouseID:       m.WarehouseID,
		DestWarehouseID:   m.DestWarehouseID,
		AffectsStock:      m.AffectsStock,
		AllowBackorder:    m.AllowBackorder,
		CostCenter:        m.CostCenter,
		ProfitCenter:      m.ProfitCenter,
		PostingDate:       m.PostingDate,
		DocumentDate:      m.DocumentDate,
		Reference:         m.Reference,
		JournalEntryID:    m.JournalEntryID,
		ReversalEntryID:   m.ReversalEntryID,
		PaymentEntryID:    m.PaymentEntryID,
		ClearingID:        m.ClearingID,
		PostedAt:          m.PostedAt,
		CancelledAt:       m.CancelledAt,
		PaidAt:            m.PaidAt,
		Lines:             make([]posting.DocumentLine, len(m.Lines)),
	}
	for i := range m.Lines {
		d.Lines[i] = m.Lines[i].ToDomain()
	}
	return d, nil
}

// DocumentModelFromDomain creates a persistence model from a domain
// BusinessDocument with its lines
func DocumentModelFromDomain(d *posting.BusinessDocument) *DocumentModel {
	m := &DocumentModel{
		DocumentType:    string(d.Type),
		Status:          d.Status.String(),
		PartnerID:       d.PartnerID,
		SourceState:     d.SourceState,
		DestState:       d.DestState,
		OperationType:   string(d.OperationType),
		WarehouseID:     d.WarehouseID,
		DestWarehouseID: d.DestWarehouseID,
		AffectsStock:    d.AffectsStock,
		AllowBackorder:  d.AllowBackorder,
		CostCenter:      d.CostCenter,
		ProfitCenter:    d.ProfitCenter,
		PostingDate:     d.PostingDate,
		DocumentDate:    d.DocumentDate,
		Reference:       d.Reference,
		JournalEntryID:  d.JournalEntryID,
		ReversalEntryID: d.ReversalEntryID,
		PaymentEntryID:  d.PaymentEntryID,
		ClearingID:      d.ClearingID,
		PostedAt:        d.PostedAt,
		CancelledAt:     d.CancelledAt,
		PaidAt:          d.PaidAt,
		Lines:           make([]DocumentLineModel, len(d.Lines)),
	}
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	for i := range d.Lines {
		m.Lines[i] = *DocumentLineModelFromDomain(d.ID, &d.Lines[i])
	}
	return m
}

// DocumentLineModel is the persistence model for a document line
type DocumentLineModel struct {
	ID              uuid.UUID        `gorm:"type:uuid;primary_key"`
	DocumentID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	LineNo          int              `gorm:"not null"`
	MaterialID      uuid.UUID        `gorm:"type:uuid;not null"`
	NCMCode         *string          `gorm:"type:varchar(10)"`
	Quantity        decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	UnitPrice       decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	BatchNumber     *string          `gorm:"type:varchar(50)"`
	BatchExpiresAt  *time.Time
	CountedQuantity *decimal.Decimal `gorm:"type:decimal(18,4)"`
	BaseAmount      decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	TaxRuleID       *uuid.UUID       `gorm:"type:uuid"`
	CFOP            string           `gorm:"type:varchar(10)"`
	CSTICMS         string           `gorm:"column:cst_icms;type:varchar(5)"`
	ICMSValue       decimal.Decimal  `gorm:"column:icms_value;type:decimal(18,2);not null;default:0"`
	IPIValue        decimal.Decimal  `gorm:"column:ipi_value;type:decimal(18,2);not null;default:0"`
	PISValue        decimal.Decimal  `gorm:"column:pis_value;type:decimal(18,2);not null;default:0"`
	COFINSValue     decimal.Decimal  `gorm:"column:cofins_value;type:decimal(18,2);not null;default:0"`
	TotalTax        decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	CostOfGoods     decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (DocumentLineModel) TableName() string {
	return "document_lines"
}

// ToDomain converts the persistence model to a domain line
func (m *DocumentLineModel) ToDomain() posting.DocumentLine {
	return posting.DocumentLine{
		ID:              m.ID,
		LineNo:          m.LineNo,
		MaterialID:      m.MaterialID,
		NCMCode:         m.NCMCode,
		Quantity:        m.Quantity,
		UnitPrice:       m.UnitPrice,
		BatchNumber:     m.BatchNumber,
		BatchExpiresAt:  m.BatchExpiresAt,
		CountedQuantity: m.CountedQuantity,
		BaseAmount:      m.BaseAmount,
		TaxRuleID:       m.TaxRuleID,
		CFOP:            m.CFOP,
		CSTICMS:         m.CSTICMS,
		Taxes: tax.TaxAmounts{
			ICMS:   m.ICMSValue,
			IPI:    m.IPIValue,
			PIS:    m.PISValue,
			COFINS: m.COFINSValue,
			Total:  m.TotalTax,
		},
		CostOfGoods: m.CostOfGoods,
	}
}

// DocumentLineModelFromDomain creates a persistence model from a domain line
func DocumentLineModelFromDomain(documentID uuid.UUID, l *posting.DocumentLine) *DocumentLineModel {
	return &DocumentLineModel{
		ID:              l.ID,
		DocumentID:      documentID,
		LineNo:          l.LineNo,
		MaterialID:      l.MaterialID,
		NCMCode:         l.NCMCode,
		Quantity:        l.Quantity,
		UnitPrice:       l.UnitPrice,
		BatchNumber:     l.BatchNumber,
		BatchExpiresAt:  l.BatchExpiresAt,
		CountedQuantity: l.CountedQuantity,
		BaseAmount:      l.BaseAmount,
		TaxRuleID:       l.TaxRuleID,
		CFOP:            l.CFOP,
		CSTICMS:         l.CSTICMS,
		ICMSValue:       l.Taxes.ICMS,
		IPIValue:        l.Taxes.IPI,
		PISValue:        l.Taxes.PIS,
		COFINSValue:     l.Taxes.COFINS,
		TotalTax:        l.Taxes.Total,
		CostOfGoods:     l.CostOfGoods,
	}
}
