// Package posting models the business documents whose posting couples the
// stock ledger, the tax resolver and the journal.
package posting

import (
	"strings"
	"time"

	"github.com/erp/posting/internal/domain/journal"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeDocument is the aggregate type of document events
const AggregateTypeDocument = "BusinessDocument"

// DocumentType selects the posting behavior of a document
type DocumentType string

const (
	TypeSalesInvoice    DocumentType = "SALES_INVOICE"
	TypePurchaseInvoice DocumentType = "PURCHASE_INVOICE"
	TypeGoodsReceipt    DocumentType = "GOODS_RECEIPT"
	TypeGoodsIssue      DocumentType = "GOODS_ISSUE"
	TypeStockTransfer   DocumentType = "STOCK_TRANSFER"
	TypeInventoryCount  DocumentType = "INVENTORY_COUNT"
)

// IsValid checks if the document type is known
func (t DocumentType) IsValid() bool {
	switch t {
	case TypeSalesInvoice, TypePurchaseInvoice, TypeGoodsReceipt, TypeGoodsIssue, TypeStockTransfer, TypeInventoryCount:
		return true
	}
	return false
}

// IsInvoice reports whether the document is fiscal and carries taxes
func (t DocumentType) IsInvoice() bool {
	return t == TypeSalesInvoice || t == TypePurchaseInvoice
}

// StockEffect is what posting a document does to the stock ledger
type StockEffect string

const (
	EffectNone     StockEffect = "NONE"
	EffectIssue    StockEffect = "ISSUE"
	EffectReceive  StockEffect = "RECEIVE"
	EffectTransfer StockEffect = "TRANSFER"
	EffectCount    StockEffect = "COUNT"
)

// DocumentLine is one material line. The tax and cost fields are stamped
// when the document is posted and recomputed on every posting attempt.
type DocumentLine struct {
	ID              uuid.UUID
	LineNo          int
	MaterialID      uuid.UUID
	NCMCode         *string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	BatchNumber     *string
	BatchExpiresAt  *time.Time
	CountedQuantity *decimal.Decimal

	BaseAmount  decimal.Decimal
	TaxRuleID   *uuid.UUID
	CFOP        string
	CSTICMS     string
	Taxes       tax.TaxAmounts
	CostOfGoods decimal.Decimal
}

// LineInput describes a line of a new document
type LineInput struct {
	MaterialID      uuid.UUID
	NCMCode         *string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	BatchNumber     *string
	BatchExpiresAt  *time.Time
	CountedQuantity *decimal.Decimal
}

// BusinessDocument is an invoice or stock document moving through
// Draft -> Posted -> (Cancelled | Paid).
type BusinessDocument struct {
	shared.BaseAggregateRoot
	Type            DocumentType
	Status          DocumentStatus
	PartnerID       *uuid.UUID
	SourceState     string
	DestState       string
	OperationType   tax.OperationType
	WarehouseID     uuid.UUID
	DestWarehouseID *uuid.UUID
	AffectsStock    bool
	AllowBackorder  bool
	CostCenter      *string
	ProfitCenter    *string
	PostingDate     time.Time
	DocumentDate    time.Time
	Reference       string
	JournalEntryID  *uuid.UUID
	ReversalEntryID *uuid.UUID
	PaymentEntryID  *uuid.UUID
	ClearingID      *uuid.UUID
	PostedAt        *time.Time
	CancelledAt     *time.Time
	PaidAt          *time.Time
	Lines           []DocumentLine
}

// DocumentInput carries the header of a new document
type DocumentInput struct {
	Type            DocumentType
	PartnerID       *uuid.UUID
	SourceState     string
	DestState       string
	OperationType   tax.OperationType
	WarehouseID     uuid.UUID
	DestWarehouseID *uuid.UUID
	AffectsStock    bool
	AllowBackorder  bool
	CostCenter      *string
	ProfitCenter    *string
	PostingDate     time.Time
	DocumentDate    time.Time
	Reference       string
	Lines           []LineInput
}

// NewDocument validates the input and creates a draft
func NewDocument(in DocumentInput) (*BusinessDocument, error) {
	if !in.Type.IsValid() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "invalid document type %q", in.Type)
	}
	if in.WarehouseID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrInvalidInput, "warehouse is required")
	}
	if len(in.Lines) == 0 {
		return nil, shared.Errorf(shared.ErrInvalidInput, "document has no lines")
	}
	if in.PostingDate.IsZero() {
		in.PostingDate = time.Now()
	}
	if in.DocumentDate.IsZero() {
		in.DocumentDate = in.PostingDate
	}

	in.OperationType = in.OperationType.Normalize()
	switch in.Type {
	case TypeSalesInvoice, TypePurchaseInvoice:
		if in.PartnerID == nil || *in.PartnerID == uuid.Nil {
			return nil, shared.Errorf(shared.ErrInvalidInput, "invoice requires a business partner")
		}
		if len(strings.TrimSpace(in.SourceState)) != 2 || len(strings.TrimSpace(in.DestState)) != 2 {
			return nil, shared.Errorf(shared.ErrInvalidInput, "invoice requires source and destination states")
		}
		if in.OperationType == "" {
			if in.Type == TypeSalesInvoice {
				in.OperationType = tax.OperationSale
			} else {
				in.OperationType = tax.OperationPurchase
			}
		}
	case TypeGoodsReceipt, TypeGoodsIssue, TypeInventoryCount:
		in.AffectsStock = true
	case TypeStockTransfer:
		in.AffectsStock = true
		if in.DestWarehouseID == nil || *in.DestWarehouseID == uuid.Nil || *in.DestWarehouseID == in.WarehouseID {
			return nil, shared.Errorf(shared.ErrInvalidInput, "transfer requires a different destination warehouse")
		}
	}

	doc := &BusinessDocument{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Type:              in.Type,
		Status:            StatusDraft,
		PartnerID:         in.PartnerID,
		SourceState:       strings.ToUpper(strings.TrimSpace(in.SourceState)),
		DestState:         strings.ToUpper(strings.TrimSpace(in.DestState)),
		OperationType:     in.OperationType,
		WarehouseID:       in.WarehouseID,
		DestWarehouseID:   in.DestWarehouseID,
		AffectsStock:      in.AffectsStock,
		AllowBackorder:    in.AllowBackorder,
		CostCenter:        in.CostCenter,
		ProfitCenter:      in.ProfitCenter,
		PostingDate:       in.PostingDate,
		DocumentDate:      in.DocumentDate,
		Reference:         strings.TrimSpace(in.Reference),
		Lines:             make([]DocumentLine, 0, len(in.Lines)),
	}

	for i, l := range in.Lines {
		if l.MaterialID == uuid.Nil {
			return nil, shared.Errorf(shared.ErrInvalidInput, "line %d: material is required", i+1)
		}
		if in.Type == TypeInventoryCount {
			if l.CountedQuantity == nil || l.CountedQuantity.IsNegative() {
				return nil, shared.Errorf(shared.ErrInvalidInput, "line %d: counted quantity must be zero or more", i+1)
			}
		} else if !l.Quantity.IsPositive() {
			return nil, shared.Errorf(shared.ErrInvalidInput, "line %d: quantity must be positive", i+1)
		}
		if l.UnitPrice.IsNegative() {
			return nil, shared.Errorf(shared.ErrInvalidInput, "line %d: unit price cannot be negative", i+1)
		}
		doc.Lines = append(doc.Lines, DocumentLine{
			ID:              uuid.New(),
			LineNo:          i + 1,
			MaterialID:      l.MaterialID,
			NCMCode:         l.NCMCode,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			BatchNumber:     l.BatchNumber,
			BatchExpiresAt:  l.BatchExpiresAt,
			CountedQuantity: l.CountedQuantity,
		})
	}
	return doc, nil
}

// StockEffect returns what posting does to stock
func (d *BusinessDocument) StockEffect() StockEffect {
	if !d.AffectsStock {
		return EffectNone
	}
	switch d.Type {
	case TypeSalesInvoice, TypeGoodsIssue:
		return EffectIssue
	case TypePurchaseInvoice, TypeGoodsReceipt:
		return EffectReceive
	case TypeStockTransfer:
		return EffectTransfer
	case TypeInventoryCount:
		return EffectCount
	}
	return EffectNone
}

// StockReference is the reference document written on the movements this
// document books, used to find them again on cancellation.
func (d *BusinessDocument) StockReference() string {
	return "DOC-" + d.ID.String()
}

// LockKey names the document for mutual exclusion
func (d *BusinessDocument) LockKey() string {
	return "document:" + d.ID.String()
}

// EnsurePostable checks the document is a draft
func (d *BusinessDocument) EnsurePostable() error {
	if !d.Status.CanTransitionTo(StatusPosted) {
		return shared.Errorf(shared.ErrInvalidState, "document %s is %s and cannot be posted", d.ID, d.Status)
	}
	return nil
}

// EnsureDeletable checks that nothing was booked for a draft
func (d *BusinessDocument) EnsureDeletable() error {
	if d.Status != StatusDraft || d.JournalEntryID != nil {
		return shared.Errorf(shared.ErrInvalidState, "document %s is %s and cannot be deleted", d.ID, d.Status)
	}
	return nil
}

// MarkPosted records a successful posting
func (d *BusinessDocument) MarkPosted(entryID *uuid.UUID, stockKeys []string) error {
	if err := d.EnsurePostable(); err != nil {
		return err
	}
	now := time.Now()
	d.Status = StatusPosted
	d.JournalEntryID = entryID
	d.PostedAt = &now
	d.touch()
	d.AddDomainEvent(NewDocumentPostedEvent(d, stockKeys))
	return nil
}

// MarkCancelled records the reversal of a posting
func (d *BusinessDocument) MarkCancelled(reversalEntryID *uuid.UUID, reason string, stockKeys []string) error {
	if !d.Status.CanTransitionTo(StatusCancelled) {
		return shared.Errorf(shared.ErrInvalidState, "document %s is %s and cannot be cancelled", d.ID, d.Status)
	}
	now := time.Now()
	d.Status = StatusCancelled
	d.ReversalEntryID = reversalEntryID
	d.CancelledAt = &now
	d.touch()
	d.AddDomainEvent(NewDocumentCancelledEvent(d, reason, stockKeys))
	return nil
}

// EnsurePayable checks the document is a posted invoice
func (d *BusinessDocument) EnsurePayable() error {
	if !d.Type.IsInvoice() {
		return shared.Errorf(shared.ErrInvalidState, "%s documents are not paid", d.Type)
	}
	if !d.Status.CanTransitionTo(StatusPaid) || d.JournalEntryID == nil {
		return shared.Errorf(shared.ErrInvalidState, "document %s is %s and cannot be paid", d.ID, d.Status)
	}
	return nil
}

// MarkPaid records the settlement of an invoice
func (d *BusinessDocument) MarkPaid(paymentEntryID, clearingID uuid.UUID) error {
	if err := d.EnsurePayable(); err != nil {
		return err
	}
	now := time.Now()
	d.Status = StatusPaid
	d.PaymentEntryID = &paymentEntryID
	d.ClearingID = &clearingID
	d.PaidAt = &now
	d.touch()
	d.AddDomainEvent(NewDocumentPaidEvent(d))
	return nil
}

// GrossTotal is the invoice amount owed by or to the partner
func (d *BusinessDocument) GrossTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range d.Lines {
		total = total.Add(l.BaseAmount).Add(l.Taxes.IPI)
	}
	return total
}

// ResetStamps clears values computed by a previous posting attempt
func (d *BusinessDocument) ResetStamps() {
	for i := range d.Lines {
		l := &d.Lines[i]
		l.BaseAmount = decimal.Zero
		l.TaxRuleID = nil
		l.CFOP = ""
		l.CSTICMS = ""
		l.Taxes = tax.TaxAmounts{}
		l.CostOfGoods = decimal.Zero
	}
}

func (d *BusinessDocument) touch() {
	d.IncrementVersion()
}

// EntryType returns the journal entry type booked when posting
func (d *BusinessDocument) EntryType() journal.EntryType {
	switch d.Type {
	case TypeSalesInvoice:
		return journal.EntrySalesInvoice
	case TypePurchaseInvoice:
		return journal.EntryPurchaseInvoice
	case TypeGoodsReceipt:
		return journal.EntryGoodsReceipt
	case TypeGoodsIssue:
		return journal.EntryGoodsIssue
	case TypeInventoryCount:
		return journal.EntryInventoryAdjustment
	}
	return journal.EntryGeneral
}
