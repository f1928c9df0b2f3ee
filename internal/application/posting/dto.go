package posting

import (
	"time"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	journalapp "github.com/erp/posting/internal/application/journal"
	"github.com/erp/posting/internal/domain/posting"
	"github.com/erp/posting/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentLineRequest is one material line of a new document
type DocumentLineRequest struct {
	MaterialID      uuid.UUID        `json:"material_id" binding:"required"`
	NCMCode         *string          `json:"ncm_code"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	BatchNumber     *string          `json:"batch_number"`
	BatchExpiresAt  *time.Time       `json:"batch_expires_at"`
	CountedQuantity *decimal.Decimal `json:"counted_quantity"`
}

// CreateDocumentRequest represents a request to create a draft document
type CreateDocumentRequest struct {
	Type            string                `json:"type" binding:"required"`
	PartnerID       *uuid.UUID            `json:"partner_id"`
	SourceState     string                `json:"source_state"`
	DestState       string                `json:"dest_state"`
	OperationType   string                `json:"operation_type"`
	WarehouseID     uuid.UUID             `json:"warehouse_id" binding:"required"`
	DestWarehouseID *uuid.UUID            `json:"dest_warehouse_id"`
	AffectsStock    bool                  `json:"affects_stock"`
	AllowBackorder  bool                  `json:"allow_backorder"`
	CostCenter      *string               `json:"cost_center"`
	ProfitCenter    *string               `json:"profit_center"`
	PostingDate     time.Time             `json:"posting_date" binding:"required"`
	DocumentDate    *time.Time            `json:"document_date"`
	Reference       string                `json:"reference" binding:"max=100"`
	Lines           []DocumentLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// Input converts the request for the domain
func (r CreateDocumentRequest) Input() posting.DocumentInput {
	in := posting.DocumentInput{
		Type:            posting.DocumentType(r.Type),
		PartnerID:       r.PartnerID,
		SourceState:     r.SourceState,
		DestState:       r.DestState,
		OperationType:   tax.OperationType(r.OperationType),
		WarehouseID:     r.WarehouseID,
		DestWarehouseID: r.DestWarehouseID,
		AffectsStock:    r.AffectsStock,
		AllowBackorder:  r.AllowBackorder,
		CostCenter:      r.CostCenter,
		ProfitCenter:    r.ProfitCenter,
		PostingDate:     r.PostingDate,
		Reference:       r.Reference,
		Lines:           make([]posting.LineInput, len(r.Lines)),
	}
	if r.DocumentDate != nil {
		in.DocumentDate = *r.DocumentDate
	}
	for i, l := range r.Lines {
		in.Lines[i] = posting.LineInput{
			MaterialID:      l.MaterialID,
			NCMCode:         l.NCMCode,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			BatchNumber:     l.BatchNumber,
			BatchExpiresAt:  l.BatchExpiresAt,
			CountedQuantity: l.CountedQuantity,
		}
	}
	return in
}

// CancelRequest represents a request to cancel a posted document
type CancelRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// PaymentRequest settles a posted invoice in full. Amount, when given, must
// equal the invoice gross total.
type PaymentRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	PaymentDate *time.Time       `json:"payment_date"`
	Reference   string           `json:"reference" binding:"max=100"`
}

// DocumentListFilter filters a document listing
type DocumentListFilter struct {
	Type      string `form:"type"`
	Status    string `form:"status"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// DocumentLineResponse represents a document line in API responses
type DocumentLineResponse struct {
	ID              uuid.UUID        `json:"id"`
	LineNo          int              `json:"line_no"`
	MaterialID      uuid.UUID        `json:"material_id"`
	NCMCode         *string          `json:"ncm_code,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	BatchNumber     *string          `json:"batch_number,omitempty"`
	CountedQuantity *decimal.Decimal `json:"counted_quantity,omitempty"`
	BaseAmount      decimal.Decimal  `json:"base_amount"`
	TaxRuleID       *uuid.UUID       `json:"tax_rule_id,omitempty"`
	CFOP            string           `json:"cfop,omitempty"`
	CSTICMS         string           `json:"cst_icms,omitempty"`
	ICMSValue       decimal.Decimal  `json:"icms_value"`
	IPIValue        decimal.Decimal  `json:"ipi_value"`
	PISValue        decimal.Decimal  `json:"pis_value"`
	COFINSValue     decimal.Decimal  `json:"cofins_value"`
	TotalTax        decimal.Decimal  `json:"total_tax"`
	CostOfGoods     decimal.Decimal  `json:"cost_of_goods"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID              uuid.UUID              `json:"id"`
	Type            string                 `json:"type"`
	Status          string                 `json:"status"`
	PartnerID       *uuid.UUID             `json:"partner_id,omitempty"`
	SourceState     string                 `json:"source_state,omitempty"`
	DestState       string                 `json:"dest_state,omitempty"`
	OperationType   string                 `json:"operation_type,omitempty"`
	WarehouseID     uuid.UUID              `json:"warehouse_id"`
	DestWarehouseID *uuid.UUID             `json:"dest_warehouse_id,omitempty"`
	AffectsStock    bool                   `json:"affects_stock"`
	AllowBackorder  bool                   `json:"allow_backorder"`
	CostCenter      *string                `json:"cost_center,omitempty"`
	ProfitCenter    *string                `json:"profit_center,omitempty"`
	PostingDate     time.Time              `json:"posting_date"`
	DocumentDate    time.Time              `json:"document_date"`
	Reference       string                 `json:"reference"`
	GrossTotal      decimal.Decimal        `json:"gross_total"`
	JournalEntryID  *uuid.UUID             `json:"journal_entry_id,omitempty"`
	ReversalEntryID *uuid.UUID             `json:"reversal_entry_id,omitempty"`
	PaymentEntryID  *uuid.UUID             `json:"payment_entry_id,omitempty"`
	ClearingID      *uuid.UUID             `json:"clearing_id,omitempty"`
	PostedAt        *time.Time             `json:"posted_at,omitempty"`
	CancelledAt     *time.Time             `json:"cancelled_at,omitempty"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	Version         int                    `json:"version"`
	Lines           []DocumentLineResponse `json:"lines"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// ToDocumentResponse converts a document with its lines
func ToDocumentResponse(d *posting.BusinessDocument) *DocumentResponse {
	resp := &DocumentResponse{
		ID:              d.ID,
		Type:            string(d.Type),
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
		GrossTotal:      d.GrossTotal(),
		JournalEntryID:  d.JournalEntryID,
		ReversalEntryID: d.ReversalEntryID,
		PaymentEntryID:  d.PaymentEntryID,
		ClearingID:      d.ClearingID,
		PostedAt:        d.PostedAt,
		CancelledAt:     d.CancelledAt,
		PaidAt:          d.PaidAt,
		Version:         d.Version,
		Lines:           make([]DocumentLineResponse, len(d.Lines)),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for i, l := range d.Lines {
		resp.Lines[i] = DocumentLineResponse{
			ID:              l.ID,
			LineNo:          l.LineNo,
			MaterialID:      l.MaterialID,
			NCMCode:         l.NCMCode,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			BatchNumber:     l.BatchNumber,
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
	return resp
}

// PostingResult is what a document transition booked
type PostingResult struct {
	Document     *DocumentResponse              `json:"document"`
	JournalEntry *journalapp.EntryResponse      `json:"journal_entry,omitempty"`
	Movements    []inventoryapp.MovementResponse `json:"movements"`
	ClearingID   *uuid.UUID                     `json:"clearing_id,omitempty"`
}
