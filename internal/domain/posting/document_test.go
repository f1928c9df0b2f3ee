package posting

import (
	"testing"
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func salesInvoiceInput() DocumentInput {
	partner := uuid.New()
	return DocumentInput{
		Type:         TypeSalesInvoice,
		PartnerID:    &partner,
		SourceState:  "sp",
		DestState:    "RJ",
		WarehouseID:  uuid.New(),
		AffectsStock: true,
		PostingDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Reference:    "NF-1001",
		Lines: []LineInput{
			{MaterialID: uuid.New(), Quantity: d("10"), UnitPrice: d("12.50")},
		},
	}
}

func createTestDocument(t *testing.T) *BusinessDocument {
	t.Helper()
	doc, err := NewDocument(salesInvoiceInput())
	require.NoError(t, err)
	return doc
}

func TestNewDocument(t *testing.T) {
	doc := createTestDocument(t)

	assert.Equal(t, StatusDraft, doc.Status)
	assert.Equal(t, "SP", doc.SourceState)
	assert.Equal(t, tax.OperationSale, doc.OperationType)
	assert.Equal(t, doc.PostingDate, doc.DocumentDate)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, 1, doc.Lines[0].LineNo)
	assert.Equal(t, EffectIssue, doc.StockEffect())
	assert.Equal(t, 1, doc.GetVersion())
}

func TestNewDocument_NormalizesOperationType(t *testing.T) {
	in := salesInvoiceInput()
	in.OperationType = " sale"
	doc, err := NewDocument(in)
	require.NoError(t, err)
	assert.Equal(t, tax.OperationSale, doc.OperationType)
}

func TestNewDocument_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *DocumentInput)
	}{
		{"unknown type", func(in *DocumentInput) { in.Type = "CREDIT_NOTE" }},
		{"no lines", func(in *DocumentInput) { in.Lines = nil }},
		{"no warehouse", func(in *DocumentInput) { in.WarehouseID = uuid.Nil }},
		{"invoice without partner", func(in *DocumentInput) { in.PartnerID = nil }},
		{"invoice without states", func(in *DocumentInput) { in.DestState = "" }},
		{"zero quantity", func(in *DocumentInput) { in.Lines[0].Quantity = decimal.Zero }},
		{"negative price", func(in *DocumentInput) { in.Lines[0].UnitPrice = d("-1") }},
		{"transfer to same warehouse", func(in *DocumentInput) {
			in.Type = TypeStockTransfer
			in.DestWarehouseID = &in.WarehouseID
		}},
		{"count without counted quantity", func(in *DocumentInput) { in.Type = TypeInventoryCount }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := salesInvoiceInput()
			tt.mutate(&in)
			_, err := NewDocument(in)
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}
}

func TestNewDocument_StockDocumentsAlwaysAffectStock(t *testing.T) {
	in := salesInvoiceInput()
	in.Type = TypeGoodsReceipt
	in.AffectsStock = false
	doc, err := NewDocument(in)
	require.NoError(t, err)
	assert.Equal(t, EffectReceive, doc.StockEffect())

	in = salesInvoiceInput()
	in.AffectsStock = false
	doc, err = NewDocument(in)
	require.NoError(t, err)
	assert.Equal(t, EffectNone, doc.StockEffect())
}

func TestDocumentStatus_Transitions(t *testing.T) {
	assert.True(t, StatusDraft.CanTransitionTo(StatusPosted))
	assert.False(t, StatusDraft.CanTransitionTo(StatusPaid))
	assert.True(t, StatusPosted.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusPosted.CanTransitionTo(StatusPaid))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusPosted))
	assert.True(t, StatusPaid.IsTerminal())

	s, err := ParseDocumentStatus("PAID")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, s)
	_, err = ParseDocumentStatus("ARCHIVED")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestBusinessDocument_Lifecycle(t *testing.T) {
	doc := createTestDocument(t)
	entryID := uuid.New()

	require.NoError(t, doc.MarkPosted(&entryID, []string{"stock:a"}))
	assert.Equal(t, StatusPosted, doc.Status)
	assert.Equal(t, 2, doc.GetVersion())
	require.Len(t, doc.GetDomainEvents(), 1)
	assert.Equal(t, EventTypeDocumentPosted, doc.GetDomainEvents()[0].EventType())

	err := doc.MarkPosted(&entryID, nil)
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.ErrorIs(t, doc.EnsureDeletable(), shared.ErrInvalidState)

	require.NoError(t, doc.MarkPaid(uuid.New(), uuid.New()))
	assert.Equal(t, StatusPaid, doc.Status)
	assert.ErrorIs(t, doc.MarkCancelled(nil, "late", nil), shared.ErrInvalidState)
}

func TestBusinessDocument_CancelBlocksPayment(t *testing.T) {
	doc := createTestDocument(t)
	entryID := uuid.New()
	require.NoError(t, doc.MarkPosted(&entryID, nil))

	reversal := uuid.New()
	require.NoError(t, doc.MarkCancelled(&reversal, "wrong customer", nil))
	assert.Equal(t, StatusCancelled, doc.Status)
	assert.ErrorIs(t, doc.EnsurePayable(), shared.ErrInvalidState)
}

func TestBusinessDocument_OnlyInvoicesArePaid(t *testing.T) {
	in := salesInvoiceInput()
	in.Type = TypeGoodsIssue
	doc, err := NewDocument(in)
	require.NoError(t, err)
	entryID := uuid.New()
	require.NoError(t, doc.MarkPosted(&entryID, nil))

	assert.ErrorIs(t, doc.EnsurePayable(), shared.ErrInvalidState)
}
