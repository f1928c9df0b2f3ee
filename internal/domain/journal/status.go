package journal

import "github.com/erp/posting/internal/domain/shared"

// EntryStatus is the closed set of journal entry states. Values can only be
// obtained from the package variables or ParseEntryStatus.
type EntryStatus struct{ name string }

var (
	StatusDraft     = EntryStatus{"DRAFT"}
	StatusPosted    = EntryStatus{"POSTED"}
	StatusCancelled = EntryStatus{"CANCELLED"}
)

// String returns the persisted name of the status
func (s EntryStatus) String() string {
	return s.name
}

// MarshalText implements encoding.TextMarshaler
func (s EntryStatus) MarshalText() ([]byte, error) {
	return []byte(s.name), nil
}

// ParseEntryStatus converts a persisted name back to a status
func ParseEntryStatus(name string) (EntryStatus, error) {
	for _, s := range []EntryStatus{StatusDraft, StatusPosted, StatusCancelled} {
		if s.name == name {
			return s, nil
		}
	}
	return EntryStatus{}, shared.Errorf(shared.ErrInvalidInput, "unknown journal entry status %q", name)
}

// Side is the debit or credit side of a line
type Side string

const (
	Debit  Side = "DEBIT"
	Credit Side = "CREDIT"
)

// IsValid checks if the side is known
func (s Side) IsValid() bool {
	return s == Debit || s == Credit
}

// Opposite returns the other side
func (s Side) Opposite() Side {
	if s == Debit {
		return Credit
	}
	return Debit
}

// EntryType classifies the business event an entry books
type EntryType string

const (
	EntryGeneral             EntryType = "GENERAL"
	EntrySalesInvoice        EntryType = "SALES_INVOICE"
	EntryPurchaseInvoice     EntryType = "PURCHASE_INVOICE"
	EntryGoodsReceipt        EntryType = "GOODS_RECEIPT"
	EntryGoodsIssue          EntryType = "GOODS_ISSUE"
	EntryInventoryAdjustment EntryType = "INVENTORY_ADJUSTMENT"
	EntryPayment             EntryType = "PAYMENT"
	EntryReversal            EntryType = "REVERSAL"
)
