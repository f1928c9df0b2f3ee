package inventory

import (
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// HoldStatus is the lifecycle of a stock hold
type HoldStatus string

const (
	HoldActive   HoldStatus = "ACTIVE"
	HoldReleased HoldStatus = "RELEASED"
)

// StockHold records quantity blocked on a key, e.g. during an inventory count
type StockHold struct {
	shared.BaseEntity
	Key        StockKey
	Quantity   decimal.Decimal
	Reason     string
	Reference  string
	Status     HoldStatus
	ReleasedAt *time.Time
}

// NewStockHold creates an active hold
func NewStockHold(key StockKey, quantity decimal.Decimal, reason, reference string) *StockHold {
	return &StockHold{
		BaseEntity: shared.NewBaseEntity(),
		Key:        key,
		Quantity:   quantity,
		Reason:     reason,
		Reference:  reference,
		Status:     HoldActive,
	}
}

// IsActive returns true until the hold is released
func (h *StockHold) IsActive() bool {
	return h.Status == HoldActive
}

// Release marks the hold released. Releasing twice is an error.
func (h *StockHold) Release() error {
	if !h.IsActive() {
		return shared.Errorf(shared.ErrInvalidState, "hold %s is already released", h.ID)
	}
	now := time.Now()
	h.Status = HoldReleased
	h.ReleasedAt = &now
	h.UpdatedAt = now
	return nil
}
