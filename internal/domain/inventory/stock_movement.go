package inventory

import (
	"time"

	"github.com/erp/posting/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType classifies a stock movement
type MovementType string

const (
	MovementIn             MovementType = "IN"
	MovementOut            MovementType = "OUT"
	MovementTransfer       MovementType = "TRANSFER"
	MovementAdjustment     MovementType = "ADJUSTMENT"
	MovementInitialBalance MovementType = "INITIAL_BALANCE"
)

// IsValid checks if the movement type is known
func (t MovementType) IsValid() bool {
	switch t {
	case MovementIn, MovementOut, MovementTransfer, MovementAdjustment, MovementInitialBalance:
		return true
	}
	return false
}

// StockMovement is an immutable ledger fact. Quantity is the signed change
// it caused on its key; the sum of Quantity over a key equals the level's
// quantity. Movements are never updated or deleted.
type StockMovement struct {
	ID                uuid.UUID
	MaterialID        uuid.UUID
	WarehouseID       uuid.UUID
	BatchID           *uuid.UUID
	Type              MovementType
	Quantity          decimal.Decimal // signed delta
	UnitCost          decimal.Decimal
	TotalCost         decimal.Decimal // signed, round(Quantity x UnitCost, 2)
	BalanceBefore     decimal.Decimal
	BalanceAfter      decimal.Decimal
	AverageCostAfter  decimal.Decimal
	ReferenceDocument string
	ReversalOfID      *uuid.UUID // compensating movement of a cancelled posting
	CounterpartID     *uuid.UUID // other leg of a transfer
	PeerWarehouseID   *uuid.UUID // other warehouse of a transfer
	MovementDate      time.Time
	CreatedAt         time.Time
}

// MovementMeta carries the descriptive part of a movement
type MovementMeta struct {
	Type              MovementType
	ReferenceDocument string
	MovementDate      time.Time
	ReversalOfID      *uuid.UUID
	CounterpartID     *uuid.UUID
	PeerWarehouseID   *uuid.UUID
}

func newMovement(key StockKey, meta MovementMeta, delta, unitCost, before, avgAfter decimal.Decimal) *StockMovement {
	now := time.Now()
	date := meta.MovementDate
	if date.IsZero() {
		date = now
	}
	return &StockMovement{
		ID:                uuid.New(),
		MaterialID:        key.MaterialID,
		WarehouseID:       key.WarehouseID,
		BatchID:           key.BatchID,
		Type:              meta.Type,
		Quantity:          delta,
		UnitCost:          unitCost,
		TotalCost:         valueobject.RoundMoney(delta.Mul(unitCost)),
		BalanceBefore:     before,
		BalanceAfter:      before.Add(delta),
		AverageCostAfter:  avgAfter,
		ReferenceDocument: meta.ReferenceDocument,
		ReversalOfID:      meta.ReversalOfID,
		CounterpartID:     meta.CounterpartID,
		PeerWarehouseID:   meta.PeerWarehouseID,
		MovementDate:      date,
		CreatedAt:         now,
	}
}

// Key returns the stock key this movement belongs to
func (m *StockMovement) Key() StockKey {
	return StockKey{MaterialID: m.MaterialID, WarehouseID: m.WarehouseID, BatchID: m.BatchID}
}

// IsInbound reports whether the movement increased the quantity
func (m *StockMovement) IsInbound() bool {
	return m.Quantity.IsPositive()
}

// AbsQuantity returns the magnitude of the movement
func (m *StockMovement) AbsQuantity() decimal.Decimal {
	return m.Quantity.Abs()
}

// IsConsistent checks BalanceAfter = BalanceBefore + Quantity
func (m *StockMovement) IsConsistent() bool {
	return m.BalanceBefore.Add(m.Quantity).Equal(m.BalanceAfter)
}
