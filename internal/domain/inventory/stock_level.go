package inventory

import (
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// StockLevel is the materialized projection of the movements of one key.
// Every quantity change goes through a method that returns the movement
// describing it, so Quantity always equals the signed sum of the key's
// movements once both are persisted together.
type StockLevel struct {
	shared.BaseAggregateRoot
	Key               StockKey
	Quantity          decimal.Decimal // on hand, may be negative after a backorder issue
	BlockedQuantity   decimal.Decimal // held for counts or quality; still on hand
	InTransitQuantity decimal.Decimal // dispatched to this warehouse, not yet received
	AverageUnitCost   decimal.Decimal // moving weighted average
	Frozen            bool
	FrozenReason      string
	LastMovementAt    *time.Time
}

// NewStockLevel creates an empty level for a key
func NewStockLevel(key StockKey) (*StockLevel, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &StockLevel{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Key:               key,
		Quantity:          decimal.Zero,
		BlockedQuantity:   decimal.Zero,
		InTransitQuantity: decimal.Zero,
		AverageUnitCost:   decimal.Zero,
	}, nil
}

// AvailableQuantity is on hand minus blocked
func (l *StockLevel) AvailableQuantity() decimal.Decimal {
	return l.Quantity.Sub(l.BlockedQuantity)
}

// TotalValue is quantity valued at the average cost
func (l *StockLevel) TotalValue() decimal.Decimal {
	return valueobject.RoundMoney(l.Quantity.Mul(l.AverageUnitCost))
}

// Receive books an inbound movement and recomputes the moving average:
// (oldQty x oldCost + q x c) / (oldQty + q) when the new quantity is
// positive, else the incoming cost.
func (l *StockLevel) Receive(quantity, unitCost decimal.Decimal, meta MovementMeta) (*StockMovement, error) {
	if err := l.ensureWritable(); err != nil {
		return nil, err
	}
	quantity = valueobject.RoundQuantity(quantity)
	if !quantity.IsPositive() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "receipt quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "unit cost cannot be negative")
	}
	if meta.Type == "" {
		meta.Type = MovementIn
	}

	oldQty, oldCost := l.Quantity, l.AverageUnitCost
	newQty := oldQty.Add(quantity)
	if newQty.IsPositive() {
		l.AverageUnitCost = valueobject.RoundCost(oldQty.Mul(oldCost).Add(quantity.Mul(unitCost)).Div(newQty))
	} else {
		l.AverageUnitCost = valueobject.RoundCost(unitCost)
	}

	m := newMovement(l.Key, meta, quantity, valueobject.RoundCost(unitCost), oldQty, l.AverageUnitCost)
	l.apply(m)
	l.AddDomainEvent(NewStockReceivedEvent(l, m))
	if !oldCost.Equal(l.AverageUnitCost) {
		l.AddDomainEvent(NewAverageCostChangedEvent(l, oldCost))
	}
	return m, nil
}

// Issue books an outbound movement valued at the current average cost,
// which the issue leaves unchanged. Without allowBackorder the quantity
// must not exceed AvailableQuantity.
func (l *StockLevel) Issue(quantity decimal.Decimal, allowBackorder bool, meta MovementMeta) (*StockMovement, error) {
	if err := l.ensureWritable(); err != nil {
		return nil, err
	}
	quantity = valueobject.RoundQuantity(quantity)
	if !quantity.IsPositive() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "issue quantity must be positive")
	}
	if !allowBackorder && quantity.GreaterThan(l.AvailableQuantity()) {
		return nil, shared.Errorf(shared.ErrInsufficientStock,
			"insufficient stock for %s: requested %s, available %s", l.Key, quantity, l.AvailableQuantity())
	}
	if meta.Type == "" {
		meta.Type = MovementOut
	}

	m := newMovement(l.Key, meta, quantity.Neg(), l.AverageUnitCost, l.Quantity, l.AverageUnitCost)
	l.apply(m)
	l.AddDomainEvent(NewStockIssuedEvent(l, m))
	return m, nil
}

// CountTo books the signed difference between a physical count and the
// on-hand quantity, valued at the current average cost. A zero difference
// still records the count.
func (l *StockLevel) CountTo(counted decimal.Decimal, meta MovementMeta) (*StockMovement, error) {
	if err := l.ensureWritable(); err != nil {
		return nil, err
	}
	counted = valueobject.RoundQuantity(counted)
	if counted.IsNegative() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "counted quantity cannot be negative")
	}
	meta.Type = MovementAdjustment
	m := newMovement(l.Key, meta, counted.Sub(l.Quantity), l.AverageUnitCost, l.Quantity, l.AverageUnitCost)
	l.apply(m)
	l.AddDomainEvent(NewStockAdjustedEvent(l, m))
	return m, nil
}

// AdjustBy books a signed adjustment directly. Positive deltas are valued
// like a receipt at unitCost; negative ones at the average cost.
func (l *StockLevel) AdjustBy(delta, unitCost decimal.Decimal, meta MovementMeta) (*StockMovement, error) {
	meta.Type = MovementAdjustment
	delta = valueobject.RoundQuantity(delta)
	switch {
	case delta.IsPositive():
		return l.Receive(delta, unitCost, meta)
	case delta.IsNegative():
		return l.Issue(delta.Neg(), false, meta)
	}
	return l.CountTo(l.Quantity, meta)
}

// Block holds quantity for a count or a quality check. The on-hand quantity
// and the movement ledger are untouched.
func (l *StockLevel) Block(quantity decimal.Decimal, reason, reference string) (*StockHold, error) {
	if err := l.ensureWritable(); err != nil {
		return nil, err
	}
	quantity = valueobject.RoundQuantity(quantity)
	if !quantity.IsPositive() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "block quantity must be positive")
	}
	if quantity.GreaterThan(l.AvailableQuantity()) {
		return nil, shared.Errorf(shared.ErrInsufficientStock,
			"cannot block %s of %s: available %s", quantity, l.Key, l.AvailableQuantity())
	}
	l.BlockedQuantity = l.BlockedQuantity.Add(quantity)
	l.touch()
	hold := NewStockHold(l.Key, quantity, reason, reference)
	l.AddDomainEvent(NewStockBlockedEvent(l, hold))
	return hold, nil
}

// Release gives back a hold created by Block
func (l *StockLevel) Release(hold *StockHold) error {
	if err := l.ensureWritable(); err != nil {
		return err
	}
	if !hold.Key.Equal(l.Key) {
		return shared.Errorf(shared.ErrInvalidInput, "hold %s belongs to another stock key", hold.ID)
	}
	if err := hold.Release(); err != nil {
		return err
	}
	l.BlockedQuantity = decimal.Max(decimal.Zero, l.BlockedQuantity.Sub(hold.Quantity))
	l.touch()
	l.AddDomainEvent(NewStockReleasedEvent(l, hold))
	return nil
}

// AddInTransit registers quantity dispatched toward this level
func (l *StockLevel) AddInTransit(quantity decimal.Decimal) error {
	if err := l.ensureWritable(); err != nil {
		return err
	}
	l.InTransitQuantity = l.InTransitQuantity.Add(quantity)
	l.touch()
	return nil
}

// RemoveInTransit clears quantity that has arrived or was cancelled
func (l *StockLevel) RemoveInTransit(quantity decimal.Decimal) error {
	if err := l.ensureWritable(); err != nil {
		return err
	}
	if quantity.GreaterThan(l.InTransitQuantity) {
		return shared.Errorf(shared.ErrInvalidState, "in-transit quantity %s is below %s", l.InTransitQuantity, quantity)
	}
	l.InTransitQuantity = l.InTransitQuantity.Sub(quantity)
	l.touch()
	return nil
}

// Freeze halts every mutation on the key until Reconcile
func (l *StockLevel) Freeze(reason string) {
	if l.Frozen {
		return
	}
	l.Frozen = true
	l.FrozenReason = reason
	l.touch()
}

// Reconcile sets the projection to the movement sum and unfreezes the key.
// It is the only way out of a frozen state and never touches movements.
func (l *StockLevel) Reconcile(movementSum decimal.Decimal) {
	l.Quantity = movementSum
	l.Frozen = false
	l.FrozenReason = ""
	l.touch()
}

// Drift returns quantity minus the movement sum
func (l *StockLevel) Drift(movementSum decimal.Decimal) decimal.Decimal {
	return l.Quantity.Sub(movementSum)
}

func (l *StockLevel) ensureWritable() error {
	if l.Frozen {
		return shared.Errorf(shared.ErrLedgerDrift, "stock key %s is frozen pending reconciliation: %s", l.Key, l.FrozenReason)
	}
	return nil
}

func (l *StockLevel) apply(m *StockMovement) {
	l.Quantity = m.BalanceAfter
	at := m.MovementDate
	l.LastMovementAt = &at
	l.touch()
}

func (l *StockLevel) touch() {
	l.IncrementVersion()
}
