package inventory

import (
	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeStockLevel is the aggregate type of stock events
const AggregateTypeStockLevel = "StockLevel"

// Event type constants
const (
	EventTypeStockReceived       = "inventory.stock_received"
	EventTypeStockIssued         = "inventory.stock_issued"
	EventTypeStockAdjusted       = "inventory.stock_adjusted"
	EventTypeStockBlocked        = "inventory.stock_blocked"
	EventTypeStockReleased       = "inventory.stock_released"
	EventTypeAverageCostChanged  = "inventory.average_cost_changed"
	EventTypeLedgerDriftDetected = "inventory.ledger_drift_detected"
	EventTypeLedgerReconciled    = "inventory.ledger_reconciled"
)

// StockMovedEvent is raised for every movement booked on a level
type StockMovedEvent struct {
	shared.BaseDomainEvent
	Key          StockKey        `json:"key"`
	MovementID   uuid.UUID       `json:"movement_id"`
	MovementType MovementType    `json:"movement_type"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Reference    string          `json:"reference"`
}

func newStockMovedEvent(eventType string, l *StockLevel, m *StockMovement) *StockMovedEvent {
	return &StockMovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeStockLevel, l.ID),
		Key:             l.Key,
		MovementID:      m.ID,
		MovementType:    m.Type,
		Quantity:        m.Quantity,
		UnitCost:        m.UnitCost,
		BalanceAfter:    m.BalanceAfter,
		Reference:       m.ReferenceDocument,
	}
}

// NewStockReceivedEvent creates the event for an inbound movement
func NewStockReceivedEvent(l *StockLevel, m *StockMovement) *StockMovedEvent {
	return newStockMovedEvent(EventTypeStockReceived, l, m)
}

// NewStockIssuedEvent creates the event for an outbound movement
func NewStockIssuedEvent(l *StockLevel, m *StockMovement) *StockMovedEvent {
	return newStockMovedEvent(EventTypeStockIssued, l, m)
}

// NewStockAdjustedEvent creates the event for a count adjustment
func NewStockAdjustedEvent(l *StockLevel, m *StockMovement) *StockMovedEvent {
	return newStockMovedEvent(EventTypeStockAdjusted, l, m)
}

// StockHoldEvent is raised when quantity is blocked or released
type StockHoldEvent struct {
	shared.BaseDomainEvent
	Key      StockKey        `json:"key"`
	HoldID   uuid.UUID       `json:"hold_id"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason"`
}

// NewStockBlockedEvent creates a block event
func NewStockBlockedEvent(l *StockLevel, h *StockHold) *StockHoldEvent {
	return &StockHoldEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockBlocked, AggregateTypeStockLevel, l.ID),
		Key:             l.Key,
		HoldID:          h.ID,
		Quantity:        h.Quantity,
		Reason:          h.Reason,
	}
}

// NewStockReleasedEvent creates a release event
func NewStockReleasedEvent(l *StockLevel, h *StockHold) *StockHoldEvent {
	e := NewStockBlockedEvent(l, h)
	e.Type = EventTypeStockReleased
	return e
}

// AverageCostChangedEvent is raised when a receipt moves the average cost
type AverageCostChangedEvent struct {
	shared.BaseDomainEvent
	Key     StockKey        `json:"key"`
	OldCost decimal.Decimal `json:"old_cost"`
	NewCost decimal.Decimal `json:"new_cost"`
}

// NewAverageCostChangedEvent creates a cost change event
func NewAverageCostChangedEvent(l *StockLevel, oldCost decimal.Decimal) *AverageCostChangedEvent {
	return &AverageCostChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAverageCostChanged, AggregateTypeStockLevel, l.ID),
		Key:             l.Key,
		OldCost:         oldCost,
		NewCost:         l.AverageUnitCost,
	}
}

// LedgerDriftEvent is raised when a level disagrees with its movements, and
// again when an operator reconciles it.
type LedgerDriftEvent struct {
	shared.BaseDomainEvent
	Key         StockKey        `json:"key"`
	LevelQty    decimal.Decimal `json:"level_quantity"`
	MovementSum decimal.Decimal `json:"movement_sum"`
	Operator    string          `json:"operator,omitempty"`
}

// NewLedgerDriftDetectedEvent creates a drift event
func NewLedgerDriftDetectedEvent(l *StockLevel, movementSum decimal.Decimal) *LedgerDriftEvent {
	return &LedgerDriftEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerDriftDetected, AggregateTypeStockLevel, l.ID),
		Key:             l.Key,
		LevelQty:        l.Quantity,
		MovementSum:     movementSum,
	}
}

// NewLedgerReconciledEvent creates a reconciliation event
func NewLedgerReconciledEvent(l *StockLevel, previousQty, movementSum decimal.Decimal, operator string) *LedgerDriftEvent {
	return &LedgerDriftEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeLedgerReconciled, AggregateTypeStockLevel, l.ID),
		Key:             l.Key,
		LevelQty:        previousQty,
		MovementSum:     movementSum,
		Operator:        operator,
	}
}
