package inventory

import (
	"time"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchInput names a batch by number on a request. Unknown numbers create
// the batch on receipt.
type BatchInput struct {
	BatchNumber      string     `json:"batch_number" binding:"required,max=50"`
	ManufacturedAt   *time.Time `json:"manufactured_at"`
	ExpiresAt        *time.Time `json:"expires_at"`
	SupplierBatchRef string     `json:"supplier_batch_ref" binding:"max=100"`
}

func (b *BatchInput) ref() *inventory.BatchRef {
	if b == nil {
		return nil
	}
	return &inventory.BatchRef{
		BatchNumber:      b.BatchNumber,
		ManufacturedAt:   b.ManufacturedAt,
		ExpiresAt:        b.ExpiresAt,
		SupplierBatchRef: b.SupplierBatchRef,
	}
}

// StockKeyInput identifies a stock position on a request. A batch may be
// given by ID or by number.
type StockKeyInput struct {
	MaterialID  uuid.UUID   `json:"material_id" form:"material_id" binding:"required"`
	WarehouseID uuid.UUID   `json:"warehouse_id" form:"warehouse_id" binding:"required"`
	BatchID     *uuid.UUID  `json:"batch_id" form:"batch_id"`
	Batch       *BatchInput `json:"batch"`
}

// ReceiveRequest books an inbound movement
type ReceiveRequest struct {
	StockKeyInput
	Quantity     decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	UnitCost     decimal.Decimal `json:"unit_cost" binding:"gte=0"`
	Reference    string          `json:"reference" binding:"required,max=100"`
	MovementDate *time.Time      `json:"movement_date"`
}

// IssueRequest books an outbound movement
type IssueRequest struct {
	StockKeyInput
	Quantity       decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	AllowBackorder bool            `json:"allow_backorder"`
	Reference      string          `json:"reference" binding:"required,max=100"`
	MovementDate   *time.Time      `json:"movement_date"`
}

// TransferRequest moves stock between warehouses. With InTransit the
// destination only registers the quantity as in transit until
// CompleteTransfer books the receipt.
type TransferRequest struct {
	StockKeyInput
	DestWarehouseID uuid.UUID       `json:"dest_warehouse_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	InTransit       bool            `json:"in_transit"`
	Reference       string          `json:"reference" binding:"required,max=100"`
	MovementDate    *time.Time      `json:"movement_date"`
}

// AdjustRequest corrects a level. Exactly one of CountedQuantity and Delta
// is set: a count books the difference to the counted figure, a delta is
// booked as given.
type AdjustRequest struct {
	StockKeyInput
	CountedQuantity *decimal.Decimal `json:"counted_quantity"`
	Delta           *decimal.Decimal `json:"delta"`
	UnitCost        decimal.Decimal  `json:"unit_cost"`
	Reference       string           `json:"reference" binding:"required,max=100"`
	MovementDate    *time.Time       `json:"movement_date"`
}

// BlockRequest holds quantity on a key
type BlockRequest struct {
	StockKeyInput
	Quantity  decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	Reason    string          `json:"reason" binding:"required,max=255"`
	Reference string          `json:"reference" binding:"max=100"`
}

// ReconcileRequest rebuilds a frozen level from its movements
type ReconcileRequest struct {
	StockKeyInput
	Operator string `json:"operator" binding:"required,max=100"`
	Note     string `json:"note" binding:"max=500"`
}

// LevelListFilter narrows a level listing
type LevelListFilter struct {
	MaterialID  *uuid.UUID `form:"material_id"`
	WarehouseID *uuid.UUID `form:"warehouse_id"`
	FrozenOnly  bool       `form:"frozen_only"`
	Page        int        `form:"page" binding:"omitempty,min=1"`
	PageSize    int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// StockLevelResponse represents a stock level in API responses
type StockLevelResponse struct {
	ID                uuid.UUID       `json:"id"`
	MaterialID        uuid.UUID       `json:"material_id"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	BatchID           *uuid.UUID      `json:"batch_id,omitempty"`
	Quantity          decimal.Decimal `json:"quantity"`
	BlockedQuantity   decimal.Decimal `json:"blocked_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	InTransitQuantity decimal.Decimal `json:"in_transit_quantity"`
	AverageUnitCost   decimal.Decimal `json:"average_unit_cost"`
	TotalValue        decimal.Decimal `json:"total_value"`
	Frozen            bool            `json:"frozen"`
	FrozenReason      string          `json:"frozen_reason,omitempty"`
	LastMovementAt    *time.Time      `json:"last_movement_at,omitempty"`
	Version           int             `json:"version"`
}

// ToStockLevelResponse converts a domain level
func ToStockLevelResponse(l *inventory.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		ID:                l.ID,
		MaterialID:        l.Key.MaterialID,
		WarehouseID:       l.Key.WarehouseID,
		BatchID:           l.Key.BatchID,
		Quantity:          l.Quantity,
		BlockedQuantity:   l.BlockedQuantity,
		AvailableQuantity: l.AvailableQuantity(),
		InTransitQuantity: l.InTransitQuantity,
		AverageUnitCost:   l.AverageUnitCost,
		TotalValue:        l.TotalValue(),
		Frozen:            l.Frozen,
		FrozenReason:      l.FrozenReason,
		LastMovementAt:    l.LastMovementAt,
		Version:           l.Version,
	}
}

// MovementResponse represents a movement in API responses
type MovementResponse struct {
	ID                uuid.UUID       `json:"id"`
	MaterialID        uuid.UUID       `json:"material_id"`
	WarehouseID       uuid.UUID       `json:"warehouse_id"`
	BatchID           *uuid.UUID      `json:"batch_id,omitempty"`
	Type              string          `json:"type"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	TotalCost         decimal.Decimal `json:"total_cost"`
	BalanceBefore     decimal.Decimal `json:"balance_before"`
	BalanceAfter      decimal.Decimal `json:"balance_after"`
	AverageCostAfter  decimal.Decimal `json:"average_cost_after"`
	ReferenceDocument string          `json:"reference_document"`
	ReversalOfID      *uuid.UUID      `json:"reversal_of_id,omitempty"`
	CounterpartID     *uuid.UUID      `json:"counterpart_id,omitempty"`
	PeerWarehouseID   *uuid.UUID      `json:"peer_warehouse_id,omitempty"`
	MovementDate      time.Time       `json:"movement_date"`
}

// ToMovementResponse converts a domain movement
func ToMovementResponse(m *inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:                m.ID,
		MaterialID:        m.MaterialID,
		WarehouseID:       m.WarehouseID,
		BatchID:           m.BatchID,
		Type:              string(m.Type),
		Quantity:          m.Quantity,
		UnitCost:          m.UnitCost,
		TotalCost:         m.TotalCost,
		BalanceBefore:     m.BalanceBefore,
		BalanceAfter:      m.BalanceAfter,
		AverageCostAfter:  m.AverageCostAfter,
		ReferenceDocument: m.ReferenceDocument,
		ReversalOfID:      m.ReversalOfID,
		CounterpartID:     m.CounterpartID,
		PeerWarehouseID:   m.PeerWarehouseID,
		MovementDate:      m.MovementDate,
	}
}

// ToMovementResponses converts a slice of movements
func ToMovementResponses(ms []*inventory.StockMovement) []MovementResponse {
	out := make([]MovementResponse, len(ms))
	for i, m := range ms {
		out[i] = ToMovementResponse(m)
	}
	return out
}

// OperationResponse is returned by every ledger mutation. NetValue is the
// signed sum of the movement values: minus the cost of goods for an issue,
// the value difference for an adjustment.
type OperationResponse struct {
	Levels    []StockLevelResponse `json:"levels"`
	Movements []MovementResponse   `json:"movements"`
	NetValue  decimal.Decimal      `json:"net_value"`
	HoldID    *uuid.UUID           `json:"hold_id,omitempty"`
}

// VerifyResponse reports a conservation check
type VerifyResponse struct {
	Key         inventory.StockKey `json:"key"`
	Quantity    decimal.Decimal    `json:"quantity"`
	MovementSum decimal.Decimal    `json:"movement_sum"`
	Movements   int64              `json:"movements"`
	Consistent  bool               `json:"consistent"`
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID               uuid.UUID  `json:"id"`
	MaterialID       uuid.UUID  `json:"material_id"`
	BatchNumber      string     `json:"batch_number"`
	ManufacturedAt   *time.Time `json:"manufactured_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	SupplierBatchRef string     `json:"supplier_batch_ref,omitempty"`
	Status           string     `json:"status"`
	Active           bool       `json:"active"`
}

// ToBatchResponse converts a domain batch
func ToBatchResponse(b *inventory.Batch) BatchResponse {
	return BatchResponse{
		ID:               b.ID,
		MaterialID:       b.MaterialID,
		BatchNumber:      b.BatchNumber,
		ManufacturedAt:   b.ManufacturedAt,
		ExpiresAt:        b.ExpiresAt,
		SupplierBatchRef: b.SupplierBatchRef,
		Status:           string(b.Status),
		Active:           b.Active,
	}
}
