package models

import (
	"time"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// batchColumn stores "no batch" as the nil UUID
func batchColumn(id *uuid.UUID) uuid.UUID {
	return inventory.StockKey{BatchID: id}.BatchOrNil()
}

func batchField(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

// StockLevelModel is the persistence model for the StockLevel aggregate root
type StockLevelModel struct {
	AggregateModel
	MaterialID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_level_key,priority:1"`
	WarehouseID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_level_key,priority:2"`
	BatchID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_level_key,priority:3"`
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BlockedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	InTransitQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AverageUnitCost   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Frozen            bool            `gorm:"not null;default:false;index"`
	FrozenReason      string          `gorm:"type:varchar(500)"`
	LastMovementAt    *time.Time
}

// TableName returns the table name for GORM
func (StockLevelModel) TableName() string {
	return "stock_levels"
}

// ToDomain converts the persistence model to a domain StockLevel
func (m *StockLevelModel) ToDomain() *inventory.StockLevel {
	return &inventory.StockLevel{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Key: inventory.StockKey{
			MaterialID:  m.MaterialID,
			WarehouseID: m.WarehouseID,
			BatchID:     batchField(m.BatchID),
		},
		Quantity:          m.Quantity,
		BlockedQuantity:   m.BlockedQuantity,
		InTransitQuantity: m.InTransitQuantity,
		AverageUnitCost:   m.AverageUnitCost,
		Frozen:            m.Frozen,
		FrozenReason:      m.FrozenReason,
		LastMovementAt:    m.LastMovementAt,
	}
}

// StockLevelModelFromDomain creates a persistence model from a domain StockLevel
func StockLevelModelFromDomain(l *inventory.StockLevel) *StockLevelModel {
	m := &StockLevelModel{
		MaterialID:        l.Key.MaterialID,
		WarehouseID:       l.Key.WarehouseID,
		BatchID:           batchColumn(l.Key.BatchID),
		Quantity:          l.Quantity,
		BlockedQuantity:   l.BlockedQuantity,
		InTransitQuantity: l.InTransitQuantity,
		AverageUnitCost:   l.AverageUnitCost,
		Frozen:            l.Frozen,
		FrozenReason:      l.FrozenReason,
		LastMovementAt:    l.LastMovementAt,
	}
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	return m
}

// StockMovementModel is the persistence model for the append-only ledger
type StockMovementModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	Seq               int64           `gorm:"not null;index"`
	MaterialID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movement_key,priority:1"`
	WarehouseID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movement_key,priority:2"`
	BatchID           uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movement_key,priority:3"`
	MovementType      string          `gorm:"type:varchar(20);not null"`
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TotalCost         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BalanceBefore     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AverageCostAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReferenceDocument string          `gorm:"type:varchar(100);index"`
	ReversalOfID      *uuid.UUID      `gorm:"type:uuid;index"`
	CounterpartID     *uuid.UUID      `gorm:"type:uuid;index"`
	PeerWarehouseID   *uuid.UUID      `gorm:"type:uuid"`
	MovementDate      time.Time       `gorm:"not null"`
	CreatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement
func (m *StockMovementModel) ToDomain() *inventory.StockMovement {
	return &inventory.StockMovement{
		ID:                m.ID,
		MaterialID:        m.MaterialID,
		WarehouseID:       m.WarehouseID,
		BatchID:           batchField(m.BatchID),
		Type:              inventory.MovementType(m.MovementType),
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
		CreatedAt:         m.CreatedAt,
	}
}

// StockMovementModelFromDomain creates a persistence model from a domain
// StockMovement. seq orders movements appended in the same instant.
func StockMovementModelFromDomain(mv *inventory.StockMovement, seq int64) *StockMovementModel {
	return &StockMovementModel{
		ID:                mv.ID,
		Seq:               seq,
		MaterialID:        mv.MaterialID,
		WarehouseID:       mv.WarehouseID,
		BatchID:           batchColumn(mv.BatchID),
		MovementType:      string(mv.Type),
		Quantity:          mv.Quantity,
		UnitCost:          mv.UnitCost,
		TotalCost:         mv.TotalCost,
		BalanceBefore:     mv.BalanceBefore,
		BalanceAfter:      mv.BalanceAfter,
		AverageCostAfter:  mv.AverageCostAfter,
		ReferenceDocument: mv.ReferenceDocument,
		ReversalOfID:      mv.ReversalOfID,
		CounterpartID:     mv.CounterpartID,
		PeerWarehouseID:   mv.PeerWarehouseID,
		MovementDate:      mv.MovementDate,
		CreatedAt:         mv.CreatedAt,
	}
}

// BatchModel is the persistence model for a batch
type BatchModel struct {
	BaseModel
	MaterialID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_batch_number,priority:1"`
	BatchNumber      string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_batch_number,priority:2"`
	ManufacturedAt   *time.Time
	ExpiresAt        *time.Time `gorm:"index"`
	SupplierBatchRef string     `gorm:"type:varchar(100)"`
	Status           string     `gorm:"type:varchar(20);not null;default:'AVAILABLE'"`
	Active           bool       `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// ToDomain converts the persistence model to a domain Batch
func (m *BatchModel) ToDomain() *inventory.Batch {
	return &inventory.Batch{
		BaseEntity:       m.BaseModel.ToDomain(),
		MaterialID:       m.MaterialID,
		BatchNumber:      m.BatchNumber,
		ManufacturedAt:   m.ManufacturedAt,
		ExpiresAt:        m.ExpiresAt,
		SupplierBatchRef: m.SupplierBatchRef,
		Status:           inventory.BatchStatus(m.Status),
		Active:           m.Active,
	}
}

// BatchModelFromDomain creates a persistence model from a domain Batch
func BatchModelFromDomain(b *inventory.Batch) *BatchModel {
	m := &BatchModel{
		MaterialID:       b.MaterialID,
		BatchNumber:      b.BatchNumber,
		ManufacturedAt:   b.ManufacturedAt,
		ExpiresAt:        b.ExpiresAt,
		SupplierBatchRef: b.SupplierBatchRef,
		Status:           string(b.Status),
		Active:           b.Active,
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// StockHoldModel is the persistence model for a stock hold
type StockHoldModel struct {
	BaseModel
	MaterialID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_hold_key,priority:1"`
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_hold_key,priority:2"`
	BatchID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_hold_key,priority:3"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reason      string          `gorm:"type:varchar(200)"`
	Reference   string          `gorm:"type:varchar(100)"`
	Status      string          `gorm:"type:varchar(20);not null;index"`
	ReleasedAt  *time.Time
}

// TableName returns the table name for GORM
func (StockHoldModel) TableName() string {
	return "stock_holds"
}

// ToDomain converts the persistence model to a domain StockHold
func (m *StockHoldModel) ToDomain() *inventory.StockHold {
	return &inventory.StockHold{
		BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Key: inventory.StockKey{
			MaterialID:  m.MaterialID,
			WarehouseID: m.WarehouseID,
			BatchID:     batchField(m.BatchID),
		},
		Quantity:   m.Quantity,
		Reason:     m.Reason,
		Reference:  m.Reference,
		Status:     inventory.HoldStatus(m.Status),
		ReleasedAt: m.ReleasedAt,
	}
}

// StockHoldModelFromDomain creates a persistence model from a domain StockHold
func StockHoldModelFromDomain(h *inventory.StockHold) *StockHoldModel {
	m := &StockHoldModel{
		MaterialID:  h.Key.MaterialID,
		WarehouseID: h.Key.WarehouseID,
		BatchID:     batchColumn(h.Key.BatchID),
		Quantity:    h.Quantity,
		Reason:      h.Reason,
		Reference:   h.Reference,
		Status:      string(h.Status),
		ReleasedAt:  h.ReleasedAt,
	}
	m.FromDomainBaseEntity(h.BaseEntity)
	return m
}
