package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LevelFilter narrows a stock level listing. Zero values match everything.
type LevelFilter struct {
	MaterialID  *uuid.UUID
	WarehouseID *uuid.UUID
	FrozenOnly  bool
	Limit       int
	Offset      int
}

// StockLevelRepository persists stock level projections
type StockLevelRepository interface {
	// FindByKey finds the level of a key, shared.ErrNotFound if none
	FindByKey(ctx context.Context, key StockKey) (*StockLevel, error)

	// GetOrCreate returns the level of a key, inserting an empty one if needed
	GetOrCreate(ctx context.Context, key StockKey) (*StockLevel, error)

	// SaveWithLock updates a level whose Version was incremented once since it
	// was loaded; fails with CONCURRENCY_CONFLICT otherwise
	SaveWithLock(ctx context.Context, level *StockLevel) error

	// List returns levels matching the filter ordered by key
	List(ctx context.Context, filter LevelFilter) ([]*StockLevel, error)
}

// StockMovementRepository is the append-only movement ledger. It has no
// update or delete.
type StockMovementRepository interface {
	// Append inserts movements
	Append(ctx context.Context, movements ...*StockMovement) error

	// FindByID finds a movement
	FindByID(ctx context.Context, id uuid.UUID) (*StockMovement, error)

	// FindByKey lists the movements of a key in booking order
	FindByKey(ctx context.Context, key StockKey, limit int) ([]*StockMovement, error)

	// FindByReference lists movements booked for a reference document
	FindByReference(ctx context.Context, reference string) ([]*StockMovement, error)

	// FindByCounterpart finds the movement recorded as the other leg of id
	FindByCounterpart(ctx context.Context, id uuid.UUID) (*StockMovement, error)

	// SumQuantity returns the signed sum of the key's movements
	SumQuantity(ctx context.Context, key StockKey) (decimal.Decimal, error)

	// CountByKey returns how many movements the key has
	CountByKey(ctx context.Context, key StockKey) (int64, error)

	// SumQuantityByBatch returns the on-hand total of a batch over all warehouses
	SumQuantityByBatch(ctx context.Context, batchID uuid.UUID) (decimal.Decimal, error)
}

// BatchRepository persists batches
type BatchRepository interface {
	// FindByID finds a batch
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindByNumber finds a batch by its natural identity
	FindByNumber(ctx context.Context, materialID uuid.UUID, batchNumber string) (*Batch, error)

	// FindExpirable lists active batches not yet expired or consumed whose
	// expiration date is before the given time
	FindExpirable(ctx context.Context, before time.Time, limit int) ([]*Batch, error)

	// Save creates or updates a batch
	Save(ctx context.Context, batch *Batch) error
}

// StockHoldRepository persists holds
type StockHoldRepository interface {
	// FindByID finds a hold
	FindByID(ctx context.Context, id uuid.UUID) (*StockHold, error)

	// FindActiveByKey lists the active holds of a key
	FindActiveByKey(ctx context.Context, key StockKey) ([]*StockHold, error)

	// Save creates or updates a hold
	Save(ctx context.Context, hold *StockHold) error
}
