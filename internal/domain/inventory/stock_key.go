package inventory

import (
	"fmt"
	"strings"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
)

// StockKey identifies one independently locked stock position:
// a material in a warehouse, optionally narrowed to a batch.
type StockKey struct {
	MaterialID  uuid.UUID  `json:"material_id"`
	WarehouseID uuid.UUID  `json:"warehouse_id"`
	BatchID     *uuid.UUID `json:"batch_id,omitempty"`
}

// NewStockKey builds a key and rejects nil identifiers
func NewStockKey(materialID, warehouseID uuid.UUID, batchID *uuid.UUID) (StockKey, error) {
	k := StockKey{MaterialID: materialID, WarehouseID: warehouseID, BatchID: batchID}
	return k, k.Validate()
}

// Validate checks that material and warehouse are set
func (k StockKey) Validate() error {
	if k.MaterialID == uuid.Nil {
		return shared.Errorf(shared.ErrInvalidInput, "material ID cannot be empty")
	}
	if k.WarehouseID == uuid.Nil {
		return shared.Errorf(shared.ErrInvalidInput, "warehouse ID cannot be empty")
	}
	if k.BatchID != nil && *k.BatchID == uuid.Nil {
		return shared.Errorf(shared.ErrInvalidInput, "batch ID cannot be the nil UUID")
	}
	return nil
}

// BatchOrNil returns the batch ID or uuid.Nil for unbatched stock
func (k StockKey) BatchOrNil() uuid.UUID {
	if k.BatchID == nil {
		return uuid.Nil
	}
	return *k.BatchID
}

// WithWarehouse returns the same material and batch in another warehouse
func (k StockKey) WithWarehouse(warehouseID uuid.UUID) StockKey {
	k.WarehouseID = warehouseID
	return k
}

// LockKey is the name used for mutual exclusion on this key
func (k StockKey) LockKey() string {
	batch := "-"
	if k.BatchID != nil {
		batch = k.BatchID.String()
	}
	return fmt.Sprintf("stock:%s:%s:%s", k.MaterialID, k.WarehouseID, batch)
}

// ParseLockKey reverses LockKey
func ParseLockKey(s string) (StockKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 || parts[0] != "stock" {
		return StockKey{}, shared.Errorf(shared.ErrInvalidInput, "malformed stock key %q", s)
	}
	material, err := uuid.Parse(parts[1])
	if err != nil {
		return StockKey{}, shared.Errorf(shared.ErrInvalidInput, "malformed stock key %q", s)
	}
	warehouse, err := uuid.Parse(parts[2])
	if err != nil {
		return StockKey{}, shared.Errorf(shared.ErrInvalidInput, "malformed stock key %q", s)
	}
	var batch *uuid.UUID
	if parts[3] != "-" {
		b, err := uuid.Parse(parts[3])
		if err != nil {
			return StockKey{}, shared.Errorf(shared.ErrInvalidInput, "malformed stock key %q", s)
		}
		batch = &b
	}
	return NewStockKey(material, warehouse, batch)
}

// String implements fmt.Stringer
func (k StockKey) String() string {
	return k.LockKey()
}

// Equal compares two keys by value
func (k StockKey) Equal(o StockKey) bool {
	return k.MaterialID == o.MaterialID && k.WarehouseID == o.WarehouseID && k.BatchOrNil() == o.BatchOrNil()
}
