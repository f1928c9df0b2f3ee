package persistence

import (
	"context"
	"errors"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockLevelRepository implements StockLevelRepository using GORM
type GormStockLevelRepository struct {
	db *gorm.DB
}

// NewGormStockLevelRepository creates a new GormStockLevelRepository
func NewGormStockLevelRepository(db *gorm.DB) *GormStockLevelRepository {
	return &GormStockLevelRepository{db: db}
}

func whereKey(db *gorm.DB, key inventory.StockKey) *gorm.DB {
	return db.Where("material_id = ? AND warehouse_id = ? AND batch_id = ?", key.MaterialID, key.WarehouseID, key.BatchOrNil())
}

// FindByKey finds the level of a key
func (r *GormStockLevelRepository) FindByKey(ctx context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	var m models.StockLevelModel
	if err := whereKey(r.db.WithContext(ctx), key).First(&m).Error; err != nil {
		return nil, mapNotFound(err, "stock level %s", key)
	}
	return m.ToDomain(), nil
}

// GetOrCreate returns the level of a key, inserting an empty one if needed.
// A concurrent insert of the same key is absorbed by the unique index.
func (r *GormStockLevelRepository) GetOrCreate(ctx context.Context, key inventory.StockKey) (*inventory.StockLevel, error) {
	level, err := r.FindByKey(ctx, key)
	if err == nil || !errors.Is(err, shared.ErrNotFound) {
		return level, err
	}
	level, err = inventory.NewStockLevel(key)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "material_id"}, {Name: "warehouse_id"}, {Name: "batch_id"}},
			DoNothing: true,
		}).
		Create(models.StockLevelModelFromDomain(level)).Error; err != nil {
		return nil, err
	}
	return r.FindByKey(ctx, key)
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormStockLevelRepository) SaveWithLock(ctx context.Context, level *inventory.StockLevel) error {
	result := r.db.WithContext(ctx).
		Model(&models.StockLevelModel{}).
		Where("id = ? AND version = ?", level.ID, level.Version-1).
		Updates(map[string]any{
			"quantity":            level.Quantity,
			"blocked_quantity":    level.BlockedQuantity,
			"in_transit_quantity": level.InTransitQuantity,
			"average_unit_cost":   level.AverageUnitCost,
			"frozen":              level.Frozen,
			"frozen_reason":       level.FrozenReason,
			"last_movement_at":    level.LastMovementAt,
			"version":             level.Version,
			"updated_at":          level.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return conflict("stock level %s", level.Key)
	}
	return nil
}

// List returns levels matching the filter ordered by key
func (r *GormStockLevelRepository) List(ctx context.Context, filter inventory.LevelFilter) ([]*inventory.StockLevel, error) {
	query := r.db.WithContext(ctx).Model(&models.StockLevelModel{})
	if filter.MaterialID != nil {
		query = query.Where("material_id = ?", *filter.MaterialID)
	}
	if filter.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.FrozenOnly {
		query = query.Where("frozen = ?", true)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var rows []models.StockLevelModel
	if err := query.Order("material_id, warehouse_id, batch_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*inventory.StockLevel, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// FrozenLevelCount counts the levels frozen by ledger drift
func (r *GormStockLevelRepository) FrozenLevelCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.StockLevelModel{}).Where("frozen = ?", true).Count(&n).Error
	return n, err
}

// BlockedQuantityByWarehouse sums held quantity per warehouse
func (r *GormStockLevelRepository) BlockedQuantityByWarehouse(ctx context.Context) (map[string]decimal.Decimal, error) {
	var rows []struct {
		WarehouseID string
		Blocked     decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.StockLevelModel{}).
		Select("warehouse_id, SUM(blocked_quantity) AS blocked").
		Where("blocked_quantity > 0").
		Group("warehouse_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.WarehouseID] = row.Blocked
	}
	return out, nil
}

var _ inventory.StockLevelRepository = (*GormStockLevelRepository)(nil)
