package persistence

import (
	"context"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockHoldRepository implements StockHoldRepository using GORM
type GormStockHoldRepository struct {
	db *gorm.DB
}

// NewGormStockHoldRepository creates a new GormStockHoldRepository
func NewGormStockHoldRepository(db *gorm.DB) *GormStockHoldRepository {
	return &GormStockHoldRepository{db: db}
}

// FindByID finds a hold
func (r *GormStockHoldRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockHold, error) {
	var m models.StockHoldModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, "stock hold %s", id)
	}
	return m.ToDomain(), nil
}

// FindActiveByKey lists the active holds of a key
func (r *GormStockHoldRepository) FindActiveByKey(ctx context.Context, key inventory.StockKey) ([]*inventory.StockHold, error) {
	var rows []models.StockHoldModel
	if err := whereKey(r.db.WithContext(ctx), key).
		Where("status = ?", string(inventory.HoldActive)).
		Order("created_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*inventory.StockHold, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a hold
func (r *GormStockHoldRepository) Save(ctx context.Context, hold *inventory.StockHold) error {
	return r.db.WithContext(ctx).Save(models.StockHoldModelFromDomain(hold)).Error
}

var _ inventory.StockHoldRepository = (*GormStockHoldRepository)(nil)
