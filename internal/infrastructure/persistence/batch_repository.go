package persistence

import (
	"context"
	"time"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBatchRepository implements BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// FindByID finds a batch
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var m models.BatchModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, "batch %s", id)
	}
	return m.ToDomain(), nil
}

// FindByNumber finds a batch by material and number
func (r *GormBatchRepository) FindByNumber(ctx context.Context, materialID uuid.UUID, batchNumber string) (*inventory.Batch, error) {
	var m models.BatchModel
	if err := r.db.WithContext(ctx).
		Where("material_id = ? AND batch_number = ?", materialID, batchNumber).
		First(&m).Error; err != nil {
		return nil, mapNotFound(err, "batch %s", batchNumber)
	}
	return m.ToDomain(), nil
}

// FindExpirable lists active batches past their expiration date that are
// not yet expired or consumed
func (r *GormBatchRepository) FindExpirable(ctx context.Context, before time.Time, limit int) ([]*inventory.Batch, error) {
	query := r.db.WithContext(ctx).
		Where("active = ? AND status IN ? AND expires_at IS NOT NULL AND expires_at < ?",
			true, []string{string(inventory.BatchAvailable), string(inventory.BatchBlocked)}, before).
		Order("expires_at")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.BatchModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*inventory.Batch, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a batch
func (r *GormBatchRepository) Save(ctx context.Context, batch *inventory.Batch) error {
	if err := r.db.WithContext(ctx).Save(models.BatchModelFromDomain(batch)).Error; err != nil {
		return mapDuplicate(err, "batch %s", batch.BatchNumber)
	}
	return nil
}

var _ inventory.BatchRepository = (*GormBatchRepository)(nil)
