package persistence

import (
	"context"
	"time"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/shared/valueobject"
	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormStockMovementRepository implements the append-only movement ledger
// using GORM. It never issues UPDATE or DELETE.
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Append inserts movements in booking order
func (r *GormStockMovementRepository) Append(ctx context.Context, movements ...*inventory.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	base := time.Now().UnixNano()
	rows := make([]*models.StockMovementModel, len(movements))
	for i, m := range movements {
		rows[i] = models.StockMovementModelFromDomain(m, base+int64(i))
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// FindByID finds a movement
func (r *GormStockMovementRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.StockMovement, error) {
	var m models.StockMovementModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, "stock movement %s", id)
	}
	return m.ToDomain(), nil
}

// FindByKey lists the movements of a key in booking order. limit <= 0
// returns all of them.
func (r *GormStockMovementRepository) FindByKey(ctx context.Context, key inventory.StockKey, limit int) ([]*inventory.StockMovement, error) {
	query := whereKey(r.db.WithContext(ctx), key).Order("seq")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(query)
}

// FindByReference lists movements booked for a reference document
func (r *GormStockMovementRepository) FindByReference(ctx context.Context, reference string) ([]*inventory.StockMovement, error) {
	return r.find(r.db.WithContext(ctx).Where("reference_document = ?", reference).Order("seq"))
}

// FindByCounterpart finds the movement recorded as the other leg of id
func (r *GormStockMovementRepository) FindByCounterpart(ctx context.Context, id uuid.UUID) (*inventory.StockMovement, error) {
	var m models.StockMovementModel
	if err := r.db.WithContext(ctx).Where("counterpart_id = ?", id).Order("seq").First(&m).Error; err != nil {
		return nil, mapNotFound(err, "counterpart of movement %s", id)
	}
	return m.ToDomain(), nil
}

// SumQuantity returns the signed sum of the key's movements
func (r *GormStockMovementRepository) SumQuantity(ctx context.Context, key inventory.StockKey) (decimal.Decimal, error) {
	return r.sum(whereKey(r.db.WithContext(ctx).Model(&models.StockMovementModel{}), key))
}

// CountByKey returns how many movements the key has
func (r *GormStockMovementRepository) CountByKey(ctx context.Context, key inventory.StockKey) (int64, error) {
	var n int64
	err := whereKey(r.db.WithContext(ctx).Model(&models.StockMovementModel{}), key).Count(&n).Error
	return n, err
}

// SumQuantityByBatch returns the on-hand total of a batch over all warehouses
func (r *GormStockMovementRepository) SumQuantityByBatch(ctx context.Context, batchID uuid.UUID) (decimal.Decimal, error) {
	return r.sum(r.db.WithContext(ctx).Model(&models.StockMovementModel{}).Where("batch_id = ?", batchID))
}

func (r *GormStockMovementRepository) sum(query *gorm.DB) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	if err := query.Select("SUM(quantity)").Row().Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return valueobject.RoundQuantity(sum.Decimal), nil
}

func (r *GormStockMovementRepository) find(query *gorm.DB) ([]*inventory.StockMovement, error) {
	var rows []models.StockMovementModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*inventory.StockMovement, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var _ inventory.StockMovementRepository = (*GormStockMovementRepository)(nil)
