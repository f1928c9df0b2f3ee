package persistence

import (
	"context"

	"github.com/erp/posting/internal/domain/account"
	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormAccountRepository implements AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindAll returns every account ordered by code
func (r *GormAccountRepository) FindAll(ctx context.Context) ([]*account.Account, error) {
	var rows []models.AccountModel
	if err := r.db.WithContext(ctx).Order("code").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*account.Account, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// FindByID finds an account by ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	var m models.AccountModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, "account %s", id)
	}
	return m.ToDomain(), nil
}

// Save creates or updates an account
func (r *GormAccountRepository) Save(ctx context.Context, a *account.Account) error {
	return r.db.WithContext(ctx).Save(models.AccountModelFromDomain(a)).Error
}

var _ account.AccountRepository = (*GormAccountRepository)(nil)
