package persistence

import (
	"context"

	"github.com/erp/posting/internal/domain/tax"
	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTaxRuleRepository implements TaxRuleRepository using GORM
type GormTaxRuleRepository struct {
	db *gorm.DB
}

// NewGormTaxRuleRepository creates a new GormTaxRuleRepository
func NewGormTaxRuleRepository(db *gorm.DB) *GormTaxRuleRepository {
	return &GormTaxRuleRepository{db: db}
}

// FindAll returns every stored rule, active or not
func (r *GormTaxRuleRepository) FindAll(ctx context.Context) ([]*tax.TaxRule, error) {
	var rows []models.TaxRuleModel
	if err := r.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*tax.TaxRule, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a rule
func (r *GormTaxRuleRepository) Save(ctx context.Context, rule *tax.TaxRule) error {
	return r.db.WithContext(ctx).Save(models.TaxRuleModelFromDomain(rule)).Error
}

var _ tax.TaxRuleRepository = (*GormTaxRuleRepository)(nil)
