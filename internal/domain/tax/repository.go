package tax

import "context"

// TaxRuleRepository reads and stores tax reference data
type TaxRuleRepository interface {
	// FindAll returns every stored rule, active or not
	FindAll(ctx context.Context) ([]*TaxRule, error)

	// Save creates or updates a rule
	Save(ctx context.Context, rule *TaxRule) error
}
