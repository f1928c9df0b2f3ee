// Package tax resolves Brazilian tax rules for a transaction line and
// computes the ICMS, IPI, PIS and COFINS amounts.
package tax

import (
	"strings"
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// OperationType identifies the fiscal nature of an operation (e.g. SALE)
type OperationType string

const (
	OperationSale     OperationType = "SALE"
	OperationPurchase OperationType = "PURCHASE"
	OperationTransfer OperationType = "TRANSFER"
	OperationReturn   OperationType = "RETURN"
)

// Normalize returns the trimmed upper-case form rules are stored in
func (o OperationType) Normalize() OperationType {
	return OperationType(strings.ToUpper(strings.TrimSpace(string(o))))
}

// Rates holds the flat rates of each component as fractions (0.18 = 18%)
type Rates struct {
	ICMS   decimal.Decimal
	IPI    decimal.Decimal
	PIS    decimal.Decimal
	COFINS decimal.Decimal
}

// TaxRule is read-only reference data mapping an operation to its CFOP and
// rates. A nil NCMCode is a wildcard for every NCM.
type TaxRule struct {
	shared.BaseEntity
	NCMCode       *string
	SourceState   string
	DestState     string
	OperationType OperationType
	CFOP          string
	CSTICMS       string
	Rates         Rates
	ValidFrom     *time.Time
	ValidTo       *time.Time
	Active        bool
}

// NewTaxRule validates and normalizes a rule
func NewTaxRule(ncm *string, sourceState, destState string, op OperationType, cfop, cst string, rates Rates) (*TaxRule, error) {
	r := &TaxRule{
		BaseEntity:    shared.NewBaseEntity(),
		NCMCode:       normalizeNCM(ncm),
		SourceState:   normalizeState(sourceState),
		DestState:     normalizeState(destState),
		OperationType: op.Normalize(),
		CFOP:          strings.TrimSpace(cfop),
		CSTICMS:       strings.TrimSpace(cst),
		Rates: Rates{
			ICMS:   rates.ICMS.Round(valueobject.RateScale),
			IPI:    rates.IPI.Round(valueobject.RateScale),
			PIS:    rates.PIS.Round(valueobject.RateScale),
			COFINS: rates.COFINS.Round(valueobject.RateScale),
		},
		Active: true,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rule's invariants
func (r *TaxRule) Validate() error {
	if len(r.SourceState) != 2 || len(r.DestState) != 2 {
		return shared.Errorf(shared.ErrInvalidInput, "states must be two-letter codes, got %q and %q", r.SourceState, r.DestState)
	}
	if r.OperationType == "" {
		return shared.Errorf(shared.ErrInvalidInput, "operation type is required")
	}
	if r.CFOP == "" {
		return shared.Errorf(shared.ErrInvalidInput, "cfop is required")
	}
	for name, rate := range map[string]decimal.Decimal{
		"icms": r.Rates.ICMS, "ipi": r.Rates.IPI, "pis": r.Rates.PIS, "cofins": r.Rates.COFINS,
	} {
		if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return shared.Errorf(shared.ErrInvalidInput, "%s rate must be between 0 and 1, got %s", name, rate)
		}
	}
	if r.ValidFrom != nil && r.ValidTo != nil && r.ValidTo.Before(*r.ValidFrom) {
		return shared.Errorf(shared.ErrInvalidInput, "valid_to is before valid_from")
	}
	return nil
}

// IsWildcard reports whether the rule applies to any NCM
func (r *TaxRule) IsWildcard() bool {
	return r.NCMCode == nil
}

// EffectiveOn reports whether the rule is active on the given date
func (r *TaxRule) EffectiveOn(at time.Time) bool {
	if !r.Active {
		return false
	}
	if r.ValidFrom != nil && at.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && at.After(*r.ValidTo) {
		return false
	}
	return true
}

// Result converts the rule to a resolution result
func (r *TaxRule) Result() TaxRuleResult {
	return TaxRuleResult{
		RuleID:  r.ID,
		CFOP:    r.CFOP,
		CSTICMS: r.CSTICMS,
		Rates:   r.Rates,
	}
}

func normalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// normalizeNCM strips the dots of a formatted NCM (8471.30.12 -> 84713012).
// An empty code means wildcard.
func normalizeNCM(ncm *string) *string {
	if ncm == nil {
		return nil
	}
	n := strings.ReplaceAll(strings.TrimSpace(*ncm), ".", "")
	if n == "" {
		return nil
	}
	return &n
}
