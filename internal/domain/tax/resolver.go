package tax

import (
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Query is the input of a resolution
type Query struct {
	NCMCode       *string
	SourceState   string
	DestState     string
	OperationType OperationType
	// At selects rules by validity window. Zero means now.
	At time.Time
}

// TaxRuleResult is what a line needs to compute its taxes
type TaxRuleResult struct {
	RuleID  uuid.UUID
	CFOP    string
	CSTICMS string
	Rates   Rates
}

// TaxAmounts are the computed values of each component
type TaxAmounts struct {
	ICMS   decimal.Decimal
	IPI    decimal.Decimal
	PIS    decimal.Decimal
	COFINS decimal.Decimal
	Total  decimal.Decimal
}

// Resolver picks the most specific rule from a fixed rule set. It has no
// side effects and is safe for concurrent use.
type Resolver struct {
	rules []*TaxRule
}

// NewResolver builds a resolver over a snapshot of rules
func NewResolver(rules []*TaxRule) *Resolver {
	return &Resolver{rules: rules}
}

// Rules returns the rule snapshot
func (r *Resolver) Rules() []*TaxRule {
	return r.rules
}

// Resolve returns the rule for q. Exact NCM beats wildcard NCM; within a
// tier the rule with the latest ValidFrom wins. Nothing matching is
// ErrNoTaxRuleFound, never a zero rate.
func (r *Resolver) Resolve(q Query) (TaxRuleResult, error) {
	at := q.At
	if at.IsZero() {
		at = time.Now()
	}
	ncm := normalizeNCM(q.NCMCode)
	src, dst := normalizeState(q.SourceState), normalizeState(q.DestState)
	op := q.OperationType.Normalize()

	var exact, wildcard []*TaxRule
	for _, rule := range r.rules {
		if rule.SourceState != src || rule.DestState != dst || rule.OperationType != op {
			continue
		}
		if !rule.EffectiveOn(at) {
			continue
		}
		switch {
		case rule.IsWildcard():
			wildcard = append(wildcard, rule)
		case ncm != nil && *rule.NCMCode == *ncm:
			exact = append(exact, rule)
		}
	}

	for _, tier := range [][]*TaxRule{exact, wildcard} {
		if len(tier) == 0 {
			continue
		}
		best, err := pickLatest(tier)
		if err != nil {
			return TaxRuleResult{}, err
		}
		return best.Result(), nil
	}

	ncmText := "*"
	if ncm != nil {
		ncmText = *ncm
	}
	return TaxRuleResult{}, shared.Errorf(shared.ErrNoTaxRuleFound,
		"no tax rule for ncm %s, %s->%s, operation %s", ncmText, src, dst, op)
}

func pickLatest(tier []*TaxRule) (*TaxRule, error) {
	best := tier[0]
	tied := false
	for _, rule := range tier[1:] {
		switch compareValidFrom(rule.ValidFrom, best.ValidFrom) {
		case 1:
			best, tied = rule, false
		case 0:
			tied = true
		}
	}
	if tied {
		return nil, shared.Errorf(shared.ErrAmbiguousTaxRule,
			"rules for %s->%s %s overlap with the same start date", best.SourceState, best.DestState, best.OperationType)
	}
	return best, nil
}

// compareValidFrom orders nil (open start) before any date
func compareValidFrom(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case a.After(*b):
		return 1
	case a.Before(*b):
		return -1
	}
	return 0
}

// Apply computes each component as round(base x rate, 2). Rates are flat and
// never compounded on each other.
func Apply(base decimal.Decimal, result TaxRuleResult) TaxAmounts {
	a := TaxAmounts{
		ICMS:   valueobject.RoundMoney(base.Mul(result.Rates.ICMS)),
		IPI:    valueobject.RoundMoney(base.Mul(result.Rates.IPI)),
		PIS:    valueobject.RoundMoney(base.Mul(result.Rates.PIS)),
		COFINS: valueobject.RoundMoney(base.Mul(result.Rates.COFINS)),
	}
	a.Total = a.ICMS.Add(a.IPI).Add(a.PIS).Add(a.COFINS)
	return a
}
