package tax

import (
	"time"

	"github.com/erp/posting/internal/domain/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateRuleRequest represents a request to register a tax rule
type CreateRuleRequest struct {
	NCMCode       *string         `json:"ncm_code"`
	SourceState   string          `json:"source_state" binding:"required,len=2"`
	DestState     string          `json:"dest_state" binding:"required,len=2"`
	OperationType string          `json:"operation_type" binding:"required"`
	CFOP          string          `json:"cfop" binding:"required"`
	CSTICMS       string          `json:"cst_icms"`
	ICMSRate      decimal.Decimal `json:"icms_rate"`
	IPIRate       decimal.Decimal `json:"ipi_rate"`
	PISRate       decimal.Decimal `json:"pis_rate"`
	COFINSRate    decimal.Decimal `json:"cofins_rate"`
	ValidFrom     *time.Time      `json:"valid_from"`
	ValidTo       *time.Time      `json:"valid_to"`
}

// ResolveRequest asks for the rule of one operation
type ResolveRequest struct {
	NCMCode       *string    `json:"ncm_code"`
	SourceState   string     `json:"source_state" binding:"required,len=2"`
	DestState     string     `json:"dest_state" binding:"required,len=2"`
	OperationType string     `json:"operation_type" binding:"required"`
	Date          *time.Time `json:"date"`
}

// Query converts the request for the resolver
func (r ResolveRequest) Query() tax.Query {
	q := tax.Query{
		NCMCode:       r.NCMCode,
		SourceState:   r.SourceState,
		DestState:     r.DestState,
		OperationType: tax.OperationType(r.OperationType),
	}
	if r.Date != nil {
		q.At = *r.Date
	}
	return q
}

// ApplyRequest computes the taxes of a base amount under a resolved rule
type ApplyRequest struct {
	Base   decimal.Decimal `json:"base"`
	Result TaxRuleResponse `json:"result"`
}

// TaxRuleResponse is a resolution result in API form
type TaxRuleResponse struct {
	RuleID     uuid.UUID       `json:"rule_id"`
	CFOP       string          `json:"cfop"`
	CSTICMS    string          `json:"cst_icms"`
	ICMSRate   decimal.Decimal `json:"icms_rate"`
	IPIRate    decimal.Decimal `json:"ipi_rate"`
	PISRate    decimal.Decimal `json:"pis_rate"`
	COFINSRate decimal.Decimal `json:"cofins_rate"`
}

// ToTaxRuleResponse converts a resolution result
func ToTaxRuleResponse(r tax.TaxRuleResult) TaxRuleResponse {
	return TaxRuleResponse{
		RuleID:     r.RuleID,
		CFOP:       r.CFOP,
		CSTICMS:    r.CSTICMS,
		ICMSRate:   r.Rates.ICMS,
		IPIRate:    r.Rates.IPI,
		PISRate:    r.Rates.PIS,
		COFINSRate: r.Rates.COFINS,
	}
}

// Result converts back to the domain form
func (r TaxRuleResponse) Result() tax.TaxRuleResult {
	return tax.TaxRuleResult{
		RuleID:  r.RuleID,
		CFOP:    r.CFOP,
		CSTICMS: r.CSTICMS,
		Rates: tax.Rates{
			ICMS:   r.ICMSRate,
			IPI:    r.IPIRate,
			PIS:    r.PISRate,
			COFINS: r.COFINSRate,
		},
	}
}

// TaxAmountsResponse holds computed tax values
type TaxAmountsResponse struct {
	ICMS   decimal.Decimal `json:"icms"`
	IPI    decimal.Decimal `json:"ipi"`
	PIS    decimal.Decimal `json:"pis"`
	COFINS decimal.Decimal `json:"cofins"`
	Total  decimal.Decimal `json:"total"`
}

// ToTaxAmountsResponse converts computed amounts
func ToTaxAmountsResponse(a tax.TaxAmounts) TaxAmountsResponse {
	return TaxAmountsResponse{ICMS: a.ICMS, IPI: a.IPI, PIS: a.PIS, COFINS: a.COFINS, Total: a.Total}
}

// RuleResponse is a stored rule in API form
type RuleResponse struct {
	ID            uuid.UUID       `json:"id"`
	NCMCode       *string         `json:"ncm_code"`
	SourceState   string          `json:"source_state"`
	DestState     string          `json:"dest_state"`
	OperationType string          `json:"operation_type"`
	CFOP          string          `json:"cfop"`
	CSTICMS       string          `json:"cst_icms"`
	ICMSRate      decimal.Decimal `json:"icms_rate"`
	IPIRate       decimal.Decimal `json:"ipi_rate"`
	PISRate       decimal.Decimal `json:"pis_rate"`
	COFINSRate    decimal.Decimal `json:"cofins_rate"`
	ValidFrom     *time.Time      `json:"valid_from,omitempty"`
	ValidTo       *time.Time      `json:"valid_to,omitempty"`
	Active        bool            `json:"active"`
}

// ToRuleResponse converts a stored rule
func ToRuleResponse(r *tax.TaxRule) RuleResponse {
	return RuleResponse{
		ID:            r.ID,
		NCMCode:       r.NCMCode,
		SourceState:   r.SourceState,
		DestState:     r.DestState,
		OperationType: string(r.OperationType),
		CFOP:          r.CFOP,
		CSTICMS:       r.CSTICMS,
		ICMSRate:      r.Rates.ICMS,
		IPIRate:       r.Rates.IPI,
		PISRate:       r.Rates.PIS,
		COFINSRate:    r.Rates.COFINS,
		ValidFrom:     r.ValidFrom,
		ValidTo:       r.ValidTo,
		Active:        r.Active,
	}
}
