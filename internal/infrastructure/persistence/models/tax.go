package models

import (
	"time"

	"github.com/erp/posting/internal/domain/tax"
	"github.com/shopspring/decimal"
)

// TaxRuleModel is the persistence model for a tax rule
type TaxRuleModel struct {
	BaseModel
	NCMCode       *string         `gorm:"type:varchar(10);index:idx_tax_rule_lookup,priority:4"`
	SourceState   string          `gorm:"type:char(2);not null;index:idx_tax_rule_lookup,priority:1"`
	DestState     string          `gorm:"type:char(2);not null;index:idx_tax_rule_lookup,priority:2"`
	OperationType string          `gorm:"type:varchar(20);not null;index:idx_tax_rule_lookup,priority:3"`
	CFOP          string          `gorm:"type:varchar(10);not null"`
	CSTICMS       string          `gorm:"column:cst_icms;type:varchar(5)"`
	ICMSRate      decimal.Decimal `gorm:"column:icms_rate;type:decimal(9,6);not null;default:0"`
	IPIRate       decimal.Decimal `gorm:"column:ipi_rate;type:decimal(9,6);not null;default:0"`
	PISRate       decimal.Decimal `gorm:"column:pis_rate;type:decimal(9,6);not null;default:0"`
	COFINSRate    decimal.Decimal `gorm:"column:cofins_rate;type:decimal(9,6);not null;default:0"`
	ValidFrom     *time.Time
	ValidTo       *time.Time
	Active        bool `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (TaxRuleModel) TableName() string {
	return "tax_rules"
}

// ToDomain converts the persistence model to a domain TaxRule
func (m *TaxRuleModel) ToDomain() *tax.TaxRule {
	return &tax.TaxRule{
		BaseEntity:    m.BaseModel.ToDomain(),
		NCMCode:       m.NCMCode,
		SourceState:   m.SourceState,
		DestState:     m.DestState,
		OperationType: tax.OperationType(m.OperationType),
		CFOP:          m.CFOP,
		CSTICMS:       m.CSTICMS,
		Rates: tax.Rates{
			ICMS:   m.ICMSRate,
			IPI:    m.IPIRate,
			PIS:    m.PISRate,
			COFINS: m.COFINSRate,
		},
		ValidFrom: m.ValidFrom,
		ValidTo:   m.ValidTo,
		Active:    m.Active,
	}
}

// TaxRuleModelFromDomain creates a persistence model from a domain TaxRule
func TaxRuleModelFromDomain(r *tax.TaxRule) *TaxRuleModel {
	m := &TaxRuleModel{
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
	m.FromDomainBaseEntity(r.BaseEntity)
	return m
}
