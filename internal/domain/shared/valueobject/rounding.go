// Package valueobject holds the numeric policy of the posting core.
//
// Quantities carry 4 fractional digits, unit costs 4 and money 2. Every
// rounding is half away from zero, which is what decimal.Round does.
package valueobject

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scales
const (
	QuantityScale int32 = 4
	CostScale     int32 = 4
	MoneyScale    int32 = 2
	RateScale     int32 = 6
)

// Currency is an ISO 4217 code. The core books in a single currency.
type Currency string

const (
	BRL Currency = "BRL"

	DefaultCurrency = BRL
)

// RoundQuantity rounds q to QuantityScale.
func RoundQuantity(q decimal.Decimal) decimal.Decimal {
	return q.Round(QuantityScale)
}

// RoundCost rounds a unit cost to CostScale.
func RoundCost(c decimal.Decimal) decimal.Decimal {
	return c.Round(CostScale)
}

// RoundMoney rounds an amount to the currency's minimum unit.
func RoundMoney(m decimal.Decimal) decimal.Decimal {
	return m.Round(MoneyScale)
}

// MoneyOf returns round(quantity x unitPrice, 2).
func MoneyOf(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return RoundMoney(quantity.Mul(unitPrice))
}

// SumMoney adds the amounts after rounding each one.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(RoundMoney(a))
	}
	return total
}

// ParseQuantity parses s and rejects values with more than QuantityScale
// fractional digits.
func ParseQuantity(s string) (decimal.Decimal, error) {
	return parseScaled(s, QuantityScale, "quantity")
}

// ParseMoney parses s and rejects values with more than MoneyScale
// fractional digits.
func ParseMoney(s string) (decimal.Decimal, error) {
	return parseScaled(s, MoneyScale, "amount")
}

func parseScaled(s string, scale int32, what string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	if !d.Equal(d.Round(scale)) {
		return decimal.Zero, fmt.Errorf("invalid %s %q: more than %d fractional digits", what, s, scale)
	}
	return d, nil
}
