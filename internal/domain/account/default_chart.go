package account

import (
	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
)

// ChartNode describes one account of a chart template. Parent is the code
// of the parent account, empty for a root.
type ChartNode struct {
	Code   string
	Name   string
	Type   AccountType
	Parent string
}

// DefaultChartNodes is the standard chart, parents before children. Its
// leaves carry the codes the default posting roles are bound to.
var DefaultChartNodes = []ChartNode{
	{"1", "Assets", TypeAsset, ""},
	{"1.1", "Current assets", TypeAsset, "1"},
	{"1.1.01", "Cash and banks", TypeAsset, "1.1"},
	{"1.1.02", "Trade receivables", TypeAsset, "1.1"},
	{"1.1.03", "Inventory", TypeAsset, "1.1"},
	{"1.1.04", "ICMS recoverable", TypeAsset, "1.1"},
	{"1.1.05", "PIS recoverable", TypeAsset, "1.1"},
	{"1.1.06", "COFINS recoverable", TypeAsset, "1.1"},

	{"2", "Liabilities", TypeLiability, ""},
	{"2.1", "Current liabilities", TypeLiability, "2"},
	{"2.1.01", "Trade payables", TypeLiability, "2.1"},
	{"2.1.02", "Goods received not invoiced", TypeLiability, "2.1"},
	{"2.1.03", "ICMS payable", TypeLiability, "2.1"},
	{"2.1.04", "IPI payable", TypeLiability, "2.1"},
	{"2.1.05", "PIS payable", TypeLiability, "2.1"},
	{"2.1.06", "COFINS payable", TypeLiability, "2.1"},

	{"3", "Revenue", TypeRevenue, ""},
	{"3.1", "Operating revenue", TypeRevenue, "3"},
	{"3.1.01", "Sales of goods", TypeRevenue, "3.1"},
	{"3.1.02", "Inventory gains", TypeRevenue, "3.1"},

	{"4", "Expenses", TypeExpense, ""},
	{"4.1", "Cost of operations", TypeExpense, "4"},
	{"4.1.01", "Cost of goods sold", TypeExpense, "4.1"},
	{"4.1.02", "Material consumption", TypeExpense, "4.1"},
	{"4.1.03", "Inventory losses", TypeExpense, "4.1"},
	{"4.1.04", "Purchase price differences", TypeExpense, "4.1"},
	{"4.2", "Taxes on sales", TypeExpense, "4"},
	{"4.2.01", "ICMS on sales", TypeExpense, "4.2"},
	{"4.2.02", "PIS on sales", TypeExpense, "4.2"},
	{"4.2.03", "COFINS on sales", TypeExpense, "4.2"},
}

// BuildAccounts instantiates chart nodes with fresh IDs, linking each
// account to its parent by code
func BuildAccounts(nodes []ChartNode) ([]*Account, error) {
	byCode := make(map[string]*Account, len(nodes))
	out := make([]*Account, 0, len(nodes))
	for _, n := range nodes {
		var parent *Account
		if n.Parent != "" {
			p, ok := byCode[n.Parent]
			if !ok {
				return nil, shared.Errorf(shared.ErrAccountNotFound, "parent %s of account %s is not defined before it", n.Parent, n.Code)
			}
			parent = p
		}
		var parentID *uuid.UUID
		if parent != nil {
			parentID = &parent.ID
		}
		a, err := NewAccount(n.Code, n.Name, n.Type, "", parentID)
		if err != nil {
			return nil, err
		}
		byCode[a.Code] = a
		out = append(out, a)
	}
	return out, nil
}
