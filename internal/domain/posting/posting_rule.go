package posting

import (
	"fmt"

	"github.com/erp/posting/internal/domain/journal"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountRole names an account by its function. Roles are bound to account
// codes through configuration.
type AccountRole string

const (
	RoleReceivables       AccountRole = "receivables"
	RolePayables          AccountRole = "payables"
	RoleRevenue           AccountRole = "revenue"
	RoleCOGS              AccountRole = "cogs"
	RoleInventory         AccountRole = "inventory"
	RoleGRIR              AccountRole = "grir"
	RoleConsumption       AccountRole = "consumption"
	RoleInventoryGain     AccountRole = "inventory_gain"
	RoleInventoryLoss     AccountRole = "inventory_loss"
	RolePriceDifference   AccountRole = "price_difference"
	RoleCash              AccountRole = "cash"
	RoleICMSExpense       AccountRole = "icms_expense"
	RoleICMSPayable       AccountRole = "icms_payable"
	RoleICMSRecoverable   AccountRole = "icms_recoverable"
	RoleIPIPayable        AccountRole = "ipi_payable"
	RolePISExpense        AccountRole = "pis_expense"
	RolePISPayable        AccountRole = "pis_payable"
	RolePISRecoverable    AccountRole = "pis_recoverable"
	RoleCOFINSExpense     AccountRole = "cofins_expense"
	RoleCOFINSPayable     AccountRole = "cofins_payable"
	RoleCOFINSRecoverable AccountRole = "cofins_recoverable"
)

// AllRoles lists every role a rule table may reference
func AllRoles() []AccountRole {
	return []AccountRole{
		RoleReceivables, RolePayables, RoleRevenue, RoleCOGS, RoleInventory, RoleGRIR,
		RoleConsumption, RoleInventoryGain, RoleInventoryLoss, RolePriceDifference, RoleCash,
		RoleICMSExpense, RoleICMSPayable, RoleICMSRecoverable, RoleIPIPayable,
		RolePISExpense, RolePISPayable, RolePISRecoverable,
		RoleCOFINSExpense, RoleCOFINSPayable, RoleCOFINSRecoverable,
	}
}

// Component is one valued part of a document
type Component string

const (
	ComponentNet     Component = "NET"
	ComponentICMS    Component = "ICMS"
	ComponentIPI     Component = "IPI"
	ComponentPIS     Component = "PIS"
	ComponentCOFINS  Component = "COFINS"
	ComponentCOGS    Component = "COGS"
	ComponentStock   Component = "STOCK"
	ComponentGain    Component = "GAIN"
	ComponentLoss    Component = "LOSS"
	ComponentPayment Component = "PAYMENT"

	// ComponentPriceDiff is the landed amount a purchase books above the
	// value its stock movements carry
	ComponentPriceDiff Component = "PRICE_DIFF"
)

// Rule turns a component amount into one debit and one credit.
// PartnerSide marks which of the two lines carries the document partner;
// empty means neither.
type Rule struct {
	Debit       AccountRole
	Credit      AccountRole
	PartnerSide journal.Side
}

// RuleKey addresses a rule
type RuleKey struct {
	Type      DocumentType
	Component Component
}

// RuleTable maps document components to account pairs
type RuleTable map[RuleKey]Rule

// DefaultRuleTable returns the standard posting rules
func DefaultRuleTable() RuleTable {
	return RuleTable{
		{TypeSalesInvoice, ComponentNet}:    {RoleReceivables, RoleRevenue, journal.Debit},
		{TypeSalesInvoice, ComponentIPI}:    {RoleReceivables, RoleIPIPayable, journal.Debit},
		{TypeSalesInvoice, ComponentICMS}:   {RoleICMSExpense, RoleICMSPayable, ""},
		{TypeSalesInvoice, ComponentPIS}:    {RolePISExpense, RolePISPayable, ""},
		{TypeSalesInvoice, ComponentCOFINS}: {RoleCOFINSExpense, RoleCOFINSPayable, ""},
		{TypeSalesInvoice, ComponentCOGS}:   {RoleCOGS, RoleInventory, ""},

		{TypePurchaseInvoice, ComponentNet}:    {RoleInventory, RolePayables, journal.Credit},
		{TypePurchaseInvoice, ComponentIPI}:    {RoleInventory, RolePayables, journal.Credit},
		{TypePurchaseInvoice, ComponentICMS}:   {RoleICMSRecoverable, RoleInventory, ""},
		{TypePurchaseInvoice, ComponentPIS}:    {RolePISRecoverable, RoleInventory, ""},
		{TypePurchaseInvoice, ComponentCOFINS}: {RoleCOFINSRecoverable, RoleInventory, ""},

		{TypePurchaseInvoice, ComponentPriceDiff}: {RolePriceDifference, RoleInventory, ""},

		{TypeGoodsReceipt, ComponentStock}: {RoleInventory, RoleGRIR, ""},
		{TypeGoodsIssue, ComponentStock}:   {RoleConsumption, RoleInventory, ""},

		{TypeInventoryCount, ComponentGain}: {RoleInventory, RoleInventoryGain, ""},
		{TypeInventoryCount, ComponentLoss}: {RoleInventoryLoss, RoleInventory, ""},

		{TypeSalesInvoice, ComponentPayment}:    {RoleCash, RoleReceivables, journal.Credit},
		{TypePurchaseInvoice, ComponentPayment}: {RolePayables, RoleCash, journal.Debit},
	}
}

// Roles returns every role referenced by the table
func (t RuleTable) Roles() []AccountRole {
	used := make(map[AccountRole]bool)
	for _, r := range t {
		used[r.Debit] = true
		used[r.Credit] = true
	}
	out := make([]AccountRole, 0, len(used))
	for _, role := range AllRoles() {
		if used[role] {
			out = append(out, role)
		}
	}
	return out
}

// ComponentAmount is a valued component of a document
type ComponentAmount struct {
	Component Component
	Amount    decimal.Decimal
}

// RoleLine is a journal line still addressed by role
type RoleLine struct {
	Role        AccountRole
	Side        journal.Side
	Amount      decimal.Decimal
	WithPartner bool
}

// Expand applies the table to the components of doc. Zero amounts produce
// no lines and a negative amount swaps the sides of its rule.
func (t RuleTable) Expand(doc *BusinessDocument, components []ComponentAmount) ([]RoleLine, error) {
	lines := make([]RoleLine, 0, len(components)*2)
	for _, c := range components {
		amount := valueobject.RoundMoney(c.Amount)
		if amount.IsZero() {
			continue
		}
		rule, ok := t[RuleKey{Type: doc.Type, Component: c.Component}]
		if !ok {
			return nil, shared.Errorf(shared.ErrInvalidInput, "no posting rule for %s %s", doc.Type, c.Component)
		}
		debit, credit := doc.substitute(rule.Debit), doc.substitute(rule.Credit)
		debitSide, creditSide := journal.Debit, journal.Credit
		if amount.IsNegative() {
			amount = amount.Neg()
			debitSide, creditSide = creditSide, debitSide
		}
		lines = append(lines,
			RoleLine{Role: debit, Side: debitSide, Amount: amount, WithPartner: rule.PartnerSide == journal.Debit},
			RoleLine{Role: credit, Side: creditSide, Amount: amount, WithPartner: rule.PartnerSide == journal.Credit},
		)
	}
	return lines, nil
}

// substitute routes purchases that skip the stock ledger through the
// goods received / invoice received account instead of inventory.
func (d *BusinessDocument) substitute(role AccountRole) AccountRole {
	if d.Type == TypePurchaseInvoice && !d.AffectsStock && role == RoleInventory {
		return RoleGRIR
	}
	return role
}

// AccountResolver finds the account bound to a role and reports whether it
// is a revenue or expense account.
type AccountResolver interface {
	ResolveRole(role AccountRole) (accountID uuid.UUID, isResult bool, err error)
}

// BuildLines resolves roles to accounts, attaches the partner and the cost
// and profit centers, then merges and nets the result.
func BuildLines(doc *BusinessDocument, roleLines []RoleLine, accounts AccountResolver) ([]journal.LineInput, error) {
	inputs := make([]journal.LineInput, 0, len(roleLines))
	for _, rl := range roleLines {
		accountID, isResult, err := accounts.ResolveRole(rl.Role)
		if err != nil {
			return nil, err
		}
		in := journal.LineInput{
			AccountID: accountID,
			Side:      rl.Side,
			Amount:    rl.Amount,
			Memo:      string(rl.Role),
		}
		if rl.WithPartner {
			in.PartnerID = doc.PartnerID
		}
		if isResult {
			in.CostCenter = doc.CostCenter
			in.ProfitCenter = doc.ProfitCenter
		}
		inputs = append(inputs, in)
	}
	return MergeLines(inputs), nil
}

type mergeKey struct {
	account      uuid.UUID
	partner      uuid.UUID
	costCenter   string
	profitCenter string
}

// MergeLines nets lines sharing account, partner, cost center and profit
// center. Order follows first appearance and lines netting to zero are
// dropped.
func MergeLines(lines []journal.LineInput) []journal.LineInput {
	order := make([]mergeKey, 0, len(lines))
	net := make(map[mergeKey]decimal.Decimal, len(lines))
	proto := make(map[mergeKey]journal.LineInput, len(lines))

	for _, l := range lines {
		k := mergeKey{account: l.AccountID, costCenter: deref(l.CostCenter), profitCenter: deref(l.ProfitCenter)}
		if l.PartnerID != nil {
			k.partner = *l.PartnerID
		}
		if _, ok := net[k]; !ok {
			order = append(order, k)
			proto[k] = l
			net[k] = decimal.Zero
		}
		amount := valueobject.RoundMoney(l.Amount)
		if l.Side == journal.Credit {
			amount = amount.Neg()
		}
		net[k] = net[k].Add(amount)
	}

	out := make([]journal.LineInput, 0, len(order))
	for _, k := range order {
		n := net[k]
		if n.IsZero() {
			continue
		}
		l := proto[k]
		l.Side = journal.Debit
		if n.IsNegative() {
			l.Side = journal.Credit
			n = n.Neg()
		}
		l.Amount = n
		out = append(out, l)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RoleMap is a static AccountResolver
type RoleMap map[AccountRole]RoleAccount

// RoleAccount is the account bound to a role
type RoleAccount struct {
	AccountID uuid.UUID
	IsResult  bool
}

// ResolveRole implements AccountResolver
func (m RoleMap) ResolveRole(role AccountRole) (uuid.UUID, bool, error) {
	a, ok := m[role]
	if !ok {
		return uuid.Nil, false, shared.Errorf(shared.ErrAccountNotFound, "no account bound to role %s", role)
	}
	return a.AccountID, a.IsResult, nil
}

// String renders the key for logs
func (k RuleKey) String() string {
	return fmt.Sprintf("%s/%s", k.Type, k.Component)
}
