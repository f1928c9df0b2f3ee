package account

import (
	"sort"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
)

// ChartOfAccounts is an immutable-after-build arena of accounts.
type ChartOfAccounts struct {
	byID     map[uuid.UUID]*Account
	byCode   map[string]uuid.UUID
	children map[uuid.UUID][]uuid.UUID
}

// NewChart returns an empty chart
func NewChart() *ChartOfAccounts {
	return &ChartOfAccounts{
		byID:     make(map[uuid.UUID]*Account),
		byCode:   make(map[string]uuid.UUID),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
}

// BuildChart adds accounts in parent-first order regardless of input order.
// An account whose parent never appears is rejected.
func BuildChart(accounts []*Account) (*ChartOfAccounts, error) {
	chart := NewChart()
	pending := append([]*Account(nil), accounts...)
	for len(pending) > 0 {
		progressed := false
		rest := pending[:0]
		for _, a := range pending {
			if a.ParentID != nil && !chart.Has(*a.ParentID) {
				rest = append(rest, a)
				continue
			}
			if err := chart.Add(a); err != nil {
				return nil, err
			}
			progressed = true
		}
		pending = rest
		if !progressed {
			return nil, shared.Errorf(shared.ErrAccountNotFound, "parent of account %s does not exist", pending[0].Code)
		}
	}
	return chart, nil
}

// Add inserts an account. The parent must already be in the chart.
func (c *ChartOfAccounts) Add(a *Account) error {
	if _, dup := c.byCode[a.Code]; dup {
		return shared.Errorf(shared.ErrAlreadyExists, "account code %s already exists", a.Code)
	}
	if _, dup := c.byID[a.ID]; dup {
		return shared.Errorf(shared.ErrAlreadyExists, "account %s already exists", a.ID)
	}
	if a.ParentID != nil {
		if _, ok := c.byID[*a.ParentID]; !ok {
			return shared.Errorf(shared.ErrAccountNotFound, "parent account %s not found", a.ParentID)
		}
		c.children[*a.ParentID] = append(c.children[*a.ParentID], a.ID)
	}
	c.byID[a.ID] = a
	c.byCode[a.Code] = a.ID
	return nil
}

// Has reports whether id is in the chart
func (c *ChartOfAccounts) Has(id uuid.UUID) bool {
	_, ok := c.byID[id]
	return ok
}

// Get returns the account with the given ID
func (c *ChartOfAccounts) Get(id uuid.UUID) (*Account, error) {
	a, ok := c.byID[id]
	if !ok {
		return nil, shared.Errorf(shared.ErrAccountNotFound, "account %s not found", id)
	}
	return a, nil
}

// ByCode returns the account with the given code
func (c *ChartOfAccounts) ByCode(code string) (*Account, error) {
	id, ok := c.byCode[code]
	if !ok {
		return nil, shared.Errorf(shared.ErrAccountNotFound, "account code %s not found", code)
	}
	return c.byID[id], nil
}

// Children returns the direct children of id ordered by code
func (c *ChartOfAccounts) Children(id uuid.UUID) []*Account {
	ids := c.children[id]
	out := make([]*Account, 0, len(ids))
	for _, cid := range ids {
		out = append(out, c.byID[cid])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// IsLeaf reports whether the account has no children
func (c *ChartOfAccounts) IsLeaf(id uuid.UUID) bool {
	return len(c.children[id]) == 0
}

// Ancestors walks from the account's parent up to the root
func (c *ChartOfAccounts) Ancestors(id uuid.UUID) []*Account {
	var out []*Account
	a, ok := c.byID[id]
	for ok && a.ParentID != nil {
		a, ok = c.byID[*a.ParentID]
		if ok {
			out = append(out, a)
		}
	}
	return out
}

// Depth is 0 for a root account
func (c *ChartOfAccounts) Depth(id uuid.UUID) int {
	return len(c.Ancestors(id))
}

// Postable returns the account when it exists, is active and is a leaf.
func (c *ChartOfAccounts) Postable(id uuid.UUID) (*Account, error) {
	a, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, shared.Errorf(shared.ErrAccountNotPostable, "account %s is inactive", a.Code)
	}
	if !c.IsLeaf(id) {
		return nil, shared.Errorf(shared.ErrAccountNotPostable, "account %s is a summary account", a.Code)
	}
	return a, nil
}

// Roots returns the top-level accounts ordered by code
func (c *ChartOfAccounts) Roots() []*Account {
	var out []*Account
	for _, a := range c.byID {
		if a.ParentID == nil {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// All returns every account ordered by code
func (c *ChartOfAccounts) All() []*Account {
	out := make([]*Account, 0, len(c.byID))
	for _, a := range c.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of accounts
func (c *ChartOfAccounts) Len() int {
	return len(c.byID)
}
