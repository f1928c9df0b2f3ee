// Package account models the chart of accounts as an arena of nodes
// addressed by ID. Parents are referenced by ID and must exist before their
// children, so the tree cannot contain cycles.
package account

import (
	"strings"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
)

// AccountType classifies an account for reporting
type AccountType string

const (
	TypeAsset     AccountType = "ASSET"
	TypeLiability AccountType = "LIABILITY"
	TypeEquity    AccountType = "EQUITY"
	TypeRevenue   AccountType = "REVENUE"
	TypeExpense   AccountType = "EXPENSE"
)

// IsValid checks if the account type is known
func (t AccountType) IsValid() bool {
	switch t {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense:
		return true
	}
	return false
}

// IsResult reports whether the account belongs to the income statement.
// Cost and profit centers only apply to these accounts.
func (t AccountType) IsResult() bool {
	return t == TypeRevenue || t == TypeExpense
}

// Nature is the normal balance side of an account
type Nature string

const (
	NatureDebit  Nature = "DEBIT"
	NatureCredit Nature = "CREDIT"
)

// IsValid checks if the nature is known
func (n Nature) IsValid() bool {
	return n == NatureDebit || n == NatureCredit
}

// DefaultNature returns the usual normal balance for an account type
func (t AccountType) DefaultNature() Nature {
	switch t {
	case TypeAsset, TypeExpense:
		return NatureDebit
	default:
		return NatureCredit
	}
}

// Account is a node of the chart of accounts
type Account struct {
	shared.BaseEntity
	Code     string
	Name     string
	Type     AccountType
	Nature   Nature
	ParentID *uuid.UUID
	Active   bool
}

// NewAccount validates and builds an account. An empty nature falls back to
// the type's default.
func NewAccount(code, name string, accType AccountType, nature Nature, parentID *uuid.UUID) (*Account, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.Errorf(shared.ErrInvalidInput, "account code cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.Errorf(shared.ErrInvalidInput, "account name cannot be empty")
	}
	if !accType.IsValid() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "invalid account type %q", accType)
	}
	if nature == "" {
		nature = accType.DefaultNature()
	}
	if !nature.IsValid() {
		return nil, shared.Errorf(shared.ErrInvalidInput, "invalid account nature %q", nature)
	}
	return &Account{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       strings.TrimSpace(name),
		Type:       accType,
		Nature:     nature,
		ParentID:   parentID,
		Active:     true,
	}, nil
}
