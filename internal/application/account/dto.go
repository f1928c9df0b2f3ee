package account

import (
	"time"

	"github.com/erp/posting/internal/domain/account"
	"github.com/google/uuid"
)

// CreateAccountRequest represents a request to add an account to the chart
type CreateAccountRequest struct {
	Code     string     `json:"code" binding:"required,max=50"`
	Name     string     `json:"name" binding:"required,max=200"`
	Type     string     `json:"type" binding:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Nature   string     `json:"nature" binding:"omitempty,oneof=DEBIT CREDIT"`
	ParentID *uuid.UUID `json:"parent_id"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Nature    string     `json:"nature"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Active    bool       `json:"active"`
	Leaf      bool       `json:"leaf"`
	Depth     int        `json:"depth"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ToAccountResponse converts an account with its position in chart
func ToAccountResponse(chart *account.ChartOfAccounts, a *account.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		Code:      a.Code,
		Name:      a.Name,
		Type:      string(a.Type),
		Nature:    string(a.Nature),
		ParentID:  a.ParentID,
		Active:    a.Active,
		Leaf:      chart.IsLeaf(a.ID),
		Depth:     chart.Depth(a.ID),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
