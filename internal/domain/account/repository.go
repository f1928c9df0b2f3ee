package account

import (
	"context"

	"github.com/google/uuid"
)

// AccountRepository persists chart of accounts nodes
type AccountRepository interface {
	// FindAll returns every account
	FindAll(ctx context.Context) ([]*Account, error)

	// FindByID finds an account by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// Save creates or updates an account
	Save(ctx context.Context, account *Account) error
}
