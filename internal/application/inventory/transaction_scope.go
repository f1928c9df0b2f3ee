package inventory

import (
	"context"

	"github.com/erp/posting/internal/domain/inventory"
)

// TransactionScope provides transactional access to the stock repositories.
// All repository operations inside fn are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories gives access to the stock repositories bound to
// one transaction.
//
// LevelRepo and MovementRepo must always be written together: a movement
// appended without saving its level, or the reverse, breaks the
// conservation check that Verify runs.
type TransactionalRepositories interface {
	LevelRepo() inventory.StockLevelRepository
	MovementRepo() inventory.StockMovementRepository
	BatchRepo() inventory.BatchRepository
	HoldRepo() inventory.StockHoldRepository
}
