package posting

import (
	"context"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	journalapp "github.com/erp/posting/internal/application/journal"
	"github.com/erp/posting/internal/domain/posting"
)

// TransactionalRepositories gives a posting every repository it writes,
// all bound to the same database transaction
type TransactionalRepositories interface {
	inventoryapp.TransactionalRepositories
	journalapp.TransactionalRepositories
	DocumentRepo() posting.DocumentRepository
}

// TransactionScope runs fn inside one database transaction. fn's error
// rolls back every write of the posting.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}
