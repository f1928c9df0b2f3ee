package persistence

import (
	"context"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	journalapp "github.com/erp/posting/internal/application/journal"
	postingapp "github.com/erp/posting/internal/application/posting"
	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/journal"
	"github.com/erp/posting/internal/domain/posting"
	"gorm.io/gorm"
)

// GormRepositories provides every posting repository bound to one *gorm.DB,
// either the root connection or a transaction.
type GormRepositories struct {
	db *gorm.DB
}

// NewGormRepositories creates repositories on db
func NewGormRepositories(db *gorm.DB) *GormRepositories {
	return &GormRepositories{db: db}
}

// LevelRepo returns the stock level repository
func (r *GormRepositories) LevelRepo() inventory.StockLevelRepository {
	return NewGormStockLevelRepository(r.db)
}

// MovementRepo returns the movement ledger
func (r *GormRepositories) MovementRepo() inventory.StockMovementRepository {
	return NewGormStockMovementRepository(r.db)
}

// BatchRepo returns the batch repository
func (r *GormRepositories) BatchRepo() inventory.BatchRepository {
	return NewGormBatchRepository(r.db)
}

// HoldRepo returns the stock hold repository
func (r *GormRepositories) HoldRepo() inventory.StockHoldRepository {
	return NewGormStockHoldRepository(r.db)
}

// EntryRepo returns the journal entry repository
func (r *GormRepositories) EntryRepo() journal.JournalEntryRepository {
	return NewGormJournalEntryRepository(r.db)
}

// DocumentRepo returns the document repository
func (r *GormRepositories) DocumentRepo() posting.DocumentRepository {
	return NewGormDocumentRepository(r.db)
}

// GormTransactionScope runs application work in GORM transactions. Each
// application layer declares its own scope interface, so the scope hands
// out one adapter per layer; all of them share the same repositories.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

func (s *GormTransactionScope) execute(ctx context.Context, fn func(repos *GormRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepositories{db: tx})
	})
}

// Inventory returns the scope of the stock ledger
func (s *GormTransactionScope) Inventory() inventoryapp.TransactionScope {
	return inventoryScope{s}
}

// Journal returns the scope of the journal engine
func (s *GormTransactionScope) Journal() journalapp.TransactionScope {
	return journalScope{s}
}

// Posting returns the scope of the posting orchestrator
func (s *GormTransactionScope) Posting() postingapp.TransactionScope {
	return postingScope{s}
}

type inventoryScope struct{ *GormTransactionScope }

func (s inventoryScope) Execute(ctx context.Context, fn func(repos inventoryapp.TransactionalRepositories) error) error {
	return s.execute(ctx, func(repos *GormRepositories) error { return fn(repos) })
}

type journalScope struct{ *GormTransactionScope }

func (s journalScope) Execute(ctx context.Context, fn func(repos journalapp.TransactionalRepositories) error) error {
	return s.execute(ctx, func(repos *GormRepositories) error { return fn(repos) })
}

type postingScope struct{ *GormTransactionScope }

func (s postingScope) Execute(ctx context.Context, fn func(repos postingapp.TransactionalRepositories) error) error {
	return s.execute(ctx, func(repos *GormRepositories) error { return fn(repos) })
}

var (
	_ inventoryapp.TransactionalRepositories = (*GormRepositories)(nil)
	_ journalapp.TransactionalRepositories   = (*GormRepositories)(nil)
	_ postingapp.TransactionalRepositories   = (*GormRepositories)(nil)
)
