package journal

import (
	"context"

	"github.com/google/uuid"
)

// JournalEntryRepository persists entries with their lines
type JournalEntryRepository interface {
	// FindByID loads an entry with its lines
	FindByID(ctx context.Context, id uuid.UUID) (*JournalEntry, error)

	// FindByLineIDs loads the entries owning the given lines
	FindByLineIDs(ctx context.Context, lineIDs []uuid.UUID) ([]*JournalEntry, error)

	// Create inserts a new entry and its lines
	Create(ctx context.Context, entry *JournalEntry) error

	// SaveHeaderWithLock updates status fields of an entry whose Version was
	// incremented since it was loaded. Lines are never rewritten.
	SaveHeaderWithLock(ctx context.Context, entry *JournalEntry) error

	// SaveClearing stores a clearing and stamps its lines
	SaveClearing(ctx context.Context, clearing *Clearing) error

	// FindOpenItems lists uncleared lines of booked entries for an account
	// and business partner
	FindOpenItems(ctx context.Context, accountID, partnerID uuid.UUID) ([]JournalEntryLine, error)
}
