package posting

import (
	"context"

	"github.com/google/uuid"
)

// DocumentFilter narrows a document listing
type DocumentFilter struct {
	Type      *DocumentType
	Status    *DocumentStatus
	// SortBy is a column name; unknown columns fall back to created_at
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// DocumentRepository persists business documents with their lines
type DocumentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*BusinessDocument, error)
	List(ctx context.Context, filter DocumentFilter) ([]*BusinessDocument, int64, error)
	Create(ctx context.Context, doc *BusinessDocument) error

	// SaveWithLock writes the header and line stamps of a document whose
	// Version was incremented once since it was loaded
	SaveWithLock(ctx context.Context, doc *BusinessDocument) error

	Delete(ctx context.Context, id uuid.UUID) error
}
