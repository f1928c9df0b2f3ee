package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/posting/internal/domain/shared"
	"gorm.io/gorm"
)

// mapNotFound turns gorm's not-found into the domain error naming what
// was looked up
func mapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.Errorf(shared.ErrNotFound, format+" not found", args...)
	}
	return err
}

// conflict reports an optimistic version check that matched no row
func conflict(format string, args ...any) error {
	return shared.Errorf(shared.ErrConcurrencyConflict, "%s was modified by another transaction", fmt.Sprintf(format, args...))
}

// mapDuplicate reports a unique index hit as a lost race with another
// writer of the same natural key
func mapDuplicate(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.Errorf(shared.ErrConcurrencyConflict, "%s was registered by another transaction", fmt.Sprintf(format, args...))
	}
	return err
}
