package persistence

import (
	"context"

	"github.com/erp/posting/internal/domain/journal"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormJournalEntryRepository implements JournalEntryRepository using GORM.
// Lines are written once with their entry; afterwards only their clearing
// columns change.
type GormJournalEntryRepository struct {
	db *gorm.DB
}

// NewGormJournalEntryRepository creates a new GormJournalEntryRepository
func NewGormJournalEntryRepository(db *gorm.DB) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{db: db}
}

func preloadLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_no")
}

// FindByID loads an entry with its lines
func (r *GormJournalEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*journal.JournalEntry, error) {
	var m models.JournalEntryModel
	if err := r.db.WithContext(ctx).Preload("Lines", preloadLines).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, "journal entry %s", id)
	}
	return m.ToDomain()
}

// FindByLineIDs loads the entries owning the given lines
func (r *GormJournalEntryRepository) FindByLineIDs(ctx context.Context, lineIDs []uuid.UUID) ([]*journal.JournalEntry, error) {
	if len(lineIDs) == 0 {
		return nil, nil
	}
	var rows []models.JournalEntryModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", preloadLines).
		Where("id IN (?)", r.db.Model(&models.JournalLineModel{}).Select("entry_id").Where("id IN ?", lineIDs)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*journal.JournalEntry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Create inserts a new entry and its lines
func (r *GormJournalEntryRepository) Create(ctx context.Context, entry *journal.JournalEntry) error {
	return r.db.WithContext(ctx).Create(models.JournalEntryModelFromDomain(entry)).Error
}

// SaveHeaderWithLock updates the status fields of an entry with optimistic
// locking (checks version)
func (r *GormJournalEntryRepository) SaveHeaderWithLock(ctx context.Context, entry *journal.JournalEntry) error {
	result := r.db.WithContext(ctx).
		Model(&models.JournalEntryModel{}).
		Where("id = ? AND version = ?", entry.ID, entry.Version-1).
		Updates(map[string]any{
			"status":               entry.Status.String(),
			"reversed_by_entry_id": entry.ReversedByEntryID,
			"posted_at":            entry.PostedAt,
			"version":              entry.Version,
			"updated_at":           entry.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return conflict("journal entry %s", entry.ID)
	}
	return nil
}

// SaveClearing stores a clearing and stamps its lines. Only open lines are
// stamped, so a line cleared concurrently makes the row count fall short.
func (r *GormJournalEntryRepository) SaveClearing(ctx context.Context, clearing *journal.Clearing) error {
	db := r.db.WithContext(ctx)
	if err := db.Create(models.ClearingModelFromDomain(clearing)).Error; err != nil {
		return err
	}
	result := db.Model(&models.JournalLineModel{}).
		Where("id IN ? AND clearing_id IS NULL", clearing.LineIDs).
		Updates(map[string]any{
			"clearing_id": clearing.ID,
			"cleared_at":  clearing.ClearedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(clearing.LineIDs)) {
		return shared.Errorf(shared.ErrConcurrencyConflict, "clearing %s: %d of %d lines were already cleared",
			clearing.ID, int64(len(clearing.LineIDs))-result.RowsAffected, len(clearing.LineIDs))
	}
	return nil
}

// FindOpenItems lists uncleared lines of booked entries for an account and
// business partner
func (r *GormJournalEntryRepository) FindOpenItems(ctx context.Context, accountID, partnerID uuid.UUID) ([]journal.JournalEntryLine, error) {
	var rows []models.JournalLineModel
	if err := r.db.WithContext(ctx).
		Joins("JOIN journal_entries ON journal_entries.id = journal_lines.entry_id").
		Where("journal_lines.account_id = ? AND journal_lines.partner_id = ? AND journal_lines.clearing_id IS NULL", accountID, partnerID).
		Where("journal_entries.status <> ?", journal.StatusDraft.String()).
		Order("journal_entries.posting_date, journal_lines.line_no").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]journal.JournalEntryLine, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var _ journal.JournalEntryRepository = (*GormJournalEntryRepository)(nil)
