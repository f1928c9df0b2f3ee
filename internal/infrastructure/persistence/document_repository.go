package persistence

import (
	"context"

	"github.com/erp/posting/internal/domain/posting"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDocumentRepository implements DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

// FindByID loads a document with its lines
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*posting.BusinessDocument, error) {
	var m models.DocumentModel
	if err := r.db.WithContext(ctx).Preload("Lines", preloadLines).First(&m, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err, "document %s", id)
	}
	return m.ToDomain()
}

// List returns a page of documents and the total count. Documents are
// newest first unless filter names a sort column.
func (r *GormDocumentRepository) List(ctx context.Context, filter posting.DocumentFilter) ([]*posting.BusinessDocument, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.DocumentModel{})
	if filter.Type != nil {
		query = query.Where("document_type = ?", string(*filter.Type))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var rows []models.DocumentModel
	if err := query.Preload("Lines", preloadLines).
		Order(ValidateSortField(filter.SortBy, DocumentSortFields, "created_at") + " " + ValidateSortOrder(filter.SortOrder)).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]*posting.BusinessDocument, 0, len(rows))
	for i := range rows {
		d, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, nil
}

// Create inserts a document with its lines
func (r *GormDocumentRepository) Create(ctx context.Context, doc *posting.BusinessDocument) error {
	return r.db.WithContext(ctx).Create(models.DocumentModelFromDomain(doc)).Error
}

// SaveWithLock updates the header and the line stamps with optimistic
// locking (checks version)
func (r *GormDocumentRepository) SaveWithLock(ctx context.Context, doc *posting.BusinessDocument) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.DocumentModel{}).
		Where("id = ? AND version = ?", doc.ID, doc.Version-1).
		Updates(map[string]any{
			"status":            doc.Status.String(),
			"journal_entry_id":  doc.JournalEntryID,
			"reversal_entry_id": doc.ReversalEntryID,
			"payment_entry_id":  doc.PaymentEntryID,
			"clearing_id":       doc.ClearingID,
			"posted_at":         doc.PostedAt,
			"cancelled_at":      doc.CancelledAt,
			"paid_at":           doc.PaidAt,
			"version":           doc.Version,
			"updated_at":        doc.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return conflict("document %s", doc.ID)
	}

	for i := range doc.Lines {
		l := models.DocumentLineModelFromDomain(doc.ID, &doc.Lines[i])
		if err := db.Model(&models.DocumentLineModel{}).
			Where("id = ?", l.ID).
			Updates(map[string]any{
				"base_amount":   l.BaseAmount,
				"tax_rule_id":   l.TaxRuleID,
				"cfop":          l.CFOP,
				"cst_icms":      l.CSTICMS,
				"icms_value":    l.ICMSValue,
				"ipi_value":     l.IPIValue,
				"pis_value":     l.PISValue,
				"cofins_value":  l.COFINSValue,
				"total_tax":     l.TotalTax,
				"cost_of_goods": l.CostOfGoods,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a draft and its lines
func (r *GormDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("document_id = ?", id).Delete(&models.DocumentLineModel{}).Error; err != nil {
		return err
	}
	result := db.Where("id = ? AND status = ?", id, posting.StatusDraft.String()).Delete(&models.DocumentModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.Errorf(shared.ErrNotFound, "draft document %s not found", id)
	}
	return nil
}

var _ posting.DocumentRepository = (*GormDocumentRepository)(nil)
