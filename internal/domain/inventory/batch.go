package inventory

import (
	"strings"
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
)

// BatchStatus is the lifecycle of a batch. It only moves forward.
type BatchStatus string

const (
	BatchAvailable BatchStatus = "AVAILABLE"
	BatchBlocked   BatchStatus = "BLOCKED"
	BatchExpired   BatchStatus = "EXPIRED"
	BatchConsumed  BatchStatus = "CONSUMED"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchAvailable: {BatchBlocked, BatchExpired, BatchConsumed},
	BatchBlocked:   {BatchExpired, BatchConsumed},
	BatchExpired:   {BatchConsumed},
	BatchConsumed:  {},
}

// CanTransitionTo reports whether next is a forward step from s
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// BatchRef names a batch on an inbound request. Unknown numbers create a
// new batch on receipt.
type BatchRef struct {
	BatchNumber      string
	ManufacturedAt   *time.Time
	ExpiresAt        *time.Time
	SupplierBatchRef string
}

// Batch is a lot of a material received together. Its identity is
// (MaterialID, BatchNumber). Batches are never deleted.
type Batch struct {
	shared.BaseEntity
	MaterialID       uuid.UUID
	BatchNumber      string
	ManufacturedAt   *time.Time
	ExpiresAt        *time.Time
	SupplierBatchRef string
	Status           BatchStatus
	Active           bool
}

// NewBatch creates an available batch
func NewBatch(materialID uuid.UUID, ref BatchRef) (*Batch, error) {
	number := strings.TrimSpace(ref.BatchNumber)
	if materialID == uuid.Nil {
		return nil, shared.Errorf(shared.ErrInvalidInput, "material ID cannot be empty")
	}
	if number == "" {
		return nil, shared.Errorf(shared.ErrInvalidInput, "batch number cannot be empty")
	}
	if ref.ManufacturedAt != nil && ref.ExpiresAt != nil && ref.ExpiresAt.Before(*ref.ManufacturedAt) {
		return nil, shared.Errorf(shared.ErrInvalidInput, "batch %s expires before it was manufactured", number)
	}
	return &Batch{
		BaseEntity:       shared.NewBaseEntity(),
		MaterialID:       materialID,
		BatchNumber:      number,
		ManufacturedAt:   ref.ManufacturedAt,
		ExpiresAt:        ref.ExpiresAt,
		SupplierBatchRef: ref.SupplierBatchRef,
		Status:           BatchAvailable,
		Active:           true,
	}, nil
}

// IsExpiredAt reports whether the expiration date has passed
func (b *Batch) IsExpiredAt(at time.Time) bool {
	return b.ExpiresAt != nil && b.ExpiresAt.Before(at)
}

// CanIssue checks that stock may leave this batch
func (b *Batch) CanIssue() error {
	if !b.Active || b.Status != BatchAvailable {
		return shared.Errorf(shared.ErrBatchNotAvailable, "batch %s is %s", b.BatchNumber, b.describe())
	}
	return nil
}

// CanReceive checks that stock may enter this batch
func (b *Batch) CanReceive() error {
	if !b.Active || b.Status == BatchExpired || b.Status == BatchConsumed {
		return shared.Errorf(shared.ErrBatchNotAvailable, "batch %s is %s", b.BatchNumber, b.describe())
	}
	return nil
}

// Block stops issues from the batch, e.g. for a quality hold
func (b *Batch) Block() error {
	return b.transition(BatchBlocked)
}

// Expire marks the batch expired
func (b *Batch) Expire() error {
	return b.transition(BatchExpired)
}

// Consume closes the batch. The caller checks that no stock remains.
func (b *Batch) Consume() error {
	return b.transition(BatchConsumed)
}

// Deactivate hides the batch from further use without deleting it
func (b *Batch) Deactivate() {
	b.Active = false
	b.Touch()
}

func (b *Batch) transition(next BatchStatus) error {
	if !b.Status.CanTransitionTo(next) {
		return shared.Errorf(shared.ErrInvalidState, "batch %s cannot move from %s to %s", b.BatchNumber, b.Status, next)
	}
	b.Status = next
	b.Touch()
	return nil
}

func (b *Batch) describe() string {
	if !b.Active {
		return "inactive"
	}
	return strings.ToLower(string(b.Status))
}
