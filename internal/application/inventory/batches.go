package inventory

import (
	"context"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
)

// RegisterBatchRequest creates a batch ahead of its first receipt
type RegisterBatchRequest struct {
	MaterialID uuid.UUID `json:"material_id" binding:"required"`
	BatchInput
}

// RegisterBatch creates a batch. Batch numbers are unique per material.
func (l *StockLedger) RegisterBatch(ctx context.Context, req RegisterBatchRequest) (*BatchResponse, error) {
	if _, err := l.batches.FindByNumber(ctx, req.MaterialID, req.BatchNumber); err == nil {
		return nil, shared.Errorf(shared.ErrAlreadyExists, "batch %s already exists", req.BatchNumber)
	}
	batch, err := inventory.NewBatch(req.MaterialID, *req.BatchInput.ref())
	if err != nil {
		return nil, err
	}
	if err := l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.BatchRepo().Save(ctx, batch)
	}); err != nil {
		return nil, err
	}
	resp := ToBatchResponse(batch)
	return &resp, nil
}

// Batch returns a batch
func (l *StockLedger) Batch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	batch, err := l.batches.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToBatchResponse(batch)
	return &resp, nil
}

// BlockBatch stops issues from a batch
func (l *StockLedger) BlockBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	return l.updateBatch(ctx, id, func(_ TransactionalRepositories, b *inventory.Batch) error {
		return b.Block()
	})
}

// ExpireBatch marks a batch expired
func (l *StockLedger) ExpireBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	return l.updateBatch(ctx, id, func(_ TransactionalRepositories, b *inventory.Batch) error {
		return b.Expire()
	})
}

// ConsumeBatch closes a batch that has no stock left in any warehouse
func (l *StockLedger) ConsumeBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	return l.updateBatch(ctx, id, func(repos TransactionalRepositories, b *inventory.Batch) error {
		onHand, err := repos.MovementRepo().SumQuantityByBatch(ctx, b.ID)
		if err != nil {
			return err
		}
		if !onHand.IsZero() {
			return shared.Errorf(shared.ErrInvalidState, "batch %s still has %s on hand", b.BatchNumber, onHand)
		}
		return b.Consume()
	})
}

// DeactivateBatch hides a batch from further use
func (l *StockLedger) DeactivateBatch(ctx context.Context, id uuid.UUID) (*BatchResponse, error) {
	return l.updateBatch(ctx, id, func(_ TransactionalRepositories, b *inventory.Batch) error {
		b.Deactivate()
		return nil
	})
}

func (l *StockLedger) updateBatch(ctx context.Context, id uuid.UUID, fn func(TransactionalRepositories, *inventory.Batch) error) (*BatchResponse, error) {
	var batch *inventory.Batch
	err := l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		batch, err = repos.BatchRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(repos, batch); err != nil {
			return err
		}
		return repos.BatchRepo().Save(ctx, batch)
	})
	if err != nil {
		return nil, err
	}
	resp := ToBatchResponse(batch)
	return &resp, nil
}
