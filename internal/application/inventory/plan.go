package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// A plan is a ledger mutation whose stock keys are fully resolved, so the
// caller can lock them before the transaction that stages it. Batches named
// by an unknown number get their ID here and are inserted by the stage.

// ReceivePlan is a resolved inbound movement
type ReceivePlan struct {
	Key      inventory.StockKey
	NewBatch *inventory.Batch
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
	Meta     inventory.MovementMeta
	// Compensating receipts restore stock of a cancelled posting and skip
	// the batch status check.
	Compensating bool
}

// IssuePlan is a resolved outbound movement
type IssuePlan struct {
	Key            inventory.StockKey
	Quantity       decimal.Decimal
	AllowBackorder bool
	Meta           inventory.MovementMeta
	Compensating   bool
}

// TransferPlan is a resolved warehouse transfer
type TransferPlan struct {
	From      inventory.StockKey
	To        inventory.StockKey
	Quantity  decimal.Decimal
	InTransit bool
	Meta      inventory.MovementMeta
}

// AdjustPlan is a resolved adjustment; Counted and Delta are exclusive
type AdjustPlan struct {
	Key      inventory.StockKey
	Counted  *decimal.Decimal
	Delta    *decimal.Decimal
	UnitCost decimal.Decimal
	Meta     inventory.MovementMeta
}

// LockKeys returns the keys the plan touches
func (p ReceivePlan) LockKeys() []string { return []string{p.Key.LockKey()} }

// LockKeys returns the keys the plan touches
func (p IssuePlan) LockKeys() []string { return []string{p.Key.LockKey()} }

// LockKeys returns the keys the plan touches
func (p TransferPlan) LockKeys() []string { return []string{p.From.LockKey(), p.To.LockKey()} }

// LockKeys returns the keys the plan touches
func (p AdjustPlan) LockKeys() []string { return []string{p.Key.LockKey()} }

// PlanReceive resolves a receive request
func (l *StockLedger) PlanReceive(ctx context.Context, req ReceiveRequest) (ReceivePlan, error) {
	key, newBatch, err := l.resolveKey(ctx, req.StockKeyInput, true)
	if err != nil {
		return ReceivePlan{}, err
	}
	if !req.Quantity.IsPositive() {
		return ReceivePlan{}, shared.Errorf(shared.ErrInvalidInput, "receipt quantity must be positive")
	}
	return ReceivePlan{
		Key:      key,
		NewBatch: newBatch,
		Quantity: req.Quantity,
		UnitCost: req.UnitCost,
		Meta:     meta(inventory.MovementIn, req.Reference, req.MovementDate),
	}, nil
}

// PlanIssue resolves an issue request
func (l *StockLedger) PlanIssue(ctx context.Context, req IssueRequest) (IssuePlan, error) {
	key, _, err := l.resolveKey(ctx, req.StockKeyInput, false)
	if err != nil {
		return IssuePlan{}, err
	}
	if !req.Quantity.IsPositive() {
		return IssuePlan{}, shared.Errorf(shared.ErrInvalidInput, "issue quantity must be positive")
	}
	return IssuePlan{
		Key:            key,
		Quantity:       req.Quantity,
		AllowBackorder: req.AllowBackorder,
		Meta:           meta(inventory.MovementOut, req.Reference, req.MovementDate),
	}, nil
}

// PlanTransfer resolves a transfer request. The batch travels with the stock.
func (l *StockLedger) PlanTransfer(ctx context.Context, req TransferRequest) (TransferPlan, error) {
	from, _, err := l.resolveKey(ctx, req.StockKeyInput, false)
	if err != nil {
		return TransferPlan{}, err
	}
	if req.DestWarehouseID == uuid.Nil || req.DestWarehouseID == from.WarehouseID {
		return TransferPlan{}, shared.Errorf(shared.ErrInvalidInput, "transfer requires a different destination warehouse")
	}
	if !req.Quantity.IsPositive() {
		return TransferPlan{}, shared.Errorf(shared.ErrInvalidInput, "transfer quantity must be positive")
	}
	return TransferPlan{
		From:      from,
		To:        from.WithWarehouse(req.DestWarehouseID),
		Quantity:  req.Quantity,
		InTransit: req.InTransit,
		Meta:      meta(inventory.MovementTransfer, req.Reference, req.MovementDate),
	}, nil
}

// PlanAdjust resolves an adjustment request
func (l *StockLedger) PlanAdjust(ctx context.Context, req AdjustRequest) (AdjustPlan, error) {
	if (req.CountedQuantity == nil) == (req.Delta == nil) {
		return AdjustPlan{}, shared.Errorf(shared.ErrInvalidInput, "exactly one of counted_quantity and delta is required")
	}
	key, newBatch, err := l.resolveKey(ctx, req.StockKeyInput, req.Delta != nil && req.Delta.IsPositive())
	if err != nil {
		return AdjustPlan{}, err
	}
	if newBatch != nil {
		return AdjustPlan{}, shared.Errorf(shared.ErrBatchNotAvailable, "batch %s does not exist", newBatch.BatchNumber)
	}
	return AdjustPlan{
		Key:      key,
		Counted:  req.CountedQuantity,
		Delta:    req.Delta,
		UnitCost: req.UnitCost,
		Meta:     meta(inventory.MovementAdjustment, req.Reference, req.MovementDate),
	}, nil
}

// resolveKey turns a key input into a stock key. A batch given by number
// is looked up; when it does not exist and create is set a new batch is
// prepared, otherwise the request fails.
func (l *StockLedger) resolveKey(ctx context.Context, in StockKeyInput, create bool) (inventory.StockKey, *inventory.Batch, error) {
	key, err := inventory.NewStockKey(in.MaterialID, in.WarehouseID, in.BatchID)
	if err != nil {
		return key, nil, err
	}
	if in.BatchID != nil || in.Batch == nil {
		return key, nil, nil
	}
	batch, err := l.batches.FindByNumber(ctx, in.MaterialID, in.Batch.BatchNumber)
	switch {
	case err == nil:
		key.BatchID = &batch.ID
		return key, nil, nil
	case !errors.Is(err, shared.ErrNotFound):
		return key, nil, err
	case !create:
		return key, nil, shared.Errorf(shared.ErrBatchNotAvailable, "batch %s does not exist", in.Batch.BatchNumber)
	}
	batch, err = inventory.NewBatch(in.MaterialID, *in.Batch.ref())
	if err != nil {
		return key, nil, err
	}
	key.BatchID = &batch.ID
	return key, batch, nil
}

func meta(t inventory.MovementType, reference string, date *time.Time) inventory.MovementMeta {
	m := inventory.MovementMeta{Type: t, ReferenceDocument: reference}
	if date != nil {
		m.MovementDate = *date
	}
	return m
}
