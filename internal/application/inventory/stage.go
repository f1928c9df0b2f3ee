package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockResult collects what a staged mutation changed. Events are
// published by the caller once the transaction has committed.
type StockResult struct {
	Levels    []*inventory.StockLevel
	Movements []*inventory.StockMovement
	Hold      *inventory.StockHold
	Events    []shared.DomainEvent
}

// Merge appends the content of o
func (r *StockResult) Merge(o *StockResult) {
	if o == nil {
		return
	}
	r.Levels = append(r.Levels, o.Levels...)
	r.Movements = append(r.Movements, o.Movements...)
	r.Events = append(r.Events, o.Events...)
	if o.Hold != nil {
		r.Hold = o.Hold
	}
}

// LockKeys returns the sorted keys of the touched levels
func (r *StockResult) LockKeys() []string {
	keys := make([]string, 0, len(r.Levels))
	for _, l := range r.Levels {
		keys = append(keys, l.Key.LockKey())
	}
	return shared.SortKeys(keys)
}

// Response converts the result for API output. Levels touched more than
// once are reported in their final state.
func (r *StockResult) Response() *OperationResponse {
	resp := &OperationResponse{Movements: ToMovementResponses(r.Movements), NetValue: r.NetValue()}
	seen := make(map[uuid.UUID]int)
	for _, l := range r.Levels {
		if i, ok := seen[l.ID]; ok {
			resp.Levels[i] = ToStockLevelResponse(l)
			continue
		}
		seen[l.ID] = len(resp.Levels)
		resp.Levels = append(resp.Levels, ToStockLevelResponse(l))
	}
	if r.Hold != nil {
		resp.HoldID = &r.Hold.ID
	}
	return resp
}

// NetValue is the signed sum of the movement values
func (r *StockResult) NetValue() decimal.Decimal {
	total := decimal.Zero
	for _, m := range r.Movements {
		total = total.Add(m.TotalCost)
	}
	return total
}

// DriftError reports a level whose quantity differs from the sum of its
// movements. It matches shared.ErrLedgerDrift with errors.Is.
type DriftError struct {
	Key         inventory.StockKey
	Quantity    decimal.Decimal
	MovementSum decimal.Decimal
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("ledger drift on %s: level %s, movements %s", e.Key, e.Quantity, e.MovementSum)
}

// Unwrap returns the domain error
func (e *DriftError) Unwrap() error {
	return shared.ErrLedgerDrift
}

// StageReceive books an inbound movement inside repos' transaction
func (l *StockLedger) StageReceive(ctx context.Context, repos TransactionalRepositories, p ReceivePlan) (*StockResult, error) {
	if err := l.checkInboundBatch(ctx, repos, p.Key, p.NewBatch, p.Compensating); err != nil {
		return nil, err
	}
	level, err := repos.LevelRepo().GetOrCreate(ctx, p.Key)
	if err != nil {
		return nil, err
	}
	m, err := level.Receive(p.Quantity, p.UnitCost, p.Meta)
	if err != nil {
		return nil, err
	}
	return l.commitLevel(ctx, repos, level, m)
}

// StageIssue books an outbound movement inside repos' transaction
func (l *StockLedger) StageIssue(ctx context.Context, repos TransactionalRepositories, p IssuePlan) (*StockResult, error) {
	if !p.Compensating {
		if err := l.checkOutboundBatch(ctx, repos, p.Key, p.Meta.MovementDate); err != nil {
			return nil, err
		}
	}
	level, err := repos.LevelRepo().GetOrCreate(ctx, p.Key)
	if err != nil {
		return nil, err
	}
	m, err := level.Issue(p.Quantity, p.AllowBackorder, p.Meta)
	if err != nil {
		return nil, err
	}
	return l.commitLevel(ctx, repos, level, m)
}

// StageTransfer moves stock between warehouses at the source average cost.
// An in-transit transfer only books the issue and registers the quantity
// on the destination until CompleteTransfer.
func (l *StockLedger) StageTransfer(ctx context.Context, repos TransactionalRepositories, p TransferPlan) (*StockResult, error) {
	if err := l.checkOutboundBatch(ctx, repos, p.From, p.Meta.MovementDate); err != nil {
		return nil, err
	}
	src, err := repos.LevelRepo().GetOrCreate(ctx, p.From)
	if err != nil {
		return nil, err
	}
	dst, err := repos.LevelRepo().GetOrCreate(ctx, p.To)
	if err != nil {
		return nil, err
	}

	outMeta := p.Meta
	outMeta.Type = inventory.MovementTransfer
	outMeta.PeerWarehouseID = &p.To.WarehouseID
	out, err := src.Issue(p.Quantity, false, outMeta)
	if err != nil {
		return nil, err
	}

	if p.InTransit {
		if err := dst.AddInTransit(out.AbsQuantity()); err != nil {
			return nil, err
		}
		result, err := l.commitLevel(ctx, repos, src, out)
		if err != nil {
			return nil, err
		}
		dstResult, err := l.commitLevel(ctx, repos, dst)
		if err != nil {
			return nil, err
		}
		result.Merge(dstResult)
		return result, nil
	}

	inMeta := p.Meta
	inMeta.Type = inventory.MovementTransfer
	inMeta.PeerWarehouseID = &p.From.WarehouseID
	inMeta.CounterpartID = &out.ID
	in, err := dst.Receive(out.AbsQuantity(), out.UnitCost, inMeta)
	if err != nil {
		return nil, err
	}
	out.CounterpartID = &in.ID

	result, err := l.commitLevel(ctx, repos, src, out)
	if err != nil {
		return nil, err
	}
	dstResult, err := l.commitLevel(ctx, repos, dst, in)
	if err != nil {
		return nil, err
	}
	result.Merge(dstResult)
	return result, nil
}

// StageAdjust books a count or a signed correction
func (l *StockLedger) StageAdjust(ctx context.Context, repos TransactionalRepositories, p AdjustPlan) (*StockResult, error) {
	level, err := repos.LevelRepo().GetOrCreate(ctx, p.Key)
	if err != nil {
		return nil, err
	}
	var m *inventory.StockMovement
	if p.Counted != nil {
		m, err = level.CountTo(*p.Counted, p.Meta)
	} else {
		m, err = level.AdjustBy(*p.Delta, p.UnitCost, p.Meta)
	}
	if err != nil {
		return nil, err
	}
	return l.commitLevel(ctx, repos, level, m)
}

// StageCompensate books the opposite of each movement, linked through
// ReversalOfID. Outbound movements come back at their original cost;
// inbound ones leave at the current average and fail on insufficient stock.
func (l *StockLedger) StageCompensate(ctx context.Context, repos TransactionalRepositories, movements []*inventory.StockMovement, reference string, date time.Time) (*StockResult, error) {
	result := &StockResult{}
	for _, m := range movements {
		if m.Quantity.IsZero() || m.ReversalOfID != nil {
			continue
		}
		md := inventory.MovementMeta{
			Type:              compensationType(m.Type),
			ReferenceDocument: reference,
			MovementDate:      date,
			ReversalOfID:      &m.ID,
			PeerWarehouseID:   m.PeerWarehouseID,
		}
		var (
			staged *StockResult
			err    error
		)
		if m.Quantity.IsNegative() {
			staged, err = l.StageReceive(ctx, repos, ReceivePlan{
				Key: m.Key(), Quantity: m.AbsQuantity(), UnitCost: m.UnitCost, Meta: md, Compensating: true,
			})
		} else {
			staged, err = l.StageIssue(ctx, repos, IssuePlan{
				Key: m.Key(), Quantity: m.AbsQuantity(), Meta: md, Compensating: true,
			})
		}
		if err != nil {
			return nil, fmt.Errorf("compensate movement %s: %w", m.ID, err)
		}
		result.Merge(staged)
	}
	return result, nil
}

func compensationType(t inventory.MovementType) inventory.MovementType {
	switch t {
	case inventory.MovementIn:
		return inventory.MovementOut
	case inventory.MovementOut:
		return inventory.MovementIn
	case inventory.MovementTransfer:
		return inventory.MovementTransfer
	}
	return inventory.MovementAdjustment
}

// StageBlock holds quantity on an existing level
func (l *StockLedger) StageBlock(ctx context.Context, repos TransactionalRepositories, key inventory.StockKey, quantity decimal.Decimal, reason, reference string) (*StockResult, error) {
	level, err := repos.LevelRepo().FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	hold, err := level.Block(quantity, reason, reference)
	if err != nil {
		return nil, err
	}
	if err := repos.HoldRepo().Save(ctx, hold); err != nil {
		return nil, err
	}
	result, err := l.commitLevel(ctx, repos, level)
	if err != nil {
		return nil, err
	}
	result.Hold = hold
	return result, nil
}

// StageRelease gives back an active hold
func (l *StockLedger) StageRelease(ctx context.Context, repos TransactionalRepositories, holdID uuid.UUID) (*StockResult, error) {
	hold, err := repos.HoldRepo().FindByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	level, err := repos.LevelRepo().FindByKey(ctx, hold.Key)
	if err != nil {
		return nil, err
	}
	if err := level.Release(hold); err != nil {
		return nil, err
	}
	if err := repos.HoldRepo().Save(ctx, hold); err != nil {
		return nil, err
	}
	result, err := l.commitLevel(ctx, repos, level)
	if err != nil {
		return nil, err
	}
	result.Hold = hold
	return result, nil
}

// StageCompleteTransfer books the receipt of an in-transit transfer
func (l *StockLedger) StageCompleteTransfer(ctx context.Context, repos TransactionalRepositories, out *inventory.StockMovement, date time.Time) (*StockResult, error) {
	if err := ensurePendingTransfer(ctx, repos, out); err != nil {
		return nil, err
	}
	dst, err := repos.LevelRepo().GetOrCreate(ctx, out.Key().WithWarehouse(*out.PeerWarehouseID))
	if err != nil {
		return nil, err
	}
	if err := dst.RemoveInTransit(out.AbsQuantity()); err != nil {
		return nil, err
	}
	result, err := l.commitLevel(ctx, repos, dst)
	if err != nil {
		return nil, err
	}
	in, err := dst.Receive(out.AbsQuantity(), out.UnitCost, inventory.MovementMeta{
		Type:              inventory.MovementTransfer,
		ReferenceDocument: out.ReferenceDocument,
		MovementDate:      date,
		CounterpartID:     &out.ID,
		PeerWarehouseID:   &out.WarehouseID,
	})
	if err != nil {
		return nil, err
	}
	received, err := l.commitLevel(ctx, repos, dst, in)
	if err != nil {
		return nil, err
	}
	result.Merge(received)
	return result, nil
}

// StageCancelTransfer returns an in-transit quantity to its source
func (l *StockLedger) StageCancelTransfer(ctx context.Context, repos TransactionalRepositories, out *inventory.StockMovement, date time.Time) (*StockResult, error) {
	if err := ensurePendingTransfer(ctx, repos, out); err != nil {
		return nil, err
	}
	dst, err := repos.LevelRepo().GetOrCreate(ctx, out.Key().WithWarehouse(*out.PeerWarehouseID))
	if err != nil {
		return nil, err
	}
	if err := dst.RemoveInTransit(out.AbsQuantity()); err != nil {
		return nil, err
	}
	result, err := l.commitLevel(ctx, repos, dst)
	if err != nil {
		return nil, err
	}
	back, err := l.StageReceive(ctx, repos, ReceivePlan{
		Key:      out.Key(),
		Quantity: out.AbsQuantity(),
		UnitCost: out.UnitCost,
		Meta: inventory.MovementMeta{
			Type:              inventory.MovementTransfer,
			ReferenceDocument: out.ReferenceDocument,
			MovementDate:      date,
			ReversalOfID:      &out.ID,
			CounterpartID:     &out.ID,
		},
		Compensating: true,
	})
	if err != nil {
		return nil, err
	}
	result.Merge(back)
	return result, nil
}

// ensurePendingTransfer checks that out is the issue leg of an in-transit
// transfer that was neither completed nor cancelled
func ensurePendingTransfer(ctx context.Context, repos TransactionalRepositories, out *inventory.StockMovement) error {
	if out.Type != inventory.MovementTransfer || !out.Quantity.IsNegative() ||
		out.PeerWarehouseID == nil || out.CounterpartID != nil || out.ReversalOfID != nil {
		return shared.Errorf(shared.ErrInvalidState, "movement %s is not an in-transit transfer", out.ID)
	}
	_, err := repos.MovementRepo().FindByCounterpart(ctx, out.ID)
	switch {
	case err == nil:
		return shared.Errorf(shared.ErrInvalidState, "transfer %s is already closed", out.ID)
	case errors.Is(err, shared.ErrNotFound):
		return nil
	default:
		return err
	}
}

// commitLevel appends the movements and saves the level, then checks
// conservation on the key when verify-on-write is enabled.
func (l *StockLedger) commitLevel(ctx context.Context, repos TransactionalRepositories, level *inventory.StockLevel, movements ...*inventory.StockMovement) (*StockResult, error) {
	if len(movements) > 0 {
		if err := repos.MovementRepo().Append(ctx, movements...); err != nil {
			return nil, err
		}
	}
	if err := repos.LevelRepo().SaveWithLock(ctx, level); err != nil {
		return nil, err
	}
	if l.opts.VerifyOnWrite && len(movements) > 0 {
		sum, err := repos.MovementRepo().SumQuantity(ctx, level.Key)
		if err != nil {
			return nil, err
		}
		if !sum.Equal(level.Quantity) {
			return nil, &DriftError{Key: level.Key, Quantity: level.Quantity, MovementSum: sum}
		}
	}
	return &StockResult{
		Levels:    []*inventory.StockLevel{level},
		Movements: movements,
		Events:    level.PullDomainEvents(),
	}, nil
}

func (l *StockLedger) checkInboundBatch(ctx context.Context, repos TransactionalRepositories, key inventory.StockKey, newBatch *inventory.Batch, compensating bool) error {
	if newBatch != nil {
		return repos.BatchRepo().Save(ctx, newBatch)
	}
	if key.BatchID == nil || compensating {
		return nil
	}
	batch, err := repos.BatchRepo().FindByID(ctx, *key.BatchID)
	if err != nil {
		return err
	}
	if batch.MaterialID != key.MaterialID {
		return shared.Errorf(shared.ErrInvalidInput, "batch %s belongs to another material", batch.BatchNumber)
	}
	return batch.CanReceive()
}

func (l *StockLedger) checkOutboundBatch(ctx context.Context, repos TransactionalRepositories, key inventory.StockKey, at time.Time) error {
	if key.BatchID == nil {
		return nil
	}
	batch, err := repos.BatchRepo().FindByID(ctx, *key.BatchID)
	if err != nil {
		return err
	}
	if err := batch.CanIssue(); err != nil {
		return err
	}
	if at.IsZero() {
		at = time.Now()
	}
	if batch.IsExpiredAt(at) {
		return shared.Errorf(shared.ErrBatchNotAvailable, "batch %s expired on %s", batch.BatchNumber, batch.ExpiresAt.Format(time.DateOnly))
	}
	return nil
}
