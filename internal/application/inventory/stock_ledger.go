package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerOptions tunes the stock ledger
type LedgerOptions struct {
	// VerifyOnWrite compares every written level with its movement sum
	// before the transaction commits
	VerifyOnWrite bool
}

// StockLedger owns every stock mutation. Each public operation locks the
// keys it touches, runs in one transaction and publishes its events after
// the commit. The Stage methods expose the same mutations for callers that
// hold the locks and the transaction themselves.
type StockLedger struct {
	scope     TransactionScope
	levels    inventory.StockLevelRepository
	movements inventory.StockMovementRepository
	batches   inventory.BatchRepository
	holds     inventory.StockHoldRepository
	locker    shared.KeyLocker
	publisher shared.EventPublisher
	metrics   *telemetry.PostingMetrics
	logger    *zap.Logger
	opts      LedgerOptions
}

// NewStockLedger creates a StockLedger. reads serves queries outside of
// any transaction.
func NewStockLedger(
	scope TransactionScope,
	reads TransactionalRepositories,
	locker shared.KeyLocker,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	opts LedgerOptions,
) *StockLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLedger{
		scope:     scope,
		levels:    reads.LevelRepo(),
		movements: reads.MovementRepo(),
		batches:   reads.BatchRepo(),
		holds:     reads.HoldRepo(),
		locker:    locker,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

// SetMetrics sets the metrics recorder
func (l *StockLedger) SetMetrics(m *telemetry.PostingMetrics) {
	l.metrics = m
}

// Receive books an inbound movement
func (l *StockLedger) Receive(ctx context.Context, req ReceiveRequest) (*OperationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "receive")
	defer span.End()

	plan, err := l.PlanReceive(ctx, req)
	if err != nil {
		return nil, err
	}
	return l.execute(ctx, plan.LockKeys(), func(repos TransactionalRepositories) (*StockResult, error) {
		return l.StageReceive(ctx, repos, plan)
	})
}

// OpenBalance books the first movement of a key that has none
func (l *StockLedger) OpenBalance(ctx context.Context, req ReceiveRequest) (*OperationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "open_balance")
	defer span.End()

	plan, err := l.PlanReceive(ctx, req)
	if err != nil {
		return nil, err
	}
	plan.Meta.Type = inventory.MovementInitialBalance
	return l.execute(ctx, plan.LockKeys(), func(repos TransactionalRepositories) (*StockResult, error) {
		n, err := repos.MovementRepo().CountByKey(ctx, plan.Key)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, shared.Errorf(shared.ErrInvalidState, "stock key %s already has %d movements", plan.Key, n)
		}
		return l.StageReceive(ctx, repos, plan)
	})
}

// Issue books an outbound movement
func (l *StockLedger) Issue(ctx context.Context, req IssueRequest) (*OperationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "issue")
	defer span.End()

	plan, err := l.PlanIssue(ctx, req)
	if err != nil {
		return nil, err
	}
	return l.execute(ctx, plan.LockKeys(), func(repos TransactionalRepositories) (*StockResult, error) {
		return l.StageIssue(ctx, repos, plan)
	})
}

// Transfer moves stock between warehouses
func (l *StockLedger) Transfer(ctx context.Context, req TransferRequest) (*OperationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "transfer")
	defer span.End()

	plan, err := l.PlanTransfer(ctx, req)
	if err != nil {
		return nil, err
	}
	return l.execute(ctx, plan.LockKeys(), func(repos TransactionalRepositories) (*StockResult, error) {
		return l.StageTransfer(ctx, repos, plan)
	})
}

// StartTransfer books the issue leg of a two-phase transfer and registers
// the quantity as in transit at the destination
func (l *StockLedger) StartTransfer(ctx context.Context, req TransferRequest) (*OperationResponse, error) {
	req.InTransit = true
	return l.Transfer(ctx, req)
}

// CompleteTransfer books the receipt of an in-transit transfer given the
// ID of its issue movement
func (l *StockLedger) CompleteTransfer(ctx context.Context, issueMovementID uuid.UUID, date *time.Time) (*OperationResponse, error) {
	return l.closeTransfer(ctx, issueMovementID, date, l.StageCompleteTransfer)
}

// CancelTransfer returns an in-transit transfer to its source
func (l *StockLedger) CancelTransfer(ctx context.Context, issueMovementID uuid.UUID, date *time.Time) (*OperationResponse, error) {
	return l.closeTransfer(ctx, issueMovementID, date, l.StageCancelTransfer)
}

type transferStage func(context.Context, TransactionalRepositories, *inventory.StockMovement, time.Time) (*StockResult, error)

func (l *StockLedger) closeTransfer(ctx context.Context, issueMovementID uuid.UUID, date *time.Time, stage transferStage) (*OperationResponse, error) {
	out, err := l.movements.FindByID(ctx, issueMovementID)
	if err != nil {
		return nil, err
	}
	if out.PeerWarehouseID == nil {
		return nil, shared.Errorf(shared.ErrInvalidState, "movement %s is not a transfer", out.ID)
	}
	at := time.Now()
	if date != nil {
		at = *date
	}
	keys := []string{out.Key().LockKey(), out.Key().WithWarehouse(*out.PeerWarehouseID).LockKey()}
	return l.execute(ctx, keys, func(repos TransactionalRepositories) (*StockResult, error) {
		return stage(ctx, repos, out, at)
	})
}

// Adjust books a count or a signed correction
func (l *StockLedger) Adjust(ctx context.Context, req AdjustRequest) (*OperationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "adjust")
	defer span.End()

	plan, err := l.PlanAdjust(ctx, req)
	if err != nil {
		return nil, err
	}
	return l.execute(ctx, plan.LockKeys(), func(repos TransactionalRepositories) (*StockResult, error) {
		return l.StageAdjust(ctx, repos, plan)
	})
}

// Block holds quantity on a key without touching the on-hand quantity
func (l *StockLedger) Block(ctx context.Context, req BlockRequest) (*OperationResponse, error) {
	key, _, err := l.resolveKey(ctx, req.StockKeyInput, false)
	if err != nil {
		return nil, err
	}
	return l.execute(ctx, []string{key.LockKey()}, func(repos TransactionalRepositories) (*StockResult, error) {
		return l.StageBlock(ctx, repos, key, req.Quantity, req.Reason, req.Reference)
	})
}

// Release gives back a hold
func (l *StockLedger) Release(ctx context.Context, holdID uuid.UUID) (*OperationResponse, error) {
	hold, err := l.holds.FindByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	return l.execute(ctx, []string{hold.Key.LockKey()}, func(repos TransactionalRepositories) (*StockResult, error) {
		return l.StageRelease(ctx, repos, holdID)
	})
}

// Level returns the level of a key
func (l *StockLedger) Level(ctx context.Context, in StockKeyInput) (*StockLevelResponse, error) {
	key, _, err := l.resolveKey(ctx, in, false)
	if err != nil {
		return nil, err
	}
	level, err := l.levels.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	resp := ToStockLevelResponse(level)
	return &resp, nil
}

// ListLevels lists levels
func (l *StockLedger) ListLevels(ctx context.Context, filter LevelListFilter) ([]StockLevelResponse, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	levels, err := l.levels.List(ctx, inventory.LevelFilter{
		MaterialID:  filter.MaterialID,
		WarehouseID: filter.WarehouseID,
		FrozenOnly:  filter.FrozenOnly,
		Limit:       filter.PageSize,
		Offset:      (filter.Page - 1) * filter.PageSize,
	})
	if err != nil {
		return nil, err
	}
	out := make([]StockLevelResponse, len(levels))
	for i, lv := range levels {
		out[i] = ToStockLevelResponse(lv)
	}
	return out, nil
}

// Movements lists the movements of a key in booking order
func (l *StockLedger) Movements(ctx context.Context, in StockKeyInput, limit int) ([]MovementResponse, error) {
	key, _, err := l.resolveKey(ctx, in, false)
	if err != nil {
		return nil, err
	}
	ms, err := l.movements.FindByKey(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	return ToMovementResponses(ms), nil
}

// MovementsByReference lists the movements booked for a reference document
func (l *StockLedger) MovementsByReference(ctx context.Context, reference string) ([]*inventory.StockMovement, error) {
	return l.movements.FindByReference(ctx, reference)
}

// Locker returns the key locker shared with callers staging mutations
func (l *StockLedger) Locker() shared.KeyLocker {
	return l.locker
}

// execute locks keys, runs stage in a transaction and publishes the
// resulting events once the locks are released
func (l *StockLedger) execute(ctx context.Context, keys []string, stage func(repos TransactionalRepositories) (*StockResult, error)) (*OperationResponse, error) {
	unlock, err := l.locker.LockKeys(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *StockResult
	err = l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		result, err = stage(repos)
		return err
	})
	if err != nil {
		l.FreezeOnDrift(ctx, err)
		l.logRejection(ctx, err)
		return nil, err
	}
	unlock()

	l.metrics.RecordMovements(ctx, result.Movements)
	l.Publish(ctx, result.Events)
	return result.Response(), nil
}

// Publish sends events to the event bus. Failures are logged only: the
// state they describe is already committed.
func (l *StockLedger) Publish(ctx context.Context, events []shared.DomainEvent) {
	if l.publisher == nil || len(events) == 0 {
		return
	}
	if err := l.publisher.Publish(ctx, events...); err != nil {
		l.logger.Warn("Failed to publish stock events", zap.Int("count", len(events)), zap.Error(err))
	}
}

func (l *StockLedger) logRejection(ctx context.Context, err error) {
	if shared.IsRecoverable(err) {
		l.logger.Warn("Stock operation rejected", zap.Error(err))
		return
	}
	if !errors.Is(err, shared.ErrLedgerDrift) {
		l.logger.Error("Stock operation failed", zap.Error(err))
	}
}
