package inventory

import (
	"context"
	"errors"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Verify compares a level with the sum of its movements under the key's
// lock. On mismatch the key is frozen, the drift is logged at error and
// published, and a *DriftError is returned.
func (l *StockLedger) Verify(ctx context.Context, in StockKeyInput) (*VerifyResponse, error) {
	key, _, err := l.resolveKey(ctx, in, false)
	if err != nil {
		return nil, err
	}
	return l.VerifyKey(ctx, key)
}

// VerifyKey is Verify for a resolved key
func (l *StockLedger) VerifyKey(ctx context.Context, key inventory.StockKey) (*VerifyResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "verify")
	defer span.End()

	unlock, err := l.locker.LockKeys(ctx, key.LockKey())
	if err != nil {
		return nil, err
	}
	defer unlock()

	resp := &VerifyResponse{Key: key, Quantity: decimal.Zero}
	var drifted *inventory.StockLevel
	err = l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		sum, err := repos.MovementRepo().SumQuantity(ctx, key)
		if err != nil {
			return err
		}
		count, err := repos.MovementRepo().CountByKey(ctx, key)
		if err != nil {
			return err
		}
		resp.MovementSum, resp.Movements = sum, count

		level, err := repos.LevelRepo().FindByKey(ctx, key)
		if errors.Is(err, shared.ErrNotFound) {
			resp.Consistent = sum.IsZero()
			return nil
		}
		if err != nil {
			return err
		}
		resp.Quantity = level.Quantity
		resp.Consistent = level.Quantity.Equal(sum)
		if resp.Consistent || level.Frozen {
			return nil
		}
		level.Freeze("quantity " + level.Quantity.String() + " differs from movement sum " + sum.String())
		if err := repos.LevelRepo().SaveWithLock(ctx, level); err != nil {
			return err
		}
		drifted = level
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !resp.Consistent {
		drift := &DriftError{Key: key, Quantity: resp.Quantity, MovementSum: resp.MovementSum}
		if drifted != nil {
			l.reportDrift(ctx, drifted, drift)
		}
		telemetry.RecordError(span, drift)
		return resp, drift
	}
	return resp, nil
}

// Reconcile rebuilds a level from its movements and unfreezes it. It is
// the only way to lift a freeze and it never changes a movement.
func (l *StockLedger) Reconcile(ctx context.Context, req ReconcileRequest) (*StockLevelResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock_ledger", "reconcile")
	defer span.End()

	key, _, err := l.resolveKey(ctx, req.StockKeyInput, false)
	if err != nil {
		return nil, err
	}
	unlock, err := l.locker.LockKeys(ctx, key.LockKey())
	if err != nil {
		return nil, err
	}
	defer unlock()

	var level *inventory.StockLevel
	err = l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		level, err = repos.LevelRepo().FindByKey(ctx, key)
		if err != nil {
			return err
		}
		sum, err := repos.MovementRepo().SumQuantity(ctx, key)
		if err != nil {
			return err
		}
		previous := level.Quantity
		level.Reconcile(sum)
		if err := repos.LevelRepo().SaveWithLock(ctx, level); err != nil {
			return err
		}
		level.AddDomainEvent(inventory.NewLedgerReconciledEvent(level, previous, sum, req.Operator))
		l.logger.Warn("Stock level reconciled",
			zap.String("key", key.String()),
			zap.String("previous_quantity", previous.String()),
			zap.String("movement_sum", sum.String()),
			zap.String("operator", req.Operator),
			zap.String("note", req.Note),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Publish(ctx, level.PullDomainEvents())
	resp := ToStockLevelResponse(level)
	return &resp, nil
}

// FreezeOnDrift freezes the key named by a *DriftError in err. It runs in
// its own transaction because the one that detected the drift was rolled
// back. The caller must still hold the key's lock.
func (l *StockLedger) FreezeOnDrift(ctx context.Context, err error) {
	var drift *DriftError
	if !errors.As(err, &drift) {
		return
	}
	var level *inventory.StockLevel
	ferr := l.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		level, err = repos.LevelRepo().FindByKey(ctx, drift.Key)
		if err != nil {
			return err
		}
		sum, err := repos.MovementRepo().SumQuantity(ctx, drift.Key)
		if err != nil {
			return err
		}
		if level.Frozen {
			level = nil
			return nil
		}
		drift.Quantity, drift.MovementSum = level.Quantity, sum
		level.Freeze("quantity " + level.Quantity.String() + " differs from movement sum " + sum.String())
		return repos.LevelRepo().SaveWithLock(ctx, level)
	})
	if ferr != nil {
		l.logger.Error("Failed to freeze drifted stock key",
			zap.String("key", drift.Key.String()),
			zap.Error(ferr),
		)
		return
	}
	if level != nil {
		l.reportDrift(ctx, level, drift)
	}
}

func (l *StockLedger) reportDrift(ctx context.Context, level *inventory.StockLevel, drift *DriftError) {
	l.logger.Error("Ledger drift detected, stock key frozen",
		zap.String("key", drift.Key.String()),
		zap.String("level_quantity", drift.Quantity.String()),
		zap.String("movement_sum", drift.MovementSum.String()),
		zap.String("drift", drift.Quantity.Sub(drift.MovementSum).String()),
	)
	l.metrics.RecordLedgerDrift(ctx)
	l.Publish(ctx, []shared.DomainEvent{inventory.NewLedgerDriftDetectedEvent(level, drift.MovementSum)})
}
