package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/lock"
	"github.com/erp/posting/internal/infrastructure/persistence"
	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"github.com/erp/posting/internal/infrastructure/persistence/testdb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type ledgerFixture struct {
	db        *gorm.DB
	ledger    *inventoryapp.StockLedger
	publisher *recordingPublisher
	key       inventoryapp.StockKeyInput
}

func newLedger(t *testing.T) *ledgerFixture {
	t.Helper()
	db := testdb.New(t)
	publisher := &recordingPublisher{}
	ledger := inventoryapp.NewStockLedger(
		persistence.NewGormTransactionScope(db).Inventory(),
		persistence.NewGormRepositories(db),
		lock.NewLocalKeyLocker(5*time.Second),
		publisher,
		zap.NewNop(),
		inventoryapp.LedgerOptions{VerifyOnWrite: true},
	)
	return &ledgerFixture{
		db:        db,
		ledger:    ledger,
		publisher: publisher,
		key:       inventoryapp.StockKeyInput{MaterialID: uuid.New(), WarehouseID: uuid.New()},
	}
}

func (f *ledgerFixture) receive(t *testing.T, qty, cost string) *inventoryapp.OperationResponse {
	t.Helper()
	resp, err := f.ledger.Receive(context.Background(), inventoryapp.ReceiveRequest{
		StockKeyInput: f.key, Quantity: d(qty), UnitCost: d(cost), Reference: "PO-1",
	})
	require.NoError(t, err)
	return resp
}

func (f *ledgerFixture) level(t *testing.T, key inventoryapp.StockKeyInput) *inventoryapp.StockLevelResponse {
	t.Helper()
	lv, err := f.ledger.Level(context.Background(), key)
	require.NoError(t, err)
	return lv
}

func TestStockLedger_ReceiveAndIssue_MovingAverage(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()

	f.receive(t, "10", "2")
	resp := f.receive(t, "10", "4")
	require.Len(t, resp.Levels, 1)
	assert.True(t, d("20").Equal(resp.Levels[0].Quantity))
	assert.True(t, d("3").Equal(resp.Levels[0].AverageUnitCost))

	out, err := f.ledger.Issue(ctx, inventoryapp.IssueRequest{StockKeyInput: f.key, Quantity: d("5"), Reference: "SO-1"})
	require.NoError(t, err)
	require.Len(t, out.Movements, 1)
	assert.True(t, d("-5").Equal(out.Movements[0].Quantity))
	assert.True(t, d("3").Equal(out.Movements[0].UnitCost))
	assert.True(t, d("-15").Equal(out.NetValue))

	lv := f.level(t, f.key)
	assert.True(t, d("15").Equal(lv.Quantity))
	assert.True(t, d("3").Equal(lv.AverageUnitCost), "issues leave the average unchanged")

	movements, err := f.ledger.Movements(ctx, f.key, 0)
	require.NoError(t, err)
	assert.Len(t, movements, 3)

	assert.Equal(t, []string{
		inventory.EventTypeStockReceived, inventory.EventTypeAverageCostChanged,
		inventory.EventTypeStockReceived, inventory.EventTypeAverageCostChanged,
		inventory.EventTypeStockIssued,
	}, f.publisher.types())
}

func TestStockLedger_Issue_InsufficientStockRollsBack(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	f.receive(t, "3", "1")

	_, err := f.ledger.Issue(ctx, inventoryapp.IssueRequest{StockKeyInput: f.key, Quantity: d("4"), Reference: "SO-1"})
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	movements, err := f.ledger.Movements(ctx, f.key, 0)
	require.NoError(t, err)
	assert.Len(t, movements, 1)

	backorder, err := f.ledger.Issue(ctx, inventoryapp.IssueRequest{
		StockKeyInput: f.key, Quantity: d("4"), AllowBackorder: true, Reference: "SO-2",
	})
	require.NoError(t, err)
	assert.True(t, d("-1").Equal(backorder.Levels[0].Quantity))
}

func TestStockLedger_Issue_RejectsNonPositive(t *testing.T) {
	f := newLedger(t)
	_, err := f.ledger.Issue(context.Background(), inventoryapp.IssueRequest{StockKeyInput: f.key, Quantity: d("0"), Reference: "SO-1"})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestStockLedger_OpenBalance(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	req := inventoryapp.ReceiveRequest{StockKeyInput: f.key, Quantity: d("7"), UnitCost: d("1.5"), Reference: "OPEN"}

	resp, err := f.ledger.OpenBalance(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.MovementInitialBalance), resp.Movements[0].Type)

	_, err = f.ledger.OpenBalance(ctx, req)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestStockLedger_Transfer(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	f.receive(t, "10", "2.5")
	dest := f.key
	dest.WarehouseID = uuid.New()

	resp, err := f.ledger.Transfer(ctx, inventoryapp.TransferRequest{
		StockKeyInput: f.key, DestWarehouseID: dest.WarehouseID, Quantity: d("4"), Reference: "TR-1",
	})
	require.NoError(t, err)
	require.Len(t, resp.Movements, 2)
	out, in := resp.Movements[0], resp.Movements[1]
	require.NotNil(t, out.CounterpartID)
	require.NotNil(t, in.CounterpartID)
	assert.Equal(t, in.ID, *out.CounterpartID)
	assert.Equal(t, out.ID, *in.CounterpartID)
	assert.True(t, resp.NetValue.IsZero())

	assert.True(t, d("6").Equal(f.level(t, f.key).Quantity))
	destLevel := f.level(t, dest)
	assert.True(t, d("4").Equal(destLevel.Quantity))
	assert.True(t, d("2.5").Equal(destLevel.AverageUnitCost))

	_, err = f.ledger.Transfer(ctx, inventoryapp.TransferRequest{
		StockKeyInput: f.key, DestWarehouseID: f.key.WarehouseID, Quantity: d("1"), Reference: "TR-2",
	})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestStockLedger_InTransitTransfer(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	f.receive(t, "10", "1")
	dest := f.key
	dest.WarehouseID = uuid.New()

	started, err := f.ledger.StartTransfer(ctx, inventoryapp.TransferRequest{
		StockKeyInput: f.key, DestWarehouseID: dest.WarehouseID, Quantity: d("3"), Reference: "TR-1",
	})
	require.NoError(t, err)
	require.Len(t, started.Movements, 1)
	issueID := started.Movements[0].ID

	lv := f.level(t, dest)
	assert.True(t, lv.Quantity.IsZero())
	assert.True(t, d("3").Equal(lv.InTransitQuantity))

	_, err = f.ledger.CompleteTransfer(ctx, issueID, nil)
	require.NoError(t, err)
	lv = f.level(t, dest)
	assert.True(t, d("3").Equal(lv.Quantity))
	assert.True(t, lv.InTransitQuantity.IsZero())

	_, err = f.ledger.CompleteTransfer(ctx, issueID, nil)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	_, err = f.ledger.CancelTransfer(ctx, issueID, nil)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestStockLedger_CancelTransfer(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	f.receive(t, "10", "1")
	destWarehouse := uuid.New()

	started, err := f.ledger.StartTransfer(ctx, inventoryapp.TransferRequest{
		StockKeyInput: f.key, DestWarehouseID: destWarehouse, Quantity: d("3"), Reference: "TR-1",
	})
	require.NoError(t, err)

	_, err = f.ledger.CancelTransfer(ctx, started.Movements[0].ID, nil)
	require.NoError(t, err)
	assert.True(t, d("10").Equal(f.level(t, f.key).Quantity))

	dest := f.key
	dest.WarehouseID = destWarehouse
	assert.True(t, f.level(t, dest).InTransitQuantity.IsZero())
}

func TestStockLedger_Adjust(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	f.receive(t, "10", "2")

	counted, err := f.ledger.Adjust(ctx, inventoryapp.AdjustRequest{StockKeyInput: f.key, CountedQuantity: dp("8"), Reference: "CNT-1"})
	require.NoError(t, err)
	assert.True(t, d("-2").Equal(counted.Movements[0].Quantity))
	assert.True(t, d("-4").Equal(counted.NetValue))

	same, err := f.ledger.Adjust(ctx, inventoryapp.AdjustRequest{StockKeyInput: f.key, CountedQuantity: dp("8"), Reference: "CNT-2"})
	require.NoError(t, err)
	require.Len(t, same.Movements, 1, "a matching count is still recorded")
	assert.True(t, same.Movements[0].Quantity.IsZero())

	delta, err := f.ledger.Adjust(ctx, inventoryapp.AdjustRequest{StockKeyInput: f.key, Delta: dp("2"), UnitCost: d("5"), Reference: "ADJ-1"})
	require.NoError(t, err)
	assert.True(t, d("10").Equal(delta.Levels[0].Quantity))

	_, err = f.ledger.Adjust(ctx, inventoryapp.AdjustRequest{StockKeyInput: f.key, CountedQuantity: dp("1"), Delta: dp("1"), Reference: "ADJ-2"})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestStockLedger_BlockAndRelease(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	f.receive(t, "10", "1")

	blocked, err := f.ledger.Block(ctx, inventoryapp.BlockRequest{StockKeyInput: f.key, Quantity: d("4"), Reason: "count"})
	require.NoError(t, err)
	require.NotNil(t, blocked.HoldID)
	assert.Empty(t, blocked.Movements)
	assert.True(t, d("10").Equal(blocked.Levels[0].Quantity))
	assert.True(t, d("6").Equal(blocked.Levels[0].AvailableQuantity))

	_, err = f.ledger.Issue(ctx, inventoryapp.IssueRequest{StockKeyInput: f.key, Quantity: d("7"), Reference: "SO-1"})
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	released, err := f.ledger.Release(ctx, *blocked.HoldID)
	require.NoError(t, err)
	assert.True(t, d("10").Equal(released.Levels[0].AvailableQuantity))

	_, err = f.ledger.Release(ctx, *blocked.HoldID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestStockLedger_NewBatchRaceIsAConflict(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	key := f.key
	key.Batch = &inventoryapp.BatchInput{BatchNumber: "LOT-RACE"}
	req := inventoryapp.ReceiveRequest{StockKeyInput: key, Quantity: d("2"), UnitCost: d("1"), Reference: "PO-1"}

	// both receipts plan before either registers the batch
	first, err := f.ledger.PlanReceive(ctx, req)
	require.NoError(t, err)
	second, err := f.ledger.PlanReceive(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, first.NewBatch)
	require.NotNil(t, second.NewBatch)
	assert.NotEqual(t, first.Key.LockKey(), second.Key.LockKey())

	scope := persistence.NewGormTransactionScope(f.db).Inventory()
	stage := func(p inventoryapp.ReceivePlan) error {
		return scope.Execute(ctx, func(repos inventoryapp.TransactionalRepositories) error {
			_, err := f.ledger.StageReceive(ctx, repos, p)
			return err
		})
	}
	require.NoError(t, stage(first))
	err = stage(second)
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict), "got %v", err)

	var batches int64
	require.NoError(t, f.db.Model(&models.BatchModel{}).Where("batch_number = ?", "LOT-RACE").Count(&batches).Error)
	assert.Equal(t, int64(1), batches)
}

func TestStockLedger_Batches(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	key := f.key
	key.Batch = &inventoryapp.BatchInput{BatchNumber: "LOT-1"}

	resp, err := f.ledger.Receive(ctx, inventoryapp.ReceiveRequest{StockKeyInput: key, Quantity: d("5"), UnitCost: d("1"), Reference: "PO-1"})
	require.NoError(t, err)
	batchID := resp.Levels[0].BatchID
	require.NotNil(t, batchID)

	again, err := f.ledger.Receive(ctx, inventoryapp.ReceiveRequest{StockKeyInput: key, Quantity: d("5"), UnitCost: d("1"), Reference: "PO-2"})
	require.NoError(t, err)
	assert.Equal(t, *batchID, *again.Levels[0].BatchID, "known batch numbers resolve to the same batch")

	unknown := f.key
	unknown.Batch = &inventoryapp.BatchInput{BatchNumber: "LOT-404"}
	_, err = f.ledger.Issue(ctx, inventoryapp.IssueRequest{StockKeyInput: unknown, Quantity: d("1"), Reference: "SO-1"})
	assert.True(t, errors.Is(err, shared.ErrBatchNotAvailable))

	_, err = f.ledger.RegisterBatch(ctx, inventoryapp.RegisterBatchRequest{MaterialID: f.key.MaterialID, BatchInput: inventoryapp.BatchInput{BatchNumber: "LOT-1"}})
	assert.True(t, errors.Is(err, shared.ErrAlreadyExists))

	expired, err := f.ledger.ExpireBatch(ctx, *batchID)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.BatchExpired), expired.Status)

	_, err = f.ledger.Issue(ctx, inventoryapp.IssueRequest{StockKeyInput: key, Quantity: d("1"), Reference: "SO-2"})
	assert.True(t, errors.Is(err, shared.ErrBatchNotAvailable))

	_, err = f.ledger.ConsumeBatch(ctx, *batchID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState), "batch still has stock")

	_, err = f.ledger.Adjust(ctx, inventoryapp.AdjustRequest{StockKeyInput: key, CountedQuantity: dp("0"), Reference: "WRITE-OFF"})
	require.NoError(t, err)
	consumed, err := f.ledger.ConsumeBatch(ctx, *batchID)
	require.NoError(t, err)
	assert.Equal(t, string(inventory.BatchConsumed), consumed.Status)
}

func TestStockLedger_Batch_ExpiredByDate(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	expires := time.Now().UTC().Add(time.Hour)
	key := f.key
	key.Batch = &inventoryapp.BatchInput{BatchNumber: "LOT-9", ExpiresAt: &expires}
	f.key = key
	f.receive(t, "2", "1")

	later := expires.Add(time.Hour)
	_, err := f.ledger.Issue(ctx, inventoryapp.IssueRequest{StockKeyInput: key, Quantity: d("1"), Reference: "SO-1", MovementDate: &later})
	assert.True(t, errors.Is(err, shared.ErrBatchNotAvailable))

	_, err = f.ledger.Issue(ctx, inventoryapp.IssueRequest{StockKeyInput: key, Quantity: d("1"), Reference: "SO-2"})
	assert.NoError(t, err)
}

func TestStockLedger_ConcurrentIssuesNeverOversell(t *testing.T) {
	f := newLedger(t)
	f.receive(t, "5", "1")

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.Issue(context.Background(), inventoryapp.IssueRequest{StockKeyInput: f.key, Quantity: d("1"), Reference: "SO"})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, shared.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), ok.Load())
	assert.Equal(t, int32(5), rejected.Load())
	assert.True(t, f.level(t, f.key).Quantity.IsZero())
}

func TestStockLedger_DriftFreezesUntilReconciled(t *testing.T) {
	f := newLedger(t)
	ctx := context.Background()
	resp := f.receive(t, "10", "1")

	require.NoError(t, f.db.Model(&models.StockLevelModel{}).
		Where("id = ?", resp.Levels[0].ID).
		Update("quantity", d("12")).Error)

	verify, err := f.ledger.Verify(ctx, f.key)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrLedgerDrift))
	var drift *inventoryapp.DriftError
	require.True(t, errors.As(err, &drift))
	assert.True(t, d("12").Equal(drift.Quantity))
	assert.True(t, d("10").Equal(drift.MovementSum))
	assert.False(t, verify.Consistent)
	assert.Contains(t, f.publisher.types(), inventory.EventTypeLedgerDriftDetected)

	lv := f.level(t, f.key)
	assert.True(t, lv.Frozen)

	_, err = f.ledger.Receive(ctx, inventoryapp.ReceiveRequest{StockKeyInput: f.key, Quantity: d("1"), UnitCost: d("1"), Reference: "PO-2"})
	assert.True(t, errors.Is(err, shared.ErrLedgerDrift))

	reconciled, err := f.ledger.Reconcile(ctx, inventoryapp.ReconcileRequest{StockKeyInput: f.key, Operator: "auditor"})
	require.NoError(t, err)
	assert.False(t, reconciled.Frozen)
	assert.True(t, d("10").Equal(reconciled.Quantity))
	assert.Contains(t, f.publisher.types(), inventory.EventTypeLedgerReconciled)

	verify, err = f.ledger.Verify(ctx, f.key)
	require.NoError(t, err)
	assert.True(t, verify.Consistent)
	assert.Equal(t, int64(1), verify.Movements)
}

func TestStockLedger_Verify_UnknownKeyIsConsistent(t *testing.T) {
	f := newLedger(t)
	resp, err := f.ledger.Verify(context.Background(), f.key)
	require.NoError(t, err)
	assert.True(t, resp.Consistent)
	assert.Zero(t, resp.Movements)
}

func TestStockLedger_LockTimeout(t *testing.T) {
	db := testdb.New(t)
	locker := lock.NewLocalKeyLocker(20 * time.Millisecond)
	ledger := inventoryapp.NewStockLedger(
		persistence.NewGormTransactionScope(db).Inventory(),
		persistence.NewGormRepositories(db),
		locker, nil, nil, inventoryapp.LedgerOptions{},
	)
	key := inventoryapp.StockKeyInput{MaterialID: uuid.New(), WarehouseID: uuid.New()}
	stockKey, err := inventory.NewStockKey(key.MaterialID, key.WarehouseID, nil)
	require.NoError(t, err)

	unlock, err := locker.LockKeys(context.Background(), stockKey.LockKey())
	require.NoError(t, err)
	defer unlock()

	_, err = ledger.Receive(context.Background(), inventoryapp.ReceiveRequest{StockKeyInput: key, Quantity: d("1"), UnitCost: d("1"), Reference: "PO-1"})
	assert.True(t, errors.Is(err, shared.ErrLockTimeout))
}
