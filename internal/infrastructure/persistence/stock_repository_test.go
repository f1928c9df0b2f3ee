package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/persistence/testdb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newKey(t *testing.T, batch *uuid.UUID) inventory.StockKey {
	t.Helper()
	key, err := inventory.NewStockKey(uuid.New(), uuid.New(), batch)
	require.NoError(t, err)
	return key
}

func TestGormStockLevelRepository_GetOrCreate(t *testing.T) {
	db := testdb.New(t)
	repo := NewGormStockLevelRepository(db)
	ctx := context.Background()
	key := newKey(t, nil)

	_, err := repo.FindByKey(ctx, key)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	level, err := repo.GetOrCreate(ctx, key)
	require.NoError(t, err)
	assert.True(t, level.Quantity.IsZero())
	assert.Nil(t, level.Key.BatchID)

	again, err := repo.GetOrCreate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, level.ID, again.ID)
}

func TestGormStockLevelRepository_SaveWithLock(t *testing.T) {
	db := testdb.New(t)
	repo := NewGormStockLevelRepository(db)
	ctx := context.Background()
	batchID := uuid.New()
	key := newKey(t, &batchID)

	level, err := repo.GetOrCreate(ctx, key)
	require.NoError(t, err)
	stale, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)

	_, err = level.Receive(d("10"), d("2.5"), inventory.MovementMeta{Type: inventory.MovementIn, ReferenceDocument: "PO-1"})
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, level))

	loaded, err := repo.FindByKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, d("10").Equal(loaded.Quantity))
	assert.True(t, d("2.5").Equal(loaded.AverageUnitCost))
	assert.Equal(t, level.Version, loaded.Version)
	require.NotNil(t, loaded.Key.BatchID)
	assert.Equal(t, batchID, *loaded.Key.BatchID)

	_, err = stale.Receive(d("1"), d("1"), inventory.MovementMeta{Type: inventory.MovementIn})
	require.NoError(t, err)
	err = repo.SaveWithLock(ctx, stale)
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
}

func TestGormStockLevelRepository_ListAndMetrics(t *testing.T) {
	db := testdb.New(t)
	repo := NewGormStockLevelRepository(db)
	ctx := context.Background()

	a, err := repo.GetOrCreate(ctx, newKey(t, nil))
	require.NoError(t, err)
	_, err = a.Receive(d("8"), d("1"), inventory.MovementMeta{Type: inventory.MovementIn})
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, a))
	_, err = a.Block(d("3"), "count", "CNT-1")
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, a))

	b, err := repo.GetOrCreate(ctx, newKey(t, nil))
	require.NoError(t, err)
	b.Freeze("drift")
	require.NoError(t, repo.SaveWithLock(ctx, b))

	all, err := repo.List(ctx, inventory.LevelFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	frozen, err := repo.List(ctx, inventory.LevelFilter{FrozenOnly: true})
	require.NoError(t, err)
	require.Len(t, frozen, 1)
	assert.Equal(t, b.ID, frozen[0].ID)
	assert.Equal(t, "drift", frozen[0].FrozenReason)

	byWarehouse, err := repo.List(ctx, inventory.LevelFilter{WarehouseID: &a.Key.WarehouseID})
	require.NoError(t, err)
	require.Len(t, byWarehouse, 1)

	n, err := repo.FrozenLevelCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	blocked, err := repo.BlockedQuantityByWarehouse(ctx)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.True(t, d("3").Equal(blocked[a.Key.WarehouseID.String()]))
}

func TestGormStockMovementRepository(t *testing.T) {
	db := testdb.New(t)
	repo := NewGormStockMovementRepository(db)
	ctx := context.Background()
	batchID := uuid.New()
	key := newKey(t, &batchID)

	level, err := inventory.NewStockLevel(key)
	require.NoError(t, err)
	in, err := level.Receive(d("10"), d("4"), inventory.MovementMeta{Type: inventory.MovementIn, ReferenceDocument: "PO-1"})
	require.NoError(t, err)
	out, err := level.Issue(d("4"), false, inventory.MovementMeta{Type: inventory.MovementOut, ReferenceDocument: "SO-1"})
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, in, out))
	require.NoError(t, repo.Append(ctx))

	found, err := repo.FindByID(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.MovementIn, found.Type)
	assert.True(t, d("40").Equal(found.TotalCost))

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	byKey, err := repo.FindByKey(ctx, key, 0)
	require.NoError(t, err)
	require.Len(t, byKey, 2)
	assert.Equal(t, in.ID, byKey[0].ID)
	assert.Equal(t, out.ID, byKey[1].ID)

	limited, err := repo.FindByKey(ctx, key, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	byRef, err := repo.FindByReference(ctx, "SO-1")
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	assert.True(t, d("-4").Equal(byRef[0].Quantity))

	sum, err := repo.SumQuantity(ctx, key)
	require.NoError(t, err)
	assert.True(t, d("6").Equal(sum), sum.String())

	count, err := repo.CountByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	byBatch, err := repo.SumQuantityByBatch(ctx, batchID)
	require.NoError(t, err)
	assert.True(t, d("6").Equal(byBatch))

	empty, err := repo.SumQuantity(ctx, newKey(t, nil))
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func TestGormStockMovementRepository_FindByCounterpart(t *testing.T) {
	db := testdb.New(t)
	repo := NewGormStockMovementRepository(db)
	ctx := context.Background()

	src, err := inventory.NewStockLevel(newKey(t, nil))
	require.NoError(t, err)
	_, err = src.Receive(d("5"), d("1"), inventory.MovementMeta{Type: inventory.MovementIn})
	require.NoError(t, err)
	out, err := src.Issue(d("2"), false, inventory.MovementMeta{Type: inventory.MovementTransfer})
	require.NoError(t, err)

	dst, err := inventory.NewStockLevel(src.Key.WithWarehouse(uuid.New()))
	require.NoError(t, err)
	in, err := dst.Receive(d("2"), d("1"), inventory.MovementMeta{Type: inventory.MovementTransfer, CounterpartID: &out.ID})
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, out, in))

	leg, err := repo.FindByCounterpart(ctx, out.ID)
	require.NoError(t, err)
	assert.Equal(t, in.ID, leg.ID)

	_, err = repo.FindByCounterpart(ctx, in.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGormBatchRepository(t *testing.T) {
	db := testdb.New(t)
	repo := NewGormBatchRepository(db)
	ctx := context.Background()
	materialID := uuid.New()
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	expired, err := inventory.NewBatch(materialID, inventory.BatchRef{BatchNumber: "B-1", ExpiresAt: &past})
	require.NoError(t, err)
	fresh, err := inventory.NewBatch(materialID, inventory.BatchRef{BatchNumber: "B-2", ExpiresAt: &future})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, expired))
	require.NoError(t, repo.Save(ctx, fresh))

	byNumber, err := repo.FindByNumber(ctx, materialID, "B-2")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, byNumber.ID)

	_, err = repo.FindByNumber(ctx, uuid.New(), "B-2")
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	due, err := repo.FindExpirable(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, expired.ID, due[0].ID)

	require.NoError(t, expired.Expire())
	require.NoError(t, repo.Save(ctx, expired))
	due, err = repo.FindExpirable(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	loaded, err := repo.FindByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.BatchExpired, loaded.Status)
}

func TestGormStockHoldRepository(t *testing.T) {
	db := testdb.New(t)
	repo := NewGormStockHoldRepository(db)
	ctx := context.Background()
	key := newKey(t, nil)

	hold := inventory.NewStockHold(key, d("2"), "count", "CNT-7")
	require.NoError(t, repo.Save(ctx, hold))

	active, err := repo.FindActiveByKey(ctx, key)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, d("2").Equal(active[0].Quantity))

	require.NoError(t, hold.Release())
	require.NoError(t, repo.Save(ctx, hold))

	active, err = repo.FindActiveByKey(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, active)

	loaded, err := repo.FindByID(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.HoldReleased, loaded.Status)
	assert.NotNil(t, loaded.ReleasedAt)
}

// newMockStockLevelRepository runs the repository against the postgres
// dialect without a server
func newMockStockLevelRepository(t *testing.T) (*GormStockLevelRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}),
		&gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return NewGormStockLevelRepository(gormDB), mock
}

func TestGormStockLevelRepository_SaveWithLock_VersionCheck(t *testing.T) {
	t.Run("matching version updates one row", func(t *testing.T) {
		repo, mock := newMockStockLevelRepository(t)
		level, err := inventory.NewStockLevel(newKey(t, nil))
		require.NoError(t, err)
		level.Version = 3

		mock.ExpectExec(`UPDATE "stock_levels" SET .* WHERE \(id = \$\d+ AND version = \$\d+\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SaveWithLock(context.Background(), level))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		repo, mock := newMockStockLevelRepository(t)
		level, err := inventory.NewStockLevel(newKey(t, nil))
		require.NoError(t, err)
		level.Version = 3

		mock.ExpectExec(`UPDATE "stock_levels" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(context.Background(), level)
		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
