package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/posting/internal/domain/posting"
	"github.com/erp/posting/internal/infrastructure/config"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
)

func openMockDatabase(t *testing.T, cfg *config.DatabaseConfig) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	// gorm pings on open, then Open checks the pool again
	mock.ExpectPing()
	mock.ExpectPing()

	db, err := Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}), cfg, nil)
	require.NoError(t, err)
	return db, mock
}

func TestOpen_AppliesPoolSettings(t *testing.T) {
	db, mock := openMockDatabase(t, &config.DatabaseConfig{MaxOpenConns: 7, MaxIdleConns: 2})

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 7, stats.MaxOpenConnections)
	assert.Zero(t, stats.InUse)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_PingFailure(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	_, err = Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func TestDatabase_PingAndClose(t *testing.T) {
	db, mock := openMockDatabase(t, nil)

	mock.ExpectPing()
	require.NoError(t, db.Ping())

	mock.ExpectPing().WillReturnError(errors.New("gone"))
	assert.Error(t, db.Ping())

	mock.ExpectClose()
	require.NoError(t, db.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_InstrumentDisabled(t *testing.T) {
	db, mock := openMockDatabase(t, nil)

	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{}, zap.NewNop())
	require.NoError(t, db.Instrument(Instrumentation{Tracing: tracing}, zap.NewNop()))
	assert.Nil(t, db.metrics)

	mock.ExpectClose()
	require.NoError(t, db.Close())
}

func TestGormDocumentRepository_ListSortsByWhitelistedColumn(t *testing.T) {
	db, mock := openMockDatabase(t, nil)
	repo := NewGormDocumentRepository(db.DB)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM "documents" ORDER BY posting_date ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	docs, total, err := repo.List(context.Background(), posting.DocumentFilter{SortBy: "posting_date", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDocumentRepository_ListIgnoresUnknownSortColumn(t *testing.T) {
	db, mock := openMockDatabase(t, nil)
	repo := NewGormDocumentRepository(db.DB)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "documents"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM "documents" ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, _, err := repo.List(context.Background(), posting.DocumentFilter{SortBy: "id; DROP TABLE documents"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
