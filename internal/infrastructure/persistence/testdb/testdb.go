// Package testdb opens throwaway SQLite databases carrying the posting
// schema for repository and service tests.
package testdb

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens a file database in t.TempDir() and migrates every model.
// WAL mode with immediate transactions lets readers run next to a writing
// transaction and queues concurrent writers on the busy timeout.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate",
		filepath.Join(t.TempDir(), "posting.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
