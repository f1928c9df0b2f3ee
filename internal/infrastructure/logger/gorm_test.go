package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func sqlFunc(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)
	warn := gl.LogMode(gormlogger.Warn).(*GormLogger)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, gormlogger.Warn, warn.logLevel)
}

func TestGormLogger_TraceQuery(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)
	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-7")
	ctx, _ = WithDocument(ctx, zap.NewNop(), "doc-1", "GOODS_RECEIPT")

	gl.Trace(ctx, time.Now(), sqlFunc("SELECT * FROM stock_levels", 3), nil)

	require.Equal(t, 1, recorded.Len())
	e := recorded.All()[0]
	assert.Equal(t, zapcore.DebugLevel, e.Level)
	assert.Equal(t, "gorm", e.LoggerName)
	fields := e.ContextMap()
	assert.Equal(t, "SELECT * FROM stock_levels", fields["sql"])
	assert.Equal(t, int64(3), fields["rows"])
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "doc-1", fields["document_id"])
}

func TestGormLogger_TraceSlow(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Millisecond))

	gl.Trace(context.Background(), time.Now().Add(-time.Second), sqlFunc("UPDATE stock_levels", 1), nil)

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, zapcore.WarnLevel, recorded.All()[0].Level)
	assert.Equal(t, "Slow SQL", recorded.All()[0].Message)
}

func TestGormLogger_TraceError(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Error)

	gl.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 0), gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, recorded.Len())

	gl.Trace(context.Background(), time.Now(), sqlFunc("INSERT INTO stock_movements", 0), errors.New("duplicate key"))
	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, zapcore.ErrorLevel, recorded.All()[0].Level)
	assert.Equal(t, "duplicate key", recorded.All()[0].ContextMap()["error"])
}

func TestGormLogger_NotFoundLoggedWhenConfigured(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Error, WithIgnoreRecordNotFoundError(false))

	gl.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 0), gormlogger.ErrRecordNotFound)

	assert.Equal(t, 1, recorded.Len())
}

func TestGormLogger_Silent(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Silent)

	gl.Trace(context.Background(), time.Now(), sqlFunc("SELECT 1", 0), errors.New("boom"))
	gl.Error(context.Background(), "boom %d", 1)

	assert.Equal(t, 0, recorded.Len())
}

func TestGormLogger_Printf(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Info)

	gl.Info(context.Background(), "migrated %d tables", 4)
	gl.Warn(context.Background(), "deprecated %s", "field")

	require.Equal(t, 2, recorded.Len())
	assert.Equal(t, "migrated 4 tables", recorded.All()[0].Message)
	assert.Equal(t, zapcore.WarnLevel, recorded.All()[1].Level)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("unknown"))
}
