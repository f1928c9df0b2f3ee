package telemetry

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds database metrics configuration
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration // default 200ms
}

// DBMetrics records query counts and latencies and observes the connection
// pool on every collection
type DBMetrics struct {
	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	registration   metric.Registration
	config         DBMetricsConfig
}

// NewDBMetrics creates the instruments. Pool gauges are observed from
// sqlDB when it is not nil.
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, sqlDB *sql.DB) (*DBMetrics, error) {
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	m := &DBMetrics{config: cfg}

	var err error
	if m.queryTotal, err = NewCounter(meter, "db_query_total", "Database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.slowQueryTotal, err = NewCounter(meter, "db_slow_query_total", "Database queries above the slow threshold", "{query}"); err != nil {
		return nil, err
	}
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if sqlDB == nil {
		return m, nil
	}
	conns, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"), metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	maxConns, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum open connections"), metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(maxConns, int64(stats.MaxOpenConnections))
		o.ObserveInt64(conns, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(conns, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(stats.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		return nil
	}, conns, maxConns)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordQuery records one statement
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, d time.Duration) {
	if operation == "" {
		operation = "OTHER"
	}
	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
	m.queryDuration.RecordDuration(ctx, d, AttrDBOperation.String(operation))
	if d > m.config.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// Stop unregisters the pool observer
func (m *DBMetrics) Stop() {
	if m != nil && m.registration != nil {
		_ = m.registration.Unregister()
	}
}

func (m *DBMetrics) hook(db *gorm.DB, operation string, elapsed time.Duration) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	m.RecordQuery(ctx, operation, db.Statement.Table, elapsed)
}

// RegisterDBMetrics attaches query metrics to db. It returns nil when
// metrics are disabled.
func RegisterDBMetrics(db *gorm.DB, mp *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || mp == nil || !mp.IsEnabled() {
		return nil, nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	m, err := NewDBMetrics(mp.Meter("db.client"), cfg, sqlDB)
	if err != nil {
		return nil, err
	}
	if err := registerTimed(db, "db_metrics", m.hook); err != nil {
		m.Stop()
		return nil, err
	}
	logger.Info("Database metrics registered", zap.Duration("slow_query_threshold", m.config.SlowQueryThreshold))
	return m, nil
}
