package persistence

import (
	"fmt"
	"time"

	"github.com/erp/posting/internal/infrastructure/config"
	"github.com/erp/posting/internal/infrastructure/logger"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the gorm connection of the posting store
type Database struct {
	DB      *gorm.DB
	metrics *telemetry.DBMetrics
}

// Instrumentation attaches tracing and metrics to a Database
type Instrumentation struct {
	Tracing *telemetry.DBTracingPlugin
	Meter   *telemetry.MeterProvider
	Metrics telemetry.DBMetricsConfig
}

// NewDatabase opens a postgres connection and configures its pool. SQL is
// logged through zap at the configured level.
func NewDatabase(cfg *config.DatabaseConfig, log *zap.Logger) (*Database, error) {
	if log == nil {
		log = zap.NewNop()
	}
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.LogLevel),
		logger.WithSlowThreshold(cfg.SlowThreshold))
	return Open(postgres.Open(cfg.DSN()), cfg, gormLog)
}

// Open opens a gorm connection over dialector. Tests pass sqlite or
// sqlmock dialectors; cfg may be nil.
func Open(dialector gorm.Dialector, cfg *config.DatabaseConfig, gormLog gormlogger.Interface) (*Database, error) {
	if gormLog == nil {
		gormLog = gormlogger.Default.LogMode(gormlogger.Silent)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLog,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if cfg != nil {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{DB: db}, nil
}

// Instrument registers the tracing plugin and query metrics. Either part
// may be disabled.
func (d *Database) Instrument(in Instrumentation, log *zap.Logger) error {
	if in.Tracing != nil {
		if err := in.Tracing.Register(d.DB); err != nil {
			return fmt.Errorf("register database tracing: %w", err)
		}
	}
	m, err := telemetry.RegisterDBMetrics(d.DB, in.Meter, in.Metrics, log)
	if err != nil {
		return fmt.Errorf("register database metrics: %w", err)
	}
	d.metrics = m
	return nil
}

// Close stops the pool observer and closes the connection
func (d *Database) Close() error {
	d.metrics.Stop()
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks that the connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// ConnectionStats holds connection pool statistics for the health endpoint
type ConnectionStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// Stats returns the pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	s := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}, nil
}
