package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// PostingMetrics records ledger and posting activity. A nil *PostingMetrics
// is valid and records nothing, so services can run without a meter.
type PostingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	movementsTotal   *Counter
	ledgerDriftTotal *Counter
	postingsTotal    *Counter
	postingDuration  *Histogram

	frozenLevels    *Gauge
	blockedQuantity *FloatGauge

	stockProvider StockMetricsProvider
	stopChan      chan struct{}
	stopOnce      sync.Once
	collectOnce   sync.Once
}

// StockMetricsProvider reads aggregate stock state for the periodic gauges
type StockMetricsProvider interface {
	// FrozenLevelCount returns how many levels are frozen by ledger drift
	FrozenLevelCount(ctx context.Context) (int64, error)

	// BlockedQuantityByWarehouse returns the blocked quantity per warehouse
	BlockedQuantityByWarehouse(ctx context.Context) (map[string]decimal.Decimal, error)
}

// PostingMetricsConfig holds configuration for posting metrics
type PostingMetricsConfig struct {
	Meter         metric.Meter
	Logger        *zap.Logger
	StockProvider StockMetricsProvider
}

// PostingOutcome labels the result of a posting operation
type PostingOutcome string

const (
	OutcomePosted   PostingOutcome = "posted"
	OutcomeRejected PostingOutcome = "rejected"
	OutcomeTimeout  PostingOutcome = "timeout"
	OutcomeFailed   PostingOutcome = "failed"
)

// PostingDurationBuckets are bucket boundaries for posting duration (seconds)
var PostingDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// NewPostingMetrics creates a PostingMetrics instance
func NewPostingMetrics(cfg PostingMetricsConfig) (*PostingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pm := &PostingMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stockProvider: cfg.StockProvider,
		stopChan:      make(chan struct{}),
	}

	var err error
	pm.movementsTotal, err = NewCounter(cfg.Meter,
		"erp_stock_movements_total",
		"Total number of stock movements booked",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	pm.ledgerDriftTotal, err = NewCounter(cfg.Meter,
		"erp_stock_ledger_drift_total",
		"Stock levels found disagreeing with their movement ledger",
		"{levels}",
	)
	if err != nil {
		return nil, err
	}

	pm.postingsTotal, err = NewCounter(cfg.Meter,
		"erp_postings_total",
		"Document posting operations by outcome",
		"{postings}",
	)
	if err != nil {
		return nil, err
	}

	pm.postingDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "erp_posting_duration_seconds",
		Description: "Duration of document posting operations",
		Unit:        "s",
		Boundaries:  PostingDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	pm.frozenLevels, err = NewGauge(cfg.Meter,
		"erp_stock_frozen_levels",
		"Stock levels frozen after ledger drift",
		"{levels}",
	)
	if err != nil {
		return nil, err
	}

	pm.blockedQuantity, err = NewFloatGauge(cfg.Meter,
		"erp_stock_blocked_quantity",
		"Quantity held by active stock holds",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	return pm, nil
}

// RecordMovements counts booked movements by type
func (pm *PostingMetrics) RecordMovements(ctx context.Context, movements []*inventory.StockMovement) {
	if pm == nil {
		return
	}
	for _, m := range movements {
		pm.movementsTotal.Inc(ctx, AttrMovementType.String(string(m.Type)))
	}
}

// RecordLedgerDrift counts a detected drift
func (pm *PostingMetrics) RecordLedgerDrift(ctx context.Context) {
	if pm == nil {
		return
	}
	pm.ledgerDriftTotal.Inc(ctx)
}

// RecordPosting records one posting operation of a document type
func (pm *PostingMetrics) RecordPosting(ctx context.Context, operation, documentType string, outcome PostingOutcome, d time.Duration) {
	if pm == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrOperation.String(operation),
		AttrDocumentType.String(documentType),
		AttrOutcome.String(string(outcome)),
	}
	pm.postingsTotal.Inc(ctx, attrs...)
	pm.postingDuration.RecordDuration(ctx, d, attrs...)
}

// StartPeriodicCollection starts collecting the stock gauges every interval.
// It does not block; Stop ends the collection.
func (pm *PostingMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if pm == nil {
		return
	}
	pm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go pm.runPeriodicCollection(ctx, interval)
	})
}

func (pm *PostingMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.collectStockMetrics(ctx)
	for {
		select {
		case <-pm.stopChan:
			pm.logger.Info("Stopping periodic stock metrics collection")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.collectStockMetrics(ctx)
		}
	}
}

func (pm *PostingMetrics) collectStockMetrics(ctx context.Context) {
	if pm.stockProvider == nil {
		return
	}
	frozen, err := pm.stockProvider.FrozenLevelCount(ctx)
	if err != nil {
		pm.logger.Warn("Failed to count frozen stock levels", zap.Error(err))
	} else {
		pm.frozenLevels.Record(ctx, frozen)
	}

	blocked, err := pm.stockProvider.BlockedQuantityByWarehouse(ctx)
	if err != nil {
		pm.logger.Warn("Failed to read blocked quantity", zap.Error(err))
		return
	}
	for warehouseID, qty := range blocked {
		pm.blockedQuantity.Record(ctx, qty.InexactFloat64(), AttrWarehouseID.String(warehouseID))
	}
}

// Stop stops the periodic collection
func (pm *PostingMetrics) Stop() {
	if pm == nil {
		return
	}
	pm.stopOnce.Do(func() {
		close(pm.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil
var ErrMeterNil = &MetricsError{Op: "NewPostingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
