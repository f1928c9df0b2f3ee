package telemetry_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

type fakeStockProvider struct {
	calls atomic.Int32
}

func (p *fakeStockProvider) FrozenLevelCount(context.Context) (int64, error) {
	p.calls.Add(1)
	return 2, nil
}

func (p *fakeStockProvider) BlockedQuantityByWarehouse(context.Context) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{"wh-1": decimal.NewFromInt(5)}, nil
}

func TestNewPostingMetrics(t *testing.T) {
	pm, err := telemetry.NewPostingMetrics(telemetry.PostingMetricsConfig{
		Meter:  noop.NewMeterProvider().Meter("test"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	require.NotNil(t, pm)
}

func TestNewPostingMetrics_NilMeter(t *testing.T) {
	pm, err := telemetry.NewPostingMetrics(telemetry.PostingMetricsConfig{})
	require.Error(t, err)
	assert.Nil(t, pm)
	assert.Equal(t, "NewPostingMetrics: meter cannot be nil", err.Error())
}

func TestPostingMetrics_Record(t *testing.T) {
	pm, err := telemetry.NewPostingMetrics(telemetry.PostingMetricsConfig{Meter: noop.NewMeterProvider().Meter("test")})
	require.NoError(t, err)
	ctx := context.Background()

	pm.RecordMovements(ctx, []*inventory.StockMovement{{Type: inventory.MovementIn}, {Type: inventory.MovementOut}})
	pm.RecordLedgerDrift(ctx)
	pm.RecordPosting(ctx, "post", "SALES_INVOICE", telemetry.OutcomePosted, 15*time.Millisecond)
	pm.RecordPosting(ctx, "post", "SALES_INVOICE", telemetry.OutcomeTimeout, 30*time.Second)
}

func TestPostingMetrics_NilIsNoop(t *testing.T) {
	var pm *telemetry.PostingMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		pm.RecordMovements(ctx, []*inventory.StockMovement{{Type: inventory.MovementIn}})
		pm.RecordLedgerDrift(ctx)
		pm.RecordPosting(ctx, "cancel", "GOODS_ISSUE", telemetry.OutcomeRejected, time.Second)
		pm.StartPeriodicCollection(ctx, time.Second)
		pm.Stop()
	})
}

func TestPostingMetrics_PeriodicCollection(t *testing.T) {
	provider := &fakeStockProvider{}
	pm, err := telemetry.NewPostingMetrics(telemetry.PostingMetricsConfig{
		Meter:         noop.NewMeterProvider().Meter("test"),
		StockProvider: provider,
	})
	require.NoError(t, err)

	pm.StartPeriodicCollection(context.Background(), 10*time.Millisecond)
	assert.Eventually(t, func() bool { return provider.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	pm.Stop()
	pm.Stop()
}
