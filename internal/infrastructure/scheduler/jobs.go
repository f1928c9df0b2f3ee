package scheduler

import (
	"context"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	"go.uber.org/zap"
)

// Job names
const (
	JobBatchExpiry = "batch_expiry"
	JobLedgerAudit = "ledger_audit"
)

// BatchExpirer expires batches past their expiry date
type BatchExpirer interface {
	ExpireDueBatches(ctx context.Context) (*inventoryapp.ExpiredBatchStats, error)
}

// LedgerAuditor verifies stock levels against the movement log
type LedgerAuditor interface {
	Run(ctx context.Context) (*inventoryapp.AuditStats, error)
}

// BatchExpiryJob wraps a BatchExpirer as a job
func BatchExpiryJob(svc BatchExpirer, logger *zap.Logger) JobFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		stats, err := svc.ExpireDueBatches(ctx)
		if err != nil {
			return err
		}
		logger.Info("Batch expiry run",
			zap.Int("found", stats.TotalFound),
			zap.Int("expired", stats.Expired),
			zap.Int("failed", stats.Failed),
		)
		return nil
	}
}

// LedgerAuditJob wraps a LedgerAuditor as a job. Drifted levels are frozen by
// the auditor; the job only reports them.
func LedgerAuditJob(svc LedgerAuditor, logger *zap.Logger) JobFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) error {
		stats, err := svc.Run(ctx)
		if err != nil {
			return err
		}
		log := logger.Info
		if stats.Drifted > 0 {
			log = logger.Error
		}
		log("Ledger audit run",
			zap.Int64("checked", stats.Checked),
			zap.Int64("drifted", stats.Drifted),
			zap.Int64("failed", stats.Failed),
			zap.Duration("duration", stats.Duration),
		)
		return nil
	}
}
