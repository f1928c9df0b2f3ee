package inventory

import (
	"context"
	"time"

	"github.com/erp/posting/internal/domain/inventory"
	"go.uber.org/zap"
)

// DefaultExpirationBatchSize bounds the batches handled per run
const DefaultExpirationBatchSize = 500

// BatchExpirationService marks batches whose expiration date has passed
type BatchExpirationService struct {
	scope     TransactionScope
	batchRepo inventory.BatchRepository
	logger    *zap.Logger
	batchSize int
	now       func() time.Time
}

// NewBatchExpirationService creates a new BatchExpirationService
func NewBatchExpirationService(scope TransactionScope, batchRepo inventory.BatchRepository, logger *zap.Logger) *BatchExpirationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchExpirationService{
		scope:     scope,
		batchRepo: batchRepo,
		logger:    logger,
		batchSize: DefaultExpirationBatchSize,
		now:       time.Now,
	}
}

// ExpiredBatchStats contains statistics about one expiration run
type ExpiredBatchStats struct {
	TotalFound  int       `json:"total_found"`
	Expired     int       `json:"expired"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ExpireDueBatches finds and expires all batches past their expiration date
func (s *BatchExpirationService) ExpireDueBatches(ctx context.Context) (*ExpiredBatchStats, error) {
	stats := &ExpiredBatchStats{
		ProcessedAt: s.now(),
	}

	due, err := s.batchRepo.FindExpirable(ctx, stats.ProcessedAt, s.batchSize)
	if err != nil {
		s.logger.Error("Failed to find expirable batches", zap.Error(err))
		return nil, err
	}

	stats.TotalFound = len(due)
	if stats.TotalFound == 0 {
		s.logger.Debug("No expirable batches found")
		return stats, nil
	}

	s.logger.Info("Found expirable batches", zap.Int("count", stats.TotalFound))

	for _, batch := range due {
		if err := s.expire(ctx, batch); err != nil {
			s.logger.Error("Failed to expire batch",
				zap.String("batch_id", batch.ID.String()),
				zap.String("batch_number", batch.BatchNumber),
				zap.Error(err),
			)
			stats.Failed++
			continue
		}
		stats.Expired++
	}

	s.logger.Info("Completed batch expiration",
		zap.Int("total", stats.TotalFound),
		zap.Int("expired", stats.Expired),
		zap.Int("failed", stats.Failed),
	)

	return stats, nil
}

func (s *BatchExpirationService) expire(ctx context.Context, batch *inventory.Batch) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		current, err := repos.BatchRepo().FindByID(ctx, batch.ID)
		if err != nil {
			return err
		}
		if err := current.Expire(); err != nil {
			return err
		}
		if err := repos.BatchRepo().Save(ctx, current); err != nil {
			return err
		}
		s.logger.Debug("Expired batch",
			zap.String("batch_id", current.ID.String()),
			zap.String("material_id", current.MaterialID.String()),
			zap.String("batch_number", current.BatchNumber),
		)
		return nil
	})
}
