package posting

import (
	"context"
	"time"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	journalapp "github.com/erp/posting/internal/application/journal"
	"github.com/erp/posting/internal/domain/journal"
	"github.com/erp/posting/internal/domain/posting"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cancel reverses a posted document: its journal entry is reversed and
// every stock movement it booked is compensated, then Posted -> Cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID, req CancelRequest) (*PostingResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "orchestrator", "cancel")
	defer span.End()

	start := time.Now()
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	doc, err := o.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.Status.CanTransitionTo(posting.StatusCancelled) {
		err := shared.Errorf(shared.ErrInvalidState, "document %s is %s and cannot be cancelled", doc.ID, doc.Status)
		return nil, o.finish(ctx, "cancel", doc, start, err)
	}
	movements, err := o.ledger.MovementsByReference(ctx, doc.StockReference())
	if err != nil {
		return nil, o.finish(ctx, "cancel", doc, start, err)
	}

	keys := []string{doc.LockKey()}
	for _, m := range movements {
		keys = append(keys, m.Key().LockKey())
		if m.PeerWarehouseID != nil {
			keys = append(keys, m.Key().WithWarehouse(*m.PeerWarehouseID).LockKey())
		}
	}

	var (
		cancelled          *posting.BusinessDocument
		stock              *inventoryapp.StockResult
		original, reversal *journal.JournalEntry
	)
	err = o.run(ctx, telemetry.PostingLabels("cancel", string(doc.Type)), keys, func(repos TransactionalRepositories) error {
		var err error
		cancelled, err = repos.DocumentRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !cancelled.Status.CanTransitionTo(posting.StatusCancelled) {
			return shared.Errorf(shared.ErrInvalidState, "document %s is %s and cannot be cancelled", cancelled.ID, cancelled.Status)
		}

		now := time.Now()
		var reversalID *uuid.UUID
		if cancelled.JournalEntryID != nil {
			original, reversal, err = o.journal.StageReverse(ctx, repos, *cancelled.JournalEntryID, req.Reason, now)
			if err != nil {
				return err
			}
			reversalID = &reversal.ID
		}

		stock, err = o.ledger.StageCompensate(ctx, repos, movements, cancelled.StockReference(), now)
		if err != nil {
			return err
		}
		o.logger.Debug("Stock compensated",
			zap.String("document_id", cancelled.ID.String()),
			zap.Int("movements", len(stock.Movements)),
		)

		if err := cancelled.MarkCancelled(reversalID, req.Reason, stock.LockKeys()); err != nil {
			return err
		}
		return repos.DocumentRepo().SaveWithLock(ctx, cancelled)
	})
	if err != nil {
		err = o.finish(ctx, "cancel", doc, start, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	o.finish(ctx, "cancel", cancelled, start, nil)
	o.metrics.RecordMovements(parent, stock.Movements)

	o.publish(parent, stock.Events, journalapp.Events(original, reversal), o.drainDocument(cancelled))

	var entryResp *journalapp.EntryResponse
	if reversal != nil {
		entryResp = journalapp.ToEntryResponse(reversal)
	}
	return o.result(cancelled, entryResp, stock), nil
}
