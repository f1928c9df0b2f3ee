package posting

import (
	"context"
	"errors"
	"fmt"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	"github.com/erp/posting/internal/domain/inventory"
	"github.com/erp/posting/internal/domain/posting"
	"github.com/erp/posting/internal/domain/shared"
	"go.uber.org/zap"
)

// DriftCheckHandler re-verifies the stock keys a document transition
// touched once it has committed. A drifted key is frozen by the ledger.
type DriftCheckHandler struct {
	ledger *inventoryapp.StockLedger
	logger *zap.Logger
}

// NewDriftCheckHandler creates a DriftCheckHandler
func NewDriftCheckHandler(ledger *inventoryapp.StockLedger, logger *zap.Logger) *DriftCheckHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DriftCheckHandler{ledger: ledger, logger: logger}
}

// EventTypes returns the document transitions that move stock
func (h *DriftCheckHandler) EventTypes() []string {
	return []string{posting.EventTypeDocumentPosted, posting.EventTypeDocumentCancelled}
}

// Handle verifies every stock key of the event
func (h *DriftCheckHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*posting.DocumentEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	var errs []error
	for _, s := range e.StockKeys {
		key, err := inventory.ParseLockKey(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := h.ledger.VerifyKey(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	h.logger.Debug("Stock keys verified",
		zap.String("document_id", e.AggregateID().String()),
		zap.Int("keys", len(e.StockKeys)),
	)
	return nil
}
