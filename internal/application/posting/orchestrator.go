// Package posting couples the stock ledger, the tax resolver and the
// journal engine into atomic document postings.
package posting

import (
	"context"
	"errors"
	"time"

	inventoryapp "github.com/erp/posting/internal/application/inventory"
	journalapp "github.com/erp/posting/internal/application/journal"
	taxapp "github.com/erp/posting/internal/application/tax"
	"github.com/erp/posting/internal/domain/posting"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a posting when no timeout is configured
const DefaultTimeout = 30 * time.Second

// Options tunes the orchestrator
type Options struct {
	// Timeout is the deadline of one Post, Cancel or RegisterPayment
	Timeout time.Duration
	// Accounts binds account roles to account codes
	Accounts map[string]string
	// Rules overrides the default posting rules
	Rules posting.RuleTable
}

// Orchestrator posts, cancels and settles business documents. Every
// transition locks the stock keys and the document it touches and books
// stock, taxes and journal in one transaction.
type Orchestrator struct {
	scope     TransactionScope
	documents posting.DocumentRepository
	ledger    *inventoryapp.StockLedger
	journal   *journalapp.JournalEngine
	taxes     *taxapp.TaxService
	chart     journalapp.ChartProvider
	rules     posting.RuleTable
	publisher shared.EventPublisher
	metrics   *telemetry.PostingMetrics
	logger    *zap.Logger
	opts      Options
}

// NewOrchestrator creates an Orchestrator. reads serves queries outside
// of any transaction.
func NewOrchestrator(
	scope TransactionScope,
	reads TransactionalRepositories,
	ledger *inventoryapp.StockLedger,
	journal *journalapp.JournalEngine,
	taxes *taxapp.TaxService,
	chart journalapp.ChartProvider,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	rules := opts.Rules
	if rules == nil {
		rules = posting.DefaultRuleTable()
	}
	return &Orchestrator{
		scope:     scope,
		documents: reads.DocumentRepo(),
		ledger:    ledger,
		journal:   journal,
		taxes:     taxes,
		chart:     chart,
		rules:     rules,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

// SetMetrics sets the metrics recorder
func (o *Orchestrator) SetMetrics(m *telemetry.PostingMetrics) {
	o.metrics = m
}

// CreateDraft validates and stores a new draft document
func (o *Orchestrator) CreateDraft(ctx context.Context, req CreateDocumentRequest) (*DocumentResponse, error) {
	doc, err := posting.NewDocument(req.Input())
	if err != nil {
		return nil, err
	}
	if err := o.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	o.logger.Info("Document draft created",
		zap.String("document_id", doc.ID.String()),
		zap.String("type", string(doc.Type)),
		zap.Int("lines", len(doc.Lines)),
	)
	return ToDocumentResponse(doc), nil
}

// Document returns a document with its lines
func (o *Orchestrator) Document(ctx context.Context, id uuid.UUID) (*DocumentResponse, error) {
	doc, err := o.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToDocumentResponse(doc), nil
}

// List lists documents, newest first
func (o *Orchestrator) List(ctx context.Context, filter DocumentListFilter) ([]DocumentResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	f := posting.DocumentFilter{
		SortBy:    filter.SortBy,
		SortOrder: filter.SortOrder,
		Limit:     filter.PageSize,
		Offset:    (filter.Page - 1) * filter.PageSize,
	}
	if filter.Type != "" {
		t := posting.DocumentType(filter.Type)
		if !t.IsValid() {
			return nil, 0, shared.Errorf(shared.ErrInvalidInput, "invalid document type %q", filter.Type)
		}
		f.Type = &t
	}
	if filter.Status != "" {
		s, err := posting.ParseDocumentStatus(filter.Status)
		if err != nil {
			return nil, 0, err
		}
		f.Status = &s
	}
	docs, total, err := o.documents.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	out := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		out[i] = *ToDocumentResponse(d)
	}
	return out, total, nil
}

// Delete removes a draft nothing was booked for
func (o *Orchestrator) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := o.documents.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := doc.EnsureDeletable(); err != nil {
		return err
	}
	movements, err := o.ledger.MovementsByReference(ctx, doc.StockReference())
	if err != nil {
		return err
	}
	if len(movements) > 0 {
		return shared.Errorf(shared.ErrInvalidState, "document %s has %d stock movements", doc.ID, len(movements))
	}
	return o.run(ctx, telemetry.PostingLabels("delete", string(doc.Type)), []string{doc.LockKey()}, func(repos TransactionalRepositories) error {
		return repos.DocumentRepo().Delete(ctx, doc.ID)
	})
}

// run locks keys and runs fn in one transaction under the given profiling
// labels. The transaction fails when ctx expires before it commits. Locks
// are released on return, so events must be published by the caller
// afterwards.
func (o *Orchestrator) run(ctx context.Context, labels map[string]string, keys []string, fn func(repos TransactionalRepositories) error) error {
	unlock, err := o.ledger.Locker().LockKeys(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()

	telemetry.WithProfilingLabels(ctx, labels, func(ctx context.Context) {
		err = o.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			if err := fn(repos); err != nil {
				return err
			}
			return ctx.Err()
		})
	})
	if err != nil {
		o.ledger.FreezeOnDrift(context.WithoutCancel(ctx), err)
	}
	return err
}

// finish maps a failed transition to its domain error and records the
// outcome of every transition
func (o *Orchestrator) finish(ctx context.Context, operation string, doc *posting.BusinessDocument, start time.Time, err error) error {
	docType := ""
	fields := []zap.Field{zap.String("operation", operation), zap.Duration("duration", time.Since(start))}
	if doc != nil {
		docType = string(doc.Type)
		fields = append(fields, zap.String("document_id", doc.ID.String()), zap.String("type", docType))
	}

	outcome := telemetry.OutcomePosted
	switch {
	case err == nil:
		o.logger.Info("Document transition committed", fields...)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome = telemetry.OutcomeTimeout
		err = shared.Errorf(shared.ErrPostingTimeout, "%s exceeded %s and was rolled back", operation, o.opts.Timeout)
		o.logger.Warn("Document transition timed out", append(fields, zap.Error(err))...)
	case shared.IsRecoverable(err):
		outcome = telemetry.OutcomeRejected
		o.logger.Warn("Document transition rejected", append(fields, zap.Error(err))...)
	default:
		outcome = telemetry.OutcomeFailed
		o.logger.Error("Document transition failed", append(fields, zap.Error(err))...)
	}
	o.metrics.RecordPosting(context.WithoutCancel(ctx), operation, docType, outcome, time.Since(start))
	return err
}

// publish sends the events of a committed transition in booking order:
// stock, then journal, then the document itself
func (o *Orchestrator) publish(ctx context.Context, events ...[]shared.DomainEvent) {
	if o.publisher == nil {
		return
	}
	var all []shared.DomainEvent
	for _, batch := range events {
		all = append(all, batch...)
	}
	if len(all) == 0 {
		return
	}
	if err := o.publisher.Publish(ctx, all...); err != nil {
		o.logger.Warn("Failed to publish posting events", zap.Int("count", len(all)), zap.Error(err))
	}
}

// roleMap binds the configured role codes to accounts of the current chart.
// Roles whose code is unknown stay unbound and fail when a rule needs them.
func (o *Orchestrator) roleMap(ctx context.Context) (posting.RoleMap, error) {
	chart, err := o.chart.Chart(ctx)
	if err != nil {
		return nil, err
	}
	m := make(posting.RoleMap, len(o.opts.Accounts))
	for role, code := range o.opts.Accounts {
		a, err := chart.ByCode(code)
		if err != nil {
			continue
		}
		m[posting.AccountRole(role)] = posting.RoleAccount{AccountID: a.ID, IsResult: a.Type.IsResult()}
	}
	return m, nil
}

func (o *Orchestrator) result(doc *posting.BusinessDocument, entry *journalapp.EntryResponse, stock *inventoryapp.StockResult) *PostingResult {
	res := &PostingResult{Document: ToDocumentResponse(doc), JournalEntry: entry, ClearingID: doc.ClearingID}
	if stock != nil {
		res.Movements = inventoryapp.ToMovementResponses(stock.Movements)
	}
	return res
}

func (o *Orchestrator) drainDocument(doc *posting.BusinessDocument) []shared.DomainEvent {
	return doc.PullDomainEvents()
}
