// Package journal books balanced journal entries, their reversals and the
// clearing of open items.
package journal

import (
	"context"
	"time"

	"github.com/erp/posting/internal/domain/account"
	"github.com/erp/posting/internal/domain/journal"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransactionalRepositories provides repositories bound to one transaction
type TransactionalRepositories interface {
	EntryRepo() journal.JournalEntryRepository
}

// TransactionScope runs fn inside a database transaction. fn's error rolls
// the transaction back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// ChartProvider returns the current chart of accounts
type ChartProvider interface {
	Chart(ctx context.Context) (*account.ChartOfAccounts, error)
}

// EngineOptions tunes the journal engine
type EngineOptions struct {
	// ClearingTolerance is the largest absolute net a clearing may leave
	ClearingTolerance decimal.Decimal
}

// JournalEngine creates, posts, reverses and clears entries. Public methods
// run in their own transaction; the Stage methods run inside a caller's.
type JournalEngine struct {
	scope     TransactionScope
	entries   journal.JournalEntryRepository
	chart     ChartProvider
	publisher shared.EventPublisher
	logger    *zap.Logger
	opts      EngineOptions
}

// NewJournalEngine creates a JournalEngine. reads serves queries outside of
// any transaction.
func NewJournalEngine(
	scope TransactionScope,
	reads TransactionalRepositories,
	chart ChartProvider,
	publisher shared.EventPublisher,
	logger *zap.Logger,
	opts EngineOptions,
) *JournalEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalEngine{
		scope:     scope,
		entries:   reads.EntryRepo(),
		chart:     chart,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
	}
}

// CreateEntry validates and stores a draft entry
func (e *JournalEngine) CreateEntry(ctx context.Context, req CreateEntryRequest) (*EntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "create_entry")
	defer span.End()

	entry, err := e.BuildEntry(ctx, req.Header(), req.LineInputs())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	err = e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.EntryRepo().Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Journal entry created",
		zap.String("entry_id", entry.ID.String()),
		zap.String("entry_type", string(entry.EntryType)),
		zap.Int("lines", len(entry.Lines)),
	)
	return ToEntryResponse(entry), nil
}

// BuildEntry builds a draft and checks every account against the chart.
// Nothing is persisted.
func (e *JournalEngine) BuildEntry(ctx context.Context, header journal.EntryHeader, lines []journal.LineInput) (*journal.JournalEntry, error) {
	entry, err := journal.NewJournalEntry(header, lines)
	if err != nil {
		return nil, err
	}
	chart, err := e.chart.Chart(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range entry.Lines {
		if _, err := chart.Postable(l.AccountID); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

// Post moves a draft entry to Posted
func (e *JournalEngine) Post(ctx context.Context, id uuid.UUID) (*EntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "post")
	defer span.End()

	var entry *journal.JournalEntry
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		entry, err = repos.EntryRepo().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := entry.Post(); err != nil {
			return err
		}
		return repos.EntryRepo().SaveHeaderWithLock(ctx, entry)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	e.logger.Info("Journal entry posted", zap.String("entry_id", id.String()))
	e.Publish(ctx, Events(entry))
	return ToEntryResponse(entry), nil
}

// Reverse books the mirror of a posted entry and cancels the original.
// It returns the reversal.
func (e *JournalEngine) Reverse(ctx context.Context, id uuid.UUID, req ReverseRequest) (*EntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "reverse")
	defer span.End()

	date := time.Time{}
	if req.PostingDate != nil {
		date = *req.PostingDate
	}
	var original, reversal *journal.JournalEntry
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		original, reversal, err = e.StageReverse(ctx, repos, id, req.Reason, date)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	e.logger.Info("Journal entry reversed",
		zap.String("entry_id", id.String()),
		zap.String("reversal_id", reversal.ID.String()),
		zap.String("reason", req.Reason),
	)
	e.Publish(ctx, Events(original, reversal))
	return ToEntryResponse(reversal), nil
}

// Clear settles open lines that net to zero within the configured tolerance
func (e *JournalEngine) Clear(ctx context.Context, req ClearRequest) (*ClearingResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal", "clear")
	defer span.End()

	var clearing *journal.Clearing
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		clearing, err = e.StageClear(ctx, repos, req.LineIDs, req.Reference)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	e.logger.Info("Open items cleared",
		zap.String("clearing_id", clearing.ID.String()),
		zap.String("reference", clearing.Reference),
		zap.Int("lines", len(clearing.LineIDs)),
	)
	return ToClearingResponse(clearing), nil
}

// StageCreateAndPost builds, posts and stores an entry inside repos'
// transaction. Its events stay on the entry for the caller to publish.
func (e *JournalEngine) StageCreateAndPost(ctx context.Context, repos TransactionalRepositories, header journal.EntryHeader, lines []journal.LineInput) (*journal.JournalEntry, error) {
	entry, err := e.BuildEntry(ctx, header, lines)
	if err != nil {
		return nil, err
	}
	if err := entry.Post(); err != nil {
		return nil, err
	}
	if err := repos.EntryRepo().Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// StageReverse reverses an entry inside repos' transaction
func (e *JournalEngine) StageReverse(ctx context.Context, repos TransactionalRepositories, id uuid.UUID, reason string, postingDate time.Time) (original, reversal *journal.JournalEntry, err error) {
	original, err = repos.EntryRepo().FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	reversal, err = original.Reverse(reason, postingDate)
	if err != nil {
		return nil, nil, err
	}
	if err := repos.EntryRepo().SaveHeaderWithLock(ctx, original); err != nil {
		return nil, nil, err
	}
	if err := repos.EntryRepo().Create(ctx, reversal); err != nil {
		return nil, nil, err
	}
	return original, reversal, nil
}

// StageClear clears lines inside repos' transaction. A line cleared or an
// entry reversed concurrently makes the store report a concurrency conflict.
func (e *JournalEngine) StageClear(ctx context.Context, repos TransactionalRepositories, lineIDs []uuid.UUID, reference string) (*journal.Clearing, error) {
	entries, err := repos.EntryRepo().FindByLineIDs(ctx, lineIDs)
	if err != nil {
		return nil, err
	}
	owner := make(map[uuid.UUID]*journal.JournalEntry, len(lineIDs))
	for _, entry := range entries {
		for _, l := range entry.Lines {
			owner[l.ID] = entry
		}
	}
	items := make([]journal.ClearingItem, 0, len(lineIDs))
	for _, id := range lineIDs {
		entry, ok := owner[id]
		if !ok {
			return nil, shared.Errorf(shared.ErrNotFound, "journal line %s not found", id)
		}
		items = append(items, journal.ClearingItem{Entry: entry, LineID: id})
	}
	clearing, err := journal.Clear(reference, items, e.opts.ClearingTolerance)
	if err != nil {
		return nil, err
	}
	if err := repos.EntryRepo().SaveClearing(ctx, clearing); err != nil {
		return nil, err
	}
	for _, entry := range journal.ClearedEntries(items) {
		if err := repos.EntryRepo().SaveHeaderWithLock(ctx, entry); err != nil {
			return nil, err
		}
	}
	return clearing, nil
}

// Entry returns an entry with its lines
func (e *JournalEngine) Entry(ctx context.Context, id uuid.UUID) (*EntryResponse, error) {
	entry, err := e.entries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return ToEntryResponse(entry), nil
}

// OpenItems lists the uncleared lines of an account and partner
func (e *JournalEngine) OpenItems(ctx context.Context, accountID, partnerID uuid.UUID) ([]LineResponse, error) {
	lines, err := e.entries.FindOpenItems(ctx, accountID, partnerID)
	if err != nil {
		return nil, err
	}
	out := make([]LineResponse, len(lines))
	for i, l := range lines {
		out[i] = ToLineResponse(l)
	}
	return out, nil
}

// Publish sends events after the commit; failures are logged only
func (e *JournalEngine) Publish(ctx context.Context, events []shared.DomainEvent) {
	if e.publisher == nil || len(events) == 0 {
		return
	}
	if err := e.publisher.Publish(ctx, events...); err != nil {
		e.logger.Warn("Failed to publish journal events", zap.Int("count", len(events)), zap.Error(err))
	}
}

// Events drains the pending events of entries
func Events(entries ...*journal.JournalEntry) []shared.DomainEvent {
	var out []shared.DomainEvent
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		out = append(out, entry.PullDomainEvents()...)
	}
	return out
}
