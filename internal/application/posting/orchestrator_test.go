package posting_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	accountapp "github.com/erp/posting/internal/application/account"
	inventoryapp "github.com/erp/posting/internal/application/inventory"
	journalapp "github.com/erp/posting/internal/application/journal"
	postingapp "github.com/erp/posting/internal/application/posting"
	taxapp "github.com/erp/posting/internal/application/tax"
	"github.com/erp/posting/internal/domain/account"
	"github.com/erp/posting/internal/domain/posting"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/config"
	"github.com/erp/posting/internal/infrastructure/lock"
	"github.com/erp/posting/internal/infrastructure/persistence"
	"github.com/erp/posting/internal/infrastructure/persistence/models"
	"github.com/erp/posting/internal/infrastructure/persistence/testdb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) find(eventType string) shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].EventType() == eventType {
			return p.events[i]
		}
	}
	return nil
}

type fixture struct {
	db        *gorm.DB
	locker    *lock.LocalKeyLocker
	ledger    *inventoryapp.StockLedger
	journal   *journalapp.JournalEngine
	chart     *accountapp.ChartService
	taxes     *taxapp.TaxService
	orch      *postingapp.Orchestrator
	publisher *recordingPublisher

	material  uuid.UUID
	warehouse uuid.UUID
	partner   uuid.UUID
}

func newFixture(t *testing.T, opts postingapp.Options) *fixture {
	t.Helper()
	return newFixtureOn(t, testdb.New(t), opts)
}

// newFixtureOn wires the posting core on a migrated database
func newFixtureOn(t *testing.T, db *gorm.DB, opts postingapp.Options) *fixture {
	t.Helper()
	ctx := context.Background()
	scope := persistence.NewGormTransactionScope(db)
	repos := persistence.NewGormRepositories(db)
	pub := &recordingPublisher{}
	locker := lock.NewLocalKeyLocker(5 * time.Second)

	chart := accountapp.NewChartService(persistence.NewGormAccountRepository(db), nil)
	_, err := chart.SeedChart(ctx, account.DefaultChartNodes)
	require.NoError(t, err)

	taxes := taxapp.NewTaxService(persistence.NewGormTaxRuleRepository(db), time.Minute, nil)
	_, err = taxes.CreateRule(ctx, taxapp.CreateRuleRequest{
		SourceState: "SP", DestState: "RJ", OperationType: "SALE", CFOP: "6102", CSTICMS: "00",
		ICMSRate: d("0.12"), PISRate: d("0.0165"), COFINSRate: d("0.076"),
	})
	require.NoError(t, err)
	_, err = taxes.CreateRule(ctx, taxapp.CreateRuleRequest{
		SourceState: "MG", DestState: "SP", OperationType: "PURCHASE", CFOP: "2102", CSTICMS: "00",
		ICMSRate: d("0.18"), IPIRate: d("0.10"), PISRate: d("0.0165"), COFINSRate: d("0.076"),
	})
	require.NoError(t, err)

	ledger := inventoryapp.NewStockLedger(scope.Inventory(), repos, locker, pub, nil, inventoryapp.LedgerOptions{VerifyOnWrite: true})
	engine := journalapp.NewJournalEngine(scope.Journal(), repos, chart, pub, nil, journalapp.EngineOptions{ClearingTolerance: decimal.Zero})
	if opts.Accounts == nil {
		opts.Accounts = config.DefaultAccounts()
	}
	orch := postingapp.NewOrchestrator(scope.Posting(), repos, ledger, engine, taxes, chart, pub, nil, opts)

	return &fixture{
		db: db, locker: locker, ledger: ledger, journal: engine, chart: chart, taxes: taxes, orch: orch, publisher: pub,
		material: uuid.New(), warehouse: uuid.New(), partner: uuid.New(),
	}
}

func (f *fixture) stockKey() inventoryapp.StockKeyInput {
	return inventoryapp.StockKeyInput{MaterialID: f.material, WarehouseID: f.warehouse}
}

func (f *fixture) stock(t *testing.T, qty, cost string) {
	t.Helper()
	_, err := f.ledger.Receive(context.Background(), inventoryapp.ReceiveRequest{
		StockKeyInput: f.stockKey(), Quantity: d(qty), UnitCost: d(cost), Reference: "OPENING",
	})
	require.NoError(t, err)
}

func (f *fixture) level(t *testing.T, key inventoryapp.StockKeyInput) *inventoryapp.StockLevelResponse {
	t.Helper()
	lv, err := f.ledger.Level(context.Background(), key)
	require.NoError(t, err)
	return lv
}

func (f *fixture) accountID(t *testing.T, code string) uuid.UUID {
	t.Helper()
	chart, err := f.chart.Chart(context.Background())
	require.NoError(t, err)
	a, err := chart.ByCode(code)
	require.NoError(t, err)
	return a.ID
}

func (f *fixture) salesInvoice(t *testing.T, qty, price string) *postingapp.DocumentResponse {
	t.Helper()
	doc, err := f.orch.CreateDraft(context.Background(), postingapp.CreateDocumentRequest{
		Type:         string(posting.TypeSalesInvoice),
		PartnerID:    &f.partner,
		SourceState:  "SP",
		DestState:    "RJ",
		WarehouseID:  f.warehouse,
		AffectsStock: true,
		PostingDate:  time.Now().UTC(),
		Reference:    "NF-1001",
		Lines:        []postingapp.DocumentLineRequest{{MaterialID: f.material, Quantity: d(qty), UnitPrice: d(price)}},
	})
	require.NoError(t, err)
	return doc
}

// sum of the amounts booked on one account and side
func sumLines(entry *journalapp.EntryResponse, accountID uuid.UUID, side string) decimal.Decimal {
	total := decimal.Zero
	for _, l := range entry.Lines {
		if l.AccountID == accountID && l.Side == side {
			total = total.Add(l.Amount)
		}
	}
	return total
}

func TestOrchestrator_PostSalesInvoice(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	f.stock(t, "10", "2")

	draft := f.salesInvoice(t, "4", "25")
	assert.Equal(t, "DRAFT", draft.Status)
	assert.Equal(t, "SALE", draft.OperationType)

	res, err := f.orch.Post(ctx, draft.ID)
	require.NoError(t, err)

	doc := res.Document
	assert.Equal(t, "POSTED", doc.Status)
	require.NotNil(t, doc.JournalEntryID)
	require.NotNil(t, doc.PostedAt)
	require.Len(t, doc.Lines, 1)
	line := doc.Lines[0]
	assert.True(t, d("100").Equal(line.BaseAmount))
	assert.Equal(t, "6102", line.CFOP)
	assert.True(t, d("12").Equal(line.ICMSValue))
	assert.True(t, d("1.65").Equal(line.PISValue))
	assert.True(t, d("7.6").Equal(line.COFINSValue))
	assert.True(t, d("8").Equal(line.CostOfGoods))
	assert.True(t, d("100").Equal(doc.GrossTotal))

	entry := res.JournalEntry
	require.NotNil(t, entry)
	assert.Equal(t, "POSTED", entry.Status)
	assert.True(t, entry.TotalDebit.Equal(entry.TotalCredit))
	assert.True(t, d("129.25").Equal(entry.TotalDebit))
	assert.True(t, d("100").Equal(sumLines(entry, f.accountID(t, "1.1.02"), "DEBIT")))
	assert.True(t, d("100").Equal(sumLines(entry, f.accountID(t, "3.1.01"), "CREDIT")))
	assert.True(t, d("12").Equal(sumLines(entry, f.accountID(t, "2.1.03"), "CREDIT")))
	assert.True(t, d("8").Equal(sumLines(entry, f.accountID(t, "4.1.01"), "DEBIT")))
	assert.True(t, d("8").Equal(sumLines(entry, f.accountID(t, "1.1.03"), "CREDIT")))
	for _, l := range entry.Lines {
		if l.AccountID == f.accountID(t, "1.1.02") {
			require.NotNil(t, l.PartnerID)
			assert.Equal(t, f.partner, *l.PartnerID)
		}
	}

	require.Len(t, res.Movements, 1)
	assert.True(t, d("-4").Equal(res.Movements[0].Quantity))
	assert.Equal(t, "DOC-"+draft.ID.String(), res.Movements[0].ReferenceDocument)

	lv := f.level(t, f.stockKey())
	assert.True(t, d("6").Equal(lv.Quantity))

	posted, ok := f.publisher.find(posting.EventTypeDocumentPosted).(*posting.DocumentEvent)
	require.True(t, ok)
	assert.Len(t, posted.StockKeys, 1)
}

func TestOrchestrator_Post_Twice(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	f.stock(t, "10", "2")
	draft := f.salesInvoice(t, "1", "10")

	_, err := f.orch.Post(context.Background(), draft.ID)
	require.NoError(t, err)
	_, err = f.orch.Post(context.Background(), draft.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	assert.True(t, d("9").Equal(f.level(t, f.stockKey()).Quantity))
}

func TestOrchestrator_Post_InsufficientStockBooksNothing(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	f.stock(t, "3", "2")
	draft := f.salesInvoice(t, "5", "10")

	_, err := f.orch.Post(ctx, draft.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInsufficientStock))

	doc, err := f.orch.Document(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", doc.Status)
	assert.Nil(t, doc.JournalEntryID)
	assert.True(t, d("3").Equal(f.level(t, f.stockKey()).Quantity))

	var entries int64
	require.NoError(t, f.db.Model(&models.JournalEntryModel{}).Count(&entries).Error)
	assert.Zero(t, entries)

	movements, err := f.ledger.MovementsByReference(ctx, "DOC-"+draft.ID.String())
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestOrchestrator_Post_MissingTaxRuleBooksNothing(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	f.stock(t, "10", "2")
	draft, err := f.orch.CreateDraft(ctx, postingapp.CreateDocumentRequest{
		Type: string(posting.TypeSalesInvoice), PartnerID: &f.partner,
		SourceState: "SP", DestState: "BA", WarehouseID: f.warehouse, AffectsStock: true,
		PostingDate: time.Now().UTC(),
		Lines:       []postingapp.DocumentLineRequest{{MaterialID: f.material, Quantity: d("1"), UnitPrice: d("10")}},
	})
	require.NoError(t, err)

	_, err = f.orch.Post(ctx, draft.ID)
	assert.True(t, errors.Is(err, shared.ErrNoTaxRuleFound))
	assert.True(t, d("10").Equal(f.level(t, f.stockKey()).Quantity))
}

func TestOrchestrator_Post_UnboundRole(t *testing.T) {
	accounts := config.DefaultAccounts()
	delete(accounts, string(posting.RoleCOGS))
	f := newFixture(t, postingapp.Options{Accounts: accounts})
	f.stock(t, "10", "2")
	draft := f.salesInvoice(t, "1", "10")

	_, err := f.orch.Post(context.Background(), draft.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrAccountNotFound))
	assert.True(t, d("10").Equal(f.level(t, f.stockKey()).Quantity))
}

func TestOrchestrator_Cancel(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	f.stock(t, "10", "2")
	draft := f.salesInvoice(t, "4", "25")
	posted, err := f.orch.Post(ctx, draft.ID)
	require.NoError(t, err)

	res, err := f.orch.Cancel(ctx, draft.ID, postingapp.CancelRequest{Reason: "customer returned"})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", res.Document.Status)
	require.NotNil(t, res.Document.ReversalEntryID)
	require.NotNil(t, res.JournalEntry)
	assert.True(t, res.JournalEntry.IsReversal)
	assert.True(t, posted.JournalEntry.TotalDebit.Equal(res.JournalEntry.TotalCredit))

	original, err := f.journal.Entry(ctx, *posted.Document.JournalEntryID)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", original.Status)
	require.NotNil(t, original.ReversedByEntryID)
	assert.Equal(t, res.JournalEntry.ID, *original.ReversedByEntryID)

	require.Len(t, res.Movements, 1)
	assert.True(t, d("4").Equal(res.Movements[0].Quantity))
	lv := f.level(t, f.stockKey())
	assert.True(t, d("10").Equal(lv.Quantity))
	assert.True(t, d("2").Equal(lv.AverageUnitCost))

	_, err = f.orch.Cancel(ctx, draft.ID, postingapp.CancelRequest{Reason: "again"})
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	assert.NotNil(t, f.publisher.find(posting.EventTypeDocumentCancelled))
}

func TestOrchestrator_Cancel_Draft(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	draft := f.salesInvoice(t, "1", "10")
	_, err := f.orch.Cancel(context.Background(), draft.ID, postingapp.CancelRequest{Reason: "x"})
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestOrchestrator_RegisterPayment(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	f.stock(t, "10", "2")
	draft := f.salesInvoice(t, "4", "25")
	_, err := f.orch.Post(ctx, draft.ID)
	require.NoError(t, err)

	_, err = f.orch.RegisterPayment(ctx, draft.ID, postingapp.PaymentRequest{Amount: dp("99")})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	res, err := f.orch.RegisterPayment(ctx, draft.ID, postingapp.PaymentRequest{Amount: dp("100"), Reference: "TED-77"})
	require.NoError(t, err)
	assert.Equal(t, "PAID", res.Document.Status)
	require.NotNil(t, res.ClearingID)
	require.NotNil(t, res.Document.PaymentEntryID)
	assert.Equal(t, "TED-77", res.JournalEntry.Reference)
	assert.True(t, d("100").Equal(sumLines(res.JournalEntry, f.accountID(t, "1.1.01"), "DEBIT")))

	open, err := f.journal.OpenItems(ctx, f.accountID(t, "1.1.02"), f.partner)
	require.NoError(t, err)
	assert.Empty(t, open)

	_, err = f.orch.Cancel(ctx, draft.ID, postingapp.CancelRequest{Reason: "too late"})
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
	_, err = f.orch.RegisterPayment(ctx, draft.ID, postingapp.PaymentRequest{})
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestOrchestrator_PurchaseInvoice_LandedCost(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	draft, err := f.orch.CreateDraft(ctx, postingapp.CreateDocumentRequest{
		Type: string(posting.TypePurchaseInvoice), PartnerID: &f.partner,
		SourceState: "MG", DestState: "SP", WarehouseID: f.warehouse, AffectsStock: true,
		PostingDate: time.Now().UTC(), Reference: "NF-IN-9",
		Lines: []postingapp.DocumentLineRequest{{MaterialID: f.material, Quantity: d("10"), UnitPrice: d("10")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "PURCHASE", draft.OperationType)

	res, err := f.orch.Post(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, d("110").Equal(res.Document.GrossTotal))

	// 100 + 10 IPI - 18 ICMS - 1.65 PIS - 7.60 COFINS
	lv := f.level(t, f.stockKey())
	assert.True(t, d("10").Equal(lv.Quantity))
	assert.True(t, d("8.275").Equal(lv.AverageUnitCost))

	inventory := f.accountID(t, "1.1.03")
	net := sumLines(res.JournalEntry, inventory, "DEBIT").Sub(sumLines(res.JournalEntry, inventory, "CREDIT"))
	assert.True(t, d("82.75").Equal(net))
	assert.True(t, d("110").Equal(sumLines(res.JournalEntry, f.accountID(t, "2.1.01"), "CREDIT")))
	assert.True(t, d("18").Equal(sumLines(res.JournalEntry, f.accountID(t, "1.1.04"), "DEBIT")))

	paid, err := f.orch.RegisterPayment(ctx, draft.ID, postingapp.PaymentRequest{})
	require.NoError(t, err)
	assert.True(t, d("110").Equal(sumLines(paid.JournalEntry, f.accountID(t, "1.1.01"), "CREDIT")))
}

func TestOrchestrator_PurchaseInvoice_InventoryFollowsStockValue(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	draft, err := f.orch.CreateDraft(ctx, postingapp.CreateDocumentRequest{
		Type: string(posting.TypePurchaseInvoice), PartnerID: &f.partner,
		SourceState: "MG", DestState: "SP", WarehouseID: f.warehouse, AffectsStock: true,
		PostingDate: time.Now().UTC(), Reference: "NF-IN-10",
		Lines: []postingapp.DocumentLineRequest{{MaterialID: f.material, Quantity: d("1000"), UnitPrice: d("1.23")}},
	})
	require.NoError(t, err)
	bought, err := f.orch.Post(ctx, draft.ID)
	require.NoError(t, err)

	// landed 1017.82 enters stock at 1.0178 per unit
	inventory := f.accountID(t, "1.1.03")
	priceDiff := f.accountID(t, "4.1.04")
	require.Len(t, bought.Movements, 1)
	assert.True(t, d("1017.8").Equal(bought.Movements[0].TotalCost))
	assert.True(t, d("1017.8").Equal(
		sumLines(bought.JournalEntry, inventory, "DEBIT").Sub(sumLines(bought.JournalEntry, inventory, "CREDIT"))))
	assert.True(t, d("0.02").Equal(sumLines(bought.JournalEntry, priceDiff, "DEBIT")))
	assert.True(t, bought.JournalEntry.TotalDebit.Equal(bought.JournalEntry.TotalCredit))

	issue, err := f.orch.CreateDraft(ctx, postingapp.CreateDocumentRequest{
		Type: string(posting.TypeGoodsIssue), WarehouseID: f.warehouse, PostingDate: time.Now().UTC(),
		Lines: []postingapp.DocumentLineRequest{{MaterialID: f.material, Quantity: d("1000")}},
	})
	require.NoError(t, err)
	issued, err := f.orch.Post(ctx, issue.ID)
	require.NoError(t, err)

	assert.True(t, f.level(t, f.stockKey()).Quantity.IsZero())
	residual := decimal.Zero
	for _, e := range []*journalapp.EntryResponse{bought.JournalEntry, issued.JournalEntry} {
		residual = residual.Add(sumLines(e, inventory, "DEBIT")).Sub(sumLines(e, inventory, "CREDIT"))
	}
	assert.True(t, residual.IsZero(), "inventory residual %s", residual)
}

func TestOrchestrator_GoodsReceiptWithBatch(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	batch := "L-2026-01"
	expires := time.Now().UTC().AddDate(1, 0, 0)
	draft, err := f.orch.CreateDraft(ctx, postingapp.CreateDocumentRequest{
		Type: string(posting.TypeGoodsReceipt), WarehouseID: f.warehouse, PostingDate: time.Now().UTC(),
		Lines: []postingapp.DocumentLineRequest{
			{MaterialID: f.material, Quantity: d("3"), UnitPrice: d("5"), BatchNumber: &batch, BatchExpiresAt: &expires},
			{MaterialID: f.material, Quantity: d("2"), UnitPrice: d("5"), BatchNumber: &batch, BatchExpiresAt: &expires},
		},
	})
	require.NoError(t, err)
	assert.True(t, draft.AffectsStock)

	res, err := f.orch.Post(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, res.Movements, 2)
	assert.Equal(t, res.Movements[0].BatchID, res.Movements[1].BatchID)
	assert.True(t, d("25").Equal(sumLines(res.JournalEntry, f.accountID(t, "1.1.03"), "DEBIT")))
	assert.True(t, d("25").Equal(sumLines(res.JournalEntry, f.accountID(t, "2.1.02"), "CREDIT")))

	key := f.stockKey()
	key.Batch = &inventoryapp.BatchInput{BatchNumber: batch}
	assert.True(t, d("5").Equal(f.level(t, key).Quantity))
}

func TestOrchestrator_InventoryCount(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	f.stock(t, "10", "2")
	draft, err := f.orch.CreateDraft(ctx, postingapp.CreateDocumentRequest{
		Type: string(posting.TypeInventoryCount), WarehouseID: f.warehouse, PostingDate: time.Now().UTC(),
		Lines: []postingapp.DocumentLineRequest{{MaterialID: f.material, CountedQuantity: dp("7")}},
	})
	require.NoError(t, err)

	res, err := f.orch.Post(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, d("-6").Equal(res.Document.Lines[0].CostOfGoods))
	assert.True(t, d("6").Equal(sumLines(res.JournalEntry, f.accountID(t, "4.1.03"), "DEBIT")))
	assert.True(t, d("6").Equal(sumLines(res.JournalEntry, f.accountID(t, "1.1.03"), "CREDIT")))
	assert.True(t, d("7").Equal(f.level(t, f.stockKey()).Quantity))
}

func TestOrchestrator_TransferBooksNoEntry(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	f.stock(t, "10", "2")
	dest := uuid.New()
	draft, err := f.orch.CreateDraft(ctx, postingapp.CreateDocumentRequest{
		Type: string(posting.TypeStockTransfer), WarehouseID: f.warehouse, DestWarehouseID: &dest,
		PostingDate: time.Now().UTC(),
		Lines:       []postingapp.DocumentLineRequest{{MaterialID: f.material, Quantity: d("4")}},
	})
	require.NoError(t, err)

	res, err := f.orch.Post(ctx, draft.ID)
	require.NoError(t, err)
	assert.Nil(t, res.JournalEntry)
	assert.Nil(t, res.Document.JournalEntryID)
	assert.Len(t, res.Movements, 2)

	assert.True(t, d("6").Equal(f.level(t, f.stockKey()).Quantity))
	moved := f.level(t, inventoryapp.StockKeyInput{MaterialID: f.material, WarehouseID: dest})
	assert.True(t, d("4").Equal(moved.Quantity))
	assert.True(t, d("2").Equal(moved.AverageUnitCost))

	_, err = f.orch.Cancel(ctx, draft.ID, postingapp.CancelRequest{Reason: "wrong warehouse"})
	require.NoError(t, err)
	assert.True(t, d("10").Equal(f.level(t, f.stockKey()).Quantity))
	assert.True(t, f.level(t, inventoryapp.StockKeyInput{MaterialID: f.material, WarehouseID: dest}).Quantity.IsZero())
}

func TestOrchestrator_Delete(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	f.stock(t, "10", "2")

	draft := f.salesInvoice(t, "1", "10")
	require.NoError(t, f.orch.Delete(ctx, draft.ID))
	_, err := f.orch.Document(ctx, draft.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	posted := f.salesInvoice(t, "1", "10")
	_, err = f.orch.Post(ctx, posted.ID)
	require.NoError(t, err)
	assert.True(t, errors.Is(f.orch.Delete(ctx, posted.ID), shared.ErrInvalidState))
}

func TestOrchestrator_List(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	f.stock(t, "10", "2")
	first := f.salesInvoice(t, "1", "10")
	f.salesInvoice(t, "1", "10")
	_, err := f.orch.Post(ctx, first.ID)
	require.NoError(t, err)

	docs, total, err := f.orch.List(ctx, postingapp.DocumentListFilter{Status: "POSTED"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, docs, 1)
	assert.Equal(t, first.ID, docs[0].ID)

	_, total, err = f.orch.List(ctx, postingapp.DocumentListFilter{Type: string(posting.TypeSalesInvoice)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, _, err = f.orch.List(ctx, postingapp.DocumentListFilter{Type: "CREDIT_NOTE"})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestOrchestrator_Post_TimesOutWhileLocked(t *testing.T) {
	f := newFixture(t, postingapp.Options{Timeout: 50 * time.Millisecond})
	f.stock(t, "10", "2")
	draft := f.salesInvoice(t, "1", "10")

	unlock, err := f.locker.LockKeys(context.Background(), "document:"+draft.ID.String())
	require.NoError(t, err)
	defer unlock()

	_, err = f.orch.Post(context.Background(), draft.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrPostingTimeout))

	unlock()
	doc, err := f.orch.Document(context.Background(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", doc.Status)
	assert.True(t, d("10").Equal(f.level(t, f.stockKey()).Quantity))
}

func TestOrchestrator_ConcurrentPostsNeverOversell(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	f.stock(t, "3", "2")

	ids := make([]uuid.UUID, 6)
	for i := range ids {
		ids[i] = f.salesInvoice(t, "1", "10").ID
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		posted int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.orch.Post(context.Background(), id)
			if err == nil {
				mu.Lock()
				posted++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, shared.ErrInsufficientStock), "unexpected error: %v", err)
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, posted)
	assert.True(t, f.level(t, f.stockKey()).Quantity.IsZero())
}

func TestDriftCheckHandler(t *testing.T) {
	f := newFixture(t, postingapp.Options{})
	ctx := context.Background()
	f.stock(t, "10", "2")
	draft := f.salesInvoice(t, "2", "10")
	_, err := f.orch.Post(ctx, draft.ID)
	require.NoError(t, err)

	event := f.publisher.find(posting.EventTypeDocumentPosted)
	require.NotNil(t, event)

	handler := postingapp.NewDriftCheckHandler(f.ledger, nil)
	assert.ElementsMatch(t, []string{posting.EventTypeDocumentPosted, posting.EventTypeDocumentCancelled}, handler.EventTypes())
	require.NoError(t, handler.Handle(ctx, event))

	lv := f.level(t, f.stockKey())
	require.NoError(t, f.db.Model(&models.StockLevelModel{}).Where("id = ?", lv.ID).Update("quantity", d("9")).Error)

	err = handler.Handle(ctx, event)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrLedgerDrift))
	assert.True(t, f.level(t, f.stockKey()).Frozen)

	next := f.salesInvoice(t, "1", "10")
	_, err = f.orch.Post(ctx, next.ID)
	assert.True(t, errors.Is(err, shared.ErrLedgerDrift))
}
