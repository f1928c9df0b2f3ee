package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	accountapp "github.com/erp/posting/internal/application/account"
	inventoryapp "github.com/erp/posting/internal/application/inventory"
	journalapp "github.com/erp/posting/internal/application/journal"
	postingapp "github.com/erp/posting/internal/application/posting"
	taxapp "github.com/erp/posting/internal/application/tax"
	"github.com/erp/posting/internal/domain/account"
	"github.com/erp/posting/internal/infrastructure/config"
	"github.com/erp/posting/internal/infrastructure/event"
	"github.com/erp/posting/internal/infrastructure/lock"
	"github.com/erp/posting/internal/infrastructure/persistence"
	"github.com/erp/posting/internal/infrastructure/persistence/testdb"
	"github.com/erp/posting/internal/interfaces/http/dto"
	"github.com/erp/posting/internal/interfaces/http/handler"
	"github.com/erp/posting/internal/interfaces/http/middleware"
	"github.com/erp/posting/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// envelope mirrors dto.Response with the payload left raw
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

type server struct {
	engine *gin.Engine
	routes []router.RouteInfo
	chart  *accountapp.ChartService
	taxes  *taxapp.TaxService
	ledger *inventoryapp.StockLedger

	material  uuid.UUID
	warehouse uuid.UUID
	partner   uuid.UUID
}

// newServer wires the posting core on SQLite behind the HTTP handlers
func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	db := testdb.New(t)
	scope := persistence.NewGormTransactionScope(db)
	repos := persistence.NewGormRepositories(db)
	bus := event.NewInMemoryEventBus(zap.NewNop())
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

	ledger := inventoryapp.NewStockLedger(scope.Inventory(), repos, locker, bus, nil, inventoryapp.LedgerOptions{VerifyOnWrite: true})
	engine := journalapp.NewJournalEngine(scope.Journal(), repos, chart, bus, nil, journalapp.EngineOptions{ClearingTolerance: decimal.Zero})
	orch := postingapp.NewOrchestrator(scope.Posting(), repos, ledger, engine, taxes, chart, bus, nil,
		postingapp.Options{Accounts: config.DefaultAccounts()})

	g := gin.New()
	g.Use(middleware.RequestID())
	routes := router.NewRouter(g).Register(
		handler.NewAccountHandler(chart).Routes(),
		handler.NewTaxHandler(taxes).Routes(),
		handler.NewStockHandler(ledger).Routes(),
		handler.NewBatchHandler(ledger).Routes(),
		handler.NewJournalHandler(engine).Routes(),
		handler.NewDocumentHandler(orch).Routes(),
	).Setup()

	return &server{
		engine: g, routes: routes, chart: chart, taxes: taxes, ledger: ledger,
		material: uuid.New(), warehouse: uuid.New(), partner: uuid.New(),
	}
}

// do sends a request to /api/v1 + path; body is JSON-encoded when not nil
func (s *server) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return serve(t, s.engine, method, "/api/v1"+path, body)
}

func serve(t *testing.T, engine http.Handler, method, target string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

// decode unmarshals the envelope payload into out
func decode(t *testing.T, env envelope, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
}

func (s *server) accountID(t *testing.T, code string) uuid.UUID {
	t.Helper()
	chart, err := s.chart.Chart(context.Background())
	require.NoError(t, err)
	a, err := chart.ByCode(code)
	require.NoError(t, err)
	return a.ID
}

func (s *server) receive(t *testing.T, qty, cost string) {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/stock/receive", map[string]any{
		"material_id":  s.material,
		"warehouse_id": s.warehouse,
		"quantity":     qty,
		"unit_cost":    cost,
		"reference":    "GR-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, env.Success)
}
