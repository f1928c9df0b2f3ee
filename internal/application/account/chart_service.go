// Package account serves the chart of accounts from an in-memory snapshot.
package account

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/erp/posting/internal/domain/account"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ChartService keeps an immutable snapshot of the chart. Readers load the
// current snapshot without locking; writers build a new chart and swap it.
type ChartService struct {
	repo     account.AccountRepository
	logger   *zap.Logger
	snapshot atomic.Pointer[account.ChartOfAccounts]
	loads    singleflight.Group
	writeMu  sync.Mutex
}

// NewChartService creates a ChartService. The chart is loaded on first use.
func NewChartService(repo account.AccountRepository, logger *zap.Logger) *ChartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChartService{repo: repo, logger: logger}
}

// Chart returns the current snapshot
func (s *ChartService) Chart(ctx context.Context) (*account.ChartOfAccounts, error) {
	if c := s.snapshot.Load(); c != nil {
		return c, nil
	}
	return s.Reload(ctx)
}

// Reload rebuilds the snapshot from the repository. Concurrent callers share
// one load.
func (s *ChartService) Reload(ctx context.Context) (*account.ChartOfAccounts, error) {
	v, err, _ := s.loads.Do("chart", func() (any, error) {
		accounts, err := s.repo.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		chart, err := account.BuildChart(accounts)
		if err != nil {
			return nil, err
		}
		s.snapshot.Store(chart)
		s.logger.Debug("Chart of accounts loaded", zap.Int("accounts", chart.Len()))
		return chart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*account.ChartOfAccounts), nil
}

// AddAccount validates an account against the current chart, persists it
// and publishes a new snapshot
func (s *ChartService) AddAccount(ctx context.Context, req CreateAccountRequest) (*AccountResponse, error) {
	a, err := account.NewAccount(req.Code, req.Name, account.AccountType(req.Type), account.Nature(req.Nature), req.ParentID)
	if err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.Chart(ctx)
	if err != nil {
		return nil, err
	}
	if a.ParentID != nil {
		parent, err := current.Get(*a.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Type != a.Type {
			return nil, shared.Errorf(shared.ErrInvalidInput, "account %s must have the type of its parent %s", a.Code, parent.Code)
		}
	}
	next, err := account.BuildChart(append(current.All(), a))
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return nil, err
	}
	s.snapshot.Store(next)

	s.logger.Info("Account created", zap.String("code", a.Code), zap.String("account_id", a.ID.String()))
	resp := ToAccountResponse(next, a)
	return &resp, nil
}

// SeedChart stores a chart template when no account exists yet. It returns
// the number of accounts created, zero when the chart was already populated.
func (s *ChartService) SeedChart(ctx context.Context, nodes []account.ChartNode) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.repo.FindAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	accounts, err := account.BuildAccounts(nodes)
	if err != nil {
		return 0, err
	}
	chart, err := account.BuildChart(accounts)
	if err != nil {
		return 0, err
	}
	for _, a := range accounts {
		if err := s.repo.Save(ctx, a); err != nil {
			return 0, err
		}
	}
	s.snapshot.Store(chart)

	s.logger.Info("Chart of accounts seeded", zap.Int("accounts", len(accounts)))
	return len(accounts), nil
}

// DeactivateAccount stops an account from accepting postings. Existing
// lines are not touched.
func (s *ChartService) DeactivateAccount(ctx context.Context, id uuid.UUID) (*AccountResponse, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.Chart(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := current.Get(id)
	if err != nil {
		return nil, err
	}
	if !existing.Active {
		return nil, shared.Errorf(shared.ErrInvalidState, "account %s is already inactive", existing.Code)
	}

	// snapshots share account pointers, so change a copy
	updated := *existing
	updated.Active = false
	updated.Touch()

	accounts := current.All()
	for i, a := range accounts {
		if a.ID == id {
			accounts[i] = &updated
		}
	}
	next, err := account.BuildChart(accounts)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, &updated); err != nil {
		return nil, err
	}
	s.snapshot.Store(next)

	s.logger.Info("Account deactivated", zap.String("code", updated.Code))
	resp := ToAccountResponse(next, &updated)
	return &resp, nil
}

// GetAccount returns one account
func (s *ChartService) GetAccount(ctx context.Context, id uuid.UUID) (*AccountResponse, error) {
	chart, err := s.Chart(ctx)
	if err != nil {
		return nil, err
	}
	a, err := chart.Get(id)
	if err != nil {
		return nil, err
	}
	resp := ToAccountResponse(chart, a)
	return &resp, nil
}

// ListAccounts returns every account ordered by code
func (s *ChartService) ListAccounts(ctx context.Context) ([]AccountResponse, error) {
	chart, err := s.Chart(ctx)
	if err != nil {
		return nil, err
	}
	all := chart.All()
	out := make([]AccountResponse, len(all))
	for i, a := range all {
		out[i] = ToAccountResponse(chart, a)
	}
	return out, nil
}
