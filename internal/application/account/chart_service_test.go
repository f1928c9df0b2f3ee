package account

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/posting/internal/domain/account"
	"github.com/erp/posting/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindAll(ctx context.Context) ([]*account.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) Save(ctx context.Context, a *account.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func seedAccounts(t *testing.T) (*account.Account, *account.Account) {
	t.Helper()
	root, err := account.NewAccount("1", "Assets", account.TypeAsset, "", nil)
	require.NoError(t, err)
	cash, err := account.NewAccount("1.1", "Cash", account.TypeAsset, "", &root.ID)
	require.NoError(t, err)
	return root, cash
}

func TestChartService_CachesSnapshot(t *testing.T) {
	root, cash := seedAccounts(t)
	repo := new(MockAccountRepository)
	repo.On("FindAll", mock.Anything).Return([]*account.Account{cash, root}, nil).Once()

	svc := NewChartService(repo, nil)
	_, err := svc.Chart(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chart, err := svc.Chart(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 2, chart.Len())
		}()
	}
	wg.Wait()

	chart, err := svc.Chart(context.Background())
	require.NoError(t, err)
	_, err = chart.Postable(cash.ID)
	assert.NoError(t, err)
	_, err = chart.Postable(root.ID)
	assert.True(t, errors.Is(err, shared.ErrAccountNotPostable))
	repo.AssertNumberOfCalls(t, "FindAll", 1)
}

func TestChartService_AddAccount(t *testing.T) {
	root, cash := seedAccounts(t)
	repo := new(MockAccountRepository)
	repo.On("FindAll", mock.Anything).Return([]*account.Account{root, cash}, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*account.Account")).Return(nil)

	svc := NewChartService(repo, nil)
	before, err := svc.Chart(context.Background())
	require.NoError(t, err)

	resp, err := svc.AddAccount(context.Background(), CreateAccountRequest{
		Code: "1.1.01", Name: "Petty cash", Type: "ASSET", ParentID: &cash.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "DEBIT", resp.Nature)
	assert.Equal(t, 2, resp.Depth)
	assert.True(t, resp.Leaf)

	after, err := svc.Chart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, after.Len())
	assert.Equal(t, 2, before.Len(), "earlier snapshot is unchanged")
	_, err = after.Postable(cash.ID)
	assert.True(t, errors.Is(err, shared.ErrAccountNotPostable))
}

func TestChartService_AddAccountRejections(t *testing.T) {
	root, cash := seedAccounts(t)
	repo := new(MockAccountRepository)
	repo.On("FindAll", mock.Anything).Return([]*account.Account{root, cash}, nil)
	svc := NewChartService(repo, nil)
	ctx := context.Background()

	_, err := svc.AddAccount(ctx, CreateAccountRequest{Code: "1.1", Name: "Dup", Type: "ASSET"})
	assert.True(t, errors.Is(err, shared.ErrAlreadyExists))

	missing := uuid.New()
	_, err = svc.AddAccount(ctx, CreateAccountRequest{Code: "9", Name: "Orphan", Type: "ASSET", ParentID: &missing})
	assert.True(t, errors.Is(err, shared.ErrAccountNotFound))

	_, err = svc.AddAccount(ctx, CreateAccountRequest{Code: "1.2", Name: "Revenue", Type: "REVENUE", ParentID: &root.ID})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))

	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestChartService_DeactivateAccount(t *testing.T) {
	root, cash := seedAccounts(t)
	repo := new(MockAccountRepository)
	repo.On("FindAll", mock.Anything).Return([]*account.Account{root, cash}, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*account.Account")).Return(nil)
	svc := NewChartService(repo, nil)
	ctx := context.Background()

	resp, err := svc.DeactivateAccount(ctx, cash.ID)
	require.NoError(t, err)
	assert.False(t, resp.Active)
	assert.True(t, cash.Active, "loaded account is not mutated")

	chart, err := svc.Chart(ctx)
	require.NoError(t, err)
	_, err = chart.Postable(cash.ID)
	assert.True(t, errors.Is(err, shared.ErrAccountNotPostable))

	_, err = svc.DeactivateAccount(ctx, cash.ID)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestChartService_ListAccounts(t *testing.T) {
	root, cash := seedAccounts(t)
	repo := new(MockAccountRepository)
	repo.On("FindAll", mock.Anything).Return([]*account.Account{cash, root}, nil)
	svc := NewChartService(repo, nil)

	list, err := svc.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "1", list[0].Code)
	assert.False(t, list[0].Leaf)
	assert.Equal(t, "1.1", list[1].Code)

	got, err := svc.GetAccount(context.Background(), cash.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Depth)
}

func TestChartService_SeedChart(t *testing.T) {
	repo := new(MockAccountRepository)
	repo.On("FindAll", mock.Anything).Return([]*account.Account{}, nil).Once()
	repo.On("Save", mock.Anything, mock.Anything).Return(nil)

	svc := NewChartService(repo, nil)
	n, err := svc.SeedChart(context.Background(), account.DefaultChartNodes)
	require.NoError(t, err)
	assert.Equal(t, len(account.DefaultChartNodes), n)
	repo.AssertNumberOfCalls(t, "Save", n)

	chart, err := svc.Chart(context.Background())
	require.NoError(t, err)
	_, err = chart.ByCode("2.1.02")
	assert.NoError(t, err)
}

func TestChartService_SeedChart_SkipsPopulated(t *testing.T) {
	root, cash := seedAccounts(t)
	repo := new(MockAccountRepository)
	repo.On("FindAll", mock.Anything).Return([]*account.Account{root, cash}, nil).Once()

	svc := NewChartService(repo, nil)
	n, err := svc.SeedChart(context.Background(), account.DefaultChartNodes)
	require.NoError(t, err)
	assert.Zero(t, n)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
