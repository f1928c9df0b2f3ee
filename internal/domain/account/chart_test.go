package account

import (
	"errors"
	"testing"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAccount(t *testing.T, code string, typ AccountType, parent *Account) *Account {
	t.Helper()
	if parent == nil {
		a, err := NewAccount(code, "Account "+code, typ, "", nil)
		require.NoError(t, err)
		return a
	}
	a, err := NewAccount(code, "Account "+code, typ, "", &parent.ID)
	require.NoError(t, err)
	return a
}

func TestNewAccount(t *testing.T) {
	t.Run("defaults nature from type", func(t *testing.T) {
		a, err := NewAccount("1", "Assets", TypeAsset, "", nil)
		require.NoError(t, err)
		assert.Equal(t, NatureDebit, a.Nature)
		assert.True(t, a.Active)

		l, err := NewAccount("2", "Liabilities", TypeLiability, "", nil)
		require.NoError(t, err)
		assert.Equal(t, NatureCredit, l.Nature)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := NewAccount("", "x", TypeAsset, "", nil)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		_, err = NewAccount("1", "", TypeAsset, "", nil)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		_, err = NewAccount("1", "x", "BOGUS", "", nil)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestChart_AddRequiresParent(t *testing.T) {
	chart := NewChart()
	root := mustAccount(t, "1", TypeAsset, nil)
	orphan := mustAccount(t, "1.1", TypeAsset, root)

	err := chart.Add(orphan)
	assert.True(t, errors.Is(err, shared.ErrAccountNotFound))

	require.NoError(t, chart.Add(root))
	require.NoError(t, chart.Add(orphan))
	assert.Equal(t, 2, chart.Len())

	dup := mustAccount(t, "1.1", TypeAsset, root)
	assert.True(t, errors.Is(chart.Add(dup), shared.ErrAlreadyExists))
}

func TestBuildChart_AnyOrder(t *testing.T) {
	root := mustAccount(t, "1", TypeAsset, nil)
	mid := mustAccount(t, "1.1", TypeAsset, root)
	leaf := mustAccount(t, "1.1.01", TypeAsset, mid)

	chart, err := BuildChart([]*Account{leaf, mid, root})
	require.NoError(t, err)

	assert.False(t, chart.IsLeaf(root.ID))
	assert.True(t, chart.IsLeaf(leaf.ID))
	assert.Equal(t, 2, chart.Depth(leaf.ID))
	assert.Equal(t, []*Account{mid, root}, chart.Ancestors(leaf.ID))
	assert.Equal(t, []*Account{root}, chart.Roots())
	assert.Equal(t, []*Account{mid}, chart.Children(root.ID))

	got, err := chart.ByCode("1.1.01")
	require.NoError(t, err)
	assert.Equal(t, leaf.ID, got.ID)
}

func TestBuildChart_MissingParent(t *testing.T) {
	root := mustAccount(t, "1", TypeAsset, nil)
	child := mustAccount(t, "1.1", TypeAsset, root)

	_, err := BuildChart([]*Account{child})
	assert.True(t, errors.Is(err, shared.ErrAccountNotFound))
}

func TestChart_Postable(t *testing.T) {
	root := mustAccount(t, "3", TypeRevenue, nil)
	leaf := mustAccount(t, "3.01", TypeRevenue, root)
	inactive := mustAccount(t, "3.02", TypeRevenue, root)
	inactive.Active = false

	chart, err := BuildChart([]*Account{root, leaf, inactive})
	require.NoError(t, err)

	a, err := chart.Postable(leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, "3.01", a.Code)

	_, err = chart.Postable(root.ID)
	assert.True(t, errors.Is(err, shared.ErrAccountNotPostable))

	_, err = chart.Postable(inactive.ID)
	assert.True(t, errors.Is(err, shared.ErrAccountNotPostable))
}

func TestDefaultChart(t *testing.T) {
	accounts, err := BuildAccounts(DefaultChartNodes)
	require.NoError(t, err)
	chart, err := BuildChart(accounts)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultChartNodes), chart.Len())

	inv, err := chart.ByCode("1.1.03")
	require.NoError(t, err)
	_, err = chart.Postable(inv.ID)
	assert.NoError(t, err)
	assert.Equal(t, NatureDebit, inv.Nature)

	rev, err := chart.ByCode("3.1.01")
	require.NoError(t, err)
	assert.Equal(t, NatureCredit, rev.Nature)

	group, err := chart.ByCode("1.1")
	require.NoError(t, err)
	_, err = chart.Postable(group.ID)
	assert.True(t, errors.Is(err, shared.ErrAccountNotPostable))
}

func TestBuildAccounts_ParentOrder(t *testing.T) {
	_, err := BuildAccounts([]ChartNode{{Code: "1.1", Name: "Cash", Type: TypeAsset, Parent: "1"}})
	assert.True(t, errors.Is(err, shared.ErrAccountNotFound))
}
