package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("detailed error matches its sentinel", func(t *testing.T) {
		err := Errorf(ErrInsufficientStock, "requested 100, available 40")
		assert.True(t, errors.Is(err, ErrInsufficientStock))
		assert.Equal(t, "requested 100, available 40", err.Error())
		assert.Equal(t, "INSUFFICIENT_STOCK", err.Code)
	})

	t.Run("wrapped error still matches", func(t *testing.T) {
		err := fmt.Errorf("post document: %w", Errorf(ErrNoTaxRuleFound, "no rule for SP->RJ"))
		assert.True(t, errors.Is(err, ErrNoTaxRuleFound))
		assert.False(t, errors.Is(err, ErrUnbalancedEntry))
	})
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ErrInsufficientStock))
	assert.True(t, IsRecoverable(fmt.Errorf("x: %w", ErrInvalidState)))
	assert.False(t, IsRecoverable(Errorf(ErrLedgerDrift, "drift")))
	assert.False(t, IsRecoverable(errors.New("database down")))
}

func TestSortKeys(t *testing.T) {
	keys := SortKeys([]string{"stock:b", "stock:a", "", "stock:b", "document:1"})
	assert.Equal(t, []string{"document:1", "stock:a", "stock:b"}, keys)
}
