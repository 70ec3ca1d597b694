package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/seed"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage/storetest"
)

func TestMemoryLedgerStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) interfaces.LedgerStore {
		return NewMemoryLedgerStore(seed.Default(), nil)
	})
}

func TestCommitCalledAfterEveryMutation(t *testing.T) {
	var commits int
	s := NewMemoryLedgerStore(seed.Default(), func(models.Snapshot) error {
		commits++
		return nil
	})
	ctx := context.Background()

	require.NoError(t, s.SetBalance(ctx, "cust-001", decimal.Zero))
	require.NoError(t, s.DeleteOrder(ctx, "order-002"))
	_, err := s.ListCustomers(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, commits)
}

func TestCommitFailureKeepsMutation(t *testing.T) {
	boom := errors.New("disk full")
	s := NewMemoryLedgerStore(seed.Default(), func(models.Snapshot) error { return boom })
	ctx := context.Background()

	err := s.SetBalance(ctx, "cust-001", decimal.NewFromInt(7))
	assert.ErrorIs(t, err, models.ErrStorage)
	assert.ErrorIs(t, err, boom)

	c, err := s.GetCustomer(ctx, "cust-001")
	require.NoError(t, err)
	assert.True(t, c.Balance.Equal(decimal.NewFromInt(7)))
}

func TestReturnedSlicesAreCopies(t *testing.T) {
	s := NewMemoryLedgerStore(seed.Default(), nil)
	ctx := context.Background()

	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	customers[0].Name = "mutated"

	again, err := s.GetCustomer(ctx, customers[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Name)
}
