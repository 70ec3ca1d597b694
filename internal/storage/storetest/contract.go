// Package storetest runs the same behavioural checks against every
// interfaces.LedgerStore backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/seed"
)

// Factory returns a store that starts out holding the seed dataset.
type Factory func(t *testing.T) interfaces.LedgerStore

var when = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Run executes the contract suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("StartsFromSeed", func(t *testing.T) { testStartsFromSeed(t, newStore(t)) })
	t.Run("CustomerCRUD", func(t *testing.T) { testCustomerCRUD(t, newStore(t)) })
	t.Run("AppendTransaction", func(t *testing.T) { testAppendTransaction(t, newStore(t)) })
	t.Run("AppendTransactionUnknownCustomer", func(t *testing.T) { testAppendUnknown(t, newStore(t)) })
	t.Run("DeleteCustomerCascades", func(t *testing.T) { testDeleteCascades(t, newStore(t)) })
	t.Run("ReplaceCustomersDropsTransactions", func(t *testing.T) { testReplaceCustomers(t, newStore(t)) })
	t.Run("ReplaceAll", func(t *testing.T) { testReplaceAll(t, newStore(t)) })
	t.Run("OrderCRUD", func(t *testing.T) { testOrderCRUD(t, newStore(t)) })
	t.Run("MinorUnitBounds", func(t *testing.T) { testMinorUnitBounds(t, newStore(t)) })
}

func testStartsFromSeed(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	want := seed.Default()

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	AssertSameSnapshot(t, want, snap)
}

func testCustomerCRUD(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	c := models.Customer{ID: "c-new", Name: "Nadia", Phone: "0550000001", CreatedAt: when, Balance: decimal.Zero}
	require.NoError(t, s.SaveCustomer(ctx, c))

	got, err := s.GetCustomer(ctx, "c-new")
	require.NoError(t, err)
	assert.Equal(t, "Nadia", got.Name)
	assert.True(t, got.CreatedAt.Equal(when))

	c.Name = "Nadia B."
	require.NoError(t, s.SaveCustomer(ctx, c))
	got, err = s.GetCustomer(ctx, "c-new")
	require.NoError(t, err)
	assert.Equal(t, "Nadia B.", got.Name)

	all, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(seed.Default().Customers)+1)

	require.NoError(t, s.SetBalance(ctx, "c-new", money("-12.34")))
	got, err = s.GetCustomer(ctx, "c-new")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(money("-12.34")), "balance = %s", got.Balance)

	_, err = s.GetCustomer(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.SetBalance(ctx, "missing", decimal.Zero), models.ErrNotFound)
	assert.ErrorIs(t, s.DeleteCustomer(ctx, "missing"), models.ErrNotFound)
}

func testAppendTransaction(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	before, err := s.GetCustomer(ctx, "cust-002")
	require.NoError(t, err)

	debt := models.Transaction{ID: "t-a", CustomerID: "cust-002", Type: models.TransactionDebt, Amount: money("99.99"), Date: when, Description: "pain"}
	got, err := s.AppendTransaction(ctx, debt)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(before.Balance.Add(money("99.99"))), "balance = %s", got.Balance)

	pay := models.Transaction{ID: "t-b", CustomerID: "cust-002", Type: models.TransactionPayment, Amount: money("100.00"), Date: when.Add(time.Minute), Description: "cash", OrderID: "order-002"}
	got, err = s.AppendTransaction(ctx, pay)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(before.Balance.Sub(money("0.01"))), "balance = %s", got.Balance)

	stored, err := s.GetCustomer(ctx, "cust-002")
	require.NoError(t, err)
	assert.True(t, stored.Balance.Equal(got.Balance))

	txs, err := s.TransactionsByCustomer(ctx, "cust-002")
	require.NoError(t, err)
	ids := map[string]models.Transaction{}
	for _, tx := range txs {
		ids[tx.ID] = tx
	}
	require.Contains(t, ids, "t-a")
	require.Contains(t, ids, "t-b")
	assert.Equal(t, "order-002", ids["t-b"].OrderID)
	assert.Equal(t, models.TransactionPayment, ids["t-b"].Type)
	assert.True(t, ids["t-a"].Date.Equal(when))
}

func testAppendUnknown(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	before, err := s.ListTransactions(ctx)
	require.NoError(t, err)

	_, err = s.AppendTransaction(ctx, models.Transaction{ID: "t-x", CustomerID: "ghost", Type: models.TransactionDebt, Amount: money("1.00"), Date: when})
	assert.ErrorIs(t, err, models.ErrNotFound)

	after, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func testDeleteCascades(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	require.NoError(t, s.DeleteCustomer(ctx, "cust-001"))

	_, err := s.GetCustomer(ctx, "cust-001")
	assert.ErrorIs(t, err, models.ErrNotFound)

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	for _, tx := range txs {
		assert.NotEqual(t, "cust-001", tx.CustomerID)
	}
	assert.NotEmpty(t, txs)
}

func testReplaceCustomers(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	imported := []models.Customer{
		{ID: "i-1", Name: "Imported", Phone: "0123456789", CreatedAt: when, Balance: money("300.00"), OpeningBalance: money("300.00")},
	}
	require.NoError(t, s.ReplaceCustomers(ctx, imported))

	customers, err := s.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.True(t, customers[0].Balance.Equal(money("300")))
	assert.True(t, customers[0].OpeningBalance.Equal(money("300")))

	txs, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)

	orders, err := s.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, len(seed.Default().BreadOrders))
}

func testReplaceAll(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	require.NoError(t, s.ReplaceAll(ctx, models.Snapshot{}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Customers)
	assert.Empty(t, snap.Transactions)
	assert.Empty(t, snap.BreadOrders)

	require.NoError(t, s.ReplaceAll(ctx, seed.Default()))
	snap, err = s.Snapshot(ctx)
	require.NoError(t, err)
	AssertSameSnapshot(t, seed.Default(), snap)
}

func testOrderCRUD(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	cid, cname := "cust-003", "Karim Haddad"
	o := models.BreadOrder{ID: "o-new", Name: "Croissants", Quantity: 12, UnitPrice: money("30.00"), CreatedAt: when, CustomerID: &cid, CustomerName: &cname}
	o.Recalculate()
	require.NoError(t, s.SaveOrder(ctx, o))

	got, err := s.GetOrder(ctx, "o-new")
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(money("360")))
	require.NotNil(t, got.CustomerName)
	assert.Equal(t, "Karim Haddad", *got.CustomerName)

	o.IsPaid = true
	o.CustomerID, o.CustomerName = nil, nil
	require.NoError(t, s.SaveOrder(ctx, o))
	got, err = s.GetOrder(ctx, "o-new")
	require.NoError(t, err)
	assert.True(t, got.IsPaid)
	assert.Nil(t, got.CustomerID)
	assert.Nil(t, got.CustomerName)

	require.NoError(t, s.DeleteOrder(ctx, "o-new"))
	_, err = s.GetOrder(ctx, "o-new")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.DeleteOrder(ctx, "o-new"), models.ErrNotFound)
}

func testMinorUnitBounds(t *testing.T, s interfaces.LedgerStore) {
	ctx := context.Background()
	high, low := money("92233720368547758.07"), money("-92233720368547758.08")
	require.NoError(t, models.CheckMoney("high", high))
	require.NoError(t, models.CheckMoney("low", low))

	require.NoError(t, s.SetBalance(ctx, "cust-001", high))
	got, err := s.GetCustomer(ctx, "cust-001")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(high), "balance = %s", got.Balance)

	require.NoError(t, s.SaveCustomer(ctx, models.Customer{ID: "c-low", Name: "Low", Phone: "0123456789", CreatedAt: when, Balance: low, OpeningBalance: low}))
	got, err = s.GetCustomer(ctx, "c-low")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(low), "balance = %s", got.Balance)
	assert.True(t, got.OpeningBalance.Equal(low), "opening = %s", got.OpeningBalance)

	pay := models.Transaction{ID: "t-max", CustomerID: "cust-002", Type: models.TransactionPayment, Amount: high, Date: when, Description: "settle"}
	require.NoError(t, s.SetBalance(ctx, "cust-002", decimal.Zero))
	got, err = s.AppendTransaction(ctx, pay)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(high.Neg()), "balance = %s", got.Balance)

	txs, err := s.TransactionsByCustomer(ctx, "cust-002")
	require.NoError(t, err)
	var found bool
	for _, tx := range txs {
		if tx.ID == "t-max" {
			found = true
			assert.True(t, tx.Amount.Equal(high), "amount = %s", tx.Amount)
		}
	}
	assert.True(t, found)
}

// AssertSameSnapshot compares two snapshots by entity id, using decimal and
// time equality rather than struct identity.
func AssertSameSnapshot(t *testing.T, want, got models.Snapshot) {
	t.Helper()

	require.Len(t, got.Customers, len(want.Customers))
	gc := map[string]models.Customer{}
	for _, c := range got.Customers {
		gc[c.ID] = c
	}
	for _, w := range want.Customers {
		g, ok := gc[w.ID]
		if !assert.True(t, ok, "customer %s missing", w.ID) {
			continue
		}
		assert.Equal(t, w.Name, g.Name)
		assert.Equal(t, w.Phone, g.Phone)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "customer %s createdAt %s, want %s", w.ID, g.CreatedAt, w.CreatedAt)
		assert.True(t, w.Balance.Equal(g.Balance), "customer %s balance %s, want %s", w.ID, g.Balance, w.Balance)
		assert.True(t, w.OpeningBalance.Equal(g.OpeningBalance), "customer %s opening %s, want %s", w.ID, g.OpeningBalance, w.OpeningBalance)
	}

	require.Len(t, got.Transactions, len(want.Transactions))
	gt := map[string]models.Transaction{}
	for _, tx := range got.Transactions {
		gt[tx.ID] = tx
	}
	for _, w := range want.Transactions {
		g, ok := gt[w.ID]
		if !assert.True(t, ok, "transaction %s missing", w.ID) {
			continue
		}
		assert.Equal(t, w.CustomerID, g.CustomerID)
		assert.Equal(t, w.Type, g.Type)
		assert.True(t, w.Amount.Equal(g.Amount))
		assert.True(t, w.Date.Equal(g.Date))
		assert.Equal(t, w.Description, g.Description)
		assert.Equal(t, w.OrderID, g.OrderID)
	}

	require.Len(t, got.BreadOrders, len(want.BreadOrders))
	gcOrders := map[string]models.BreadOrder{}
	for _, o := range got.BreadOrders {
		gcOrders[o.ID] = o
	}
	for _, w := range want.BreadOrders {
		g, ok := gcOrders[w.ID]
		if !assert.True(t, ok, "order %s missing", w.ID) {
			continue
		}
		assert.Equal(t, w.Name, g.Name)
		assert.Equal(t, w.Quantity, g.Quantity)
		assert.True(t, w.UnitPrice.Equal(g.UnitPrice))
		assert.True(t, w.TotalAmount.Equal(g.TotalAmount))
		assert.Equal(t, w.IsPaid, g.IsPaid)
		assert.Equal(t, w.IsDelivered, g.IsDelivered)
		assert.Equal(t, w.IsPinned, g.IsPinned)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt))
		assert.Equal(t, w.CustomerID, g.CustomerID)
		assert.Equal(t, w.CustomerName, g.CustomerName)
	}
}
