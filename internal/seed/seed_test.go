package seed

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsConsistent(t *testing.T) {
	snap := Default()
	require.Len(t, snap.Customers, 3)

	sums := map[string]decimal.Decimal{}
	customers := map[string]bool{}
	for _, c := range snap.Customers {
		customers[c.ID] = true
	}
	for _, tx := range snap.Transactions {
		assert.True(t, customers[tx.CustomerID], "transaction %s references unknown customer", tx.ID)
		sums[tx.CustomerID] = sums[tx.CustomerID].Add(tx.Delta())
	}
	for _, c := range snap.Customers {
		assert.True(t, c.Balance.Equal(sums[c.ID]), "customer %s balance %s, want %s", c.ID, c.Balance, sums[c.ID])
	}
	for _, o := range snap.BreadOrders {
		assert.True(t, o.TotalAmount.Equal(o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))))
	}
}

func TestDefaultReturnsFreshCopies(t *testing.T) {
	a := Default()
	a.Customers[0].Name = "changed"
	*a.BreadOrders[0].CustomerName = "changed"

	b := Default()
	assert.Equal(t, "Ahmed Benali", b.Customers[0].Name)
	assert.Equal(t, "Ahmed Benali", *b.BreadOrders[0].CustomerName)
}
