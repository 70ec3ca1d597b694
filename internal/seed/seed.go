// Package seed holds the default dataset a fresh or reset ledger starts from.
package seed

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
)

var base = time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)

func at(days, hours int) time.Time {
	return base.AddDate(0, 0, days).Add(time.Duration(hours) * time.Hour)
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *string { return &s }

// Default returns a fresh copy of the seed dataset. Balances agree with the
// seed transactions.
func Default() models.Snapshot {
	customers := []models.Customer{
		{ID: "cust-001", Name: "Ahmed Benali", Phone: "0555123456", CreatedAt: at(0, 0)},
		{ID: "cust-002", Name: "Fatima Zohra", Phone: "0661987654", CreatedAt: at(2, 3)},
		{ID: "cust-003", Name: "Karim Haddad", Phone: "0770456123", CreatedAt: at(5, 1)},
	}

	transactions := []models.Transaction{
		{ID: "txn-001", CustomerID: "cust-001", Type: models.TransactionDebt, Amount: money("1500.00"), Date: at(1, 0), Description: "Achat de pain et viennoiseries", OrderID: "order-001"},
		{ID: "txn-002", CustomerID: "cust-001", Type: models.TransactionPayment, Amount: money("500.00"), Date: at(3, 2), Description: "Paiement partiel"},
		{ID: "txn-003", CustomerID: "cust-002", Type: models.TransactionDebt, Amount: money("750.50"), Date: at(4, 0), Description: "Commande hebdomadaire"},
		{ID: "txn-004", CustomerID: "cust-003", Type: models.TransactionPayment, Amount: money("200.00"), Date: at(6, 4), Description: "Avance sur commandes"},
	}

	orders := []models.BreadOrder{
		{ID: "order-001", Name: "Baguettes tradition", Quantity: 100, UnitPrice: money("15.00"), IsDelivered: true, CreatedAt: at(1, 0), CustomerID: ptr("cust-001"), CustomerName: ptr("Ahmed Benali")},
		{ID: "order-002", Name: "Pain complet", Quantity: 40, UnitPrice: money("25.00"), IsPinned: true, CreatedAt: at(6, 0)},
	}
	for i := range orders {
		orders[i].Recalculate()
	}

	balances := make(map[string]decimal.Decimal)
	for _, tx := range transactions {
		balances[tx.CustomerID] = balances[tx.CustomerID].Add(tx.Delta())
	}
	for i := range customers {
		customers[i].Balance = balances[customers[i].ID]
	}

	return models.Snapshot{
		Customers:    customers,
		Transactions: transactions,
		BreadOrders:  orders,
	}
}
