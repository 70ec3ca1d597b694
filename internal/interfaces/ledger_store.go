package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
)

// LedgerStore owns the customer, transaction and bread-order collections.
// Every mutating call is persisted before it returns; a failed persist is
// reported as a models.StorageError.
type LedgerStore interface {
	Snapshot(ctx context.Context) (models.Snapshot, error)
	// ReplaceAll swaps all three collections for the given snapshot.
	ReplaceAll(ctx context.Context, snap models.Snapshot) error
	// ReplaceCustomers swaps the customer collection and discards every transaction.
	ReplaceCustomers(ctx context.Context, customers []models.Customer) error

	ListCustomers(ctx context.Context) ([]models.Customer, error)
	GetCustomer(ctx context.Context, id string) (models.Customer, error)
	SaveCustomer(ctx context.Context, customer models.Customer) error
	// DeleteCustomer removes the customer together with its transactions.
	DeleteCustomer(ctx context.Context, id string) error
	SetBalance(ctx context.Context, customerID string, balance decimal.Decimal) error

	// AppendTransaction records tx and adjusts the owner's balance by
	// tx.Delta() as one step, returning the updated customer.
	AppendTransaction(ctx context.Context, tx models.Transaction) (models.Customer, error)
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
	TransactionsByCustomer(ctx context.Context, customerID string) ([]models.Transaction, error)

	ListOrders(ctx context.Context) ([]models.BreadOrder, error)
	GetOrder(ctx context.Context, id string) (models.BreadOrder, error)
	SaveOrder(ctx context.Context, order models.BreadOrder) error
	DeleteOrder(ctx context.Context, id string) error

	Close() error
}
