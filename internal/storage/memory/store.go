package memory

import (
	"context" // standard Go package for request-scoped context (timeouts, cancellation)
	"sync"    // standard Go package for concurrency primitives like Mutex

	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
)

// CommitFunc is called with the full state after every mutation, while the
// store is still locked. A non-nil error is reported to the caller as a
// storage failure; the in-memory mutation is kept.
type CommitFunc func(snap models.Snapshot) error

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// It keeps the three collections in slices, in insertion order, and is safe
// for concurrent use.
type MemoryLedgerStore struct {
	mu           sync.Mutex
	customers    []models.Customer
	transactions []models.Transaction
	orders       []models.BreadOrder
	commit       CommitFunc
}

// NewMemoryLedgerStore creates a store holding a copy of snap.
// commit may be nil.
func NewMemoryLedgerStore(snap models.Snapshot, commit CommitFunc) *MemoryLedgerStore {
	c := snap.Clone()
	return &MemoryLedgerStore{
		customers:    c.Customers,
		transactions: c.Transactions,
		orders:       c.BreadOrders,
		commit:       commit,
	}
}

// snapshotLocked returns the current state. Callers must hold m.mu.
func (m *MemoryLedgerStore) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		Customers:    m.customers,
		Transactions: m.transactions,
		BreadOrders:  m.orders,
	}
}

func (m *MemoryLedgerStore) commitLocked(op string) error {
	if m.commit == nil {
		return nil
	}
	return models.Storage(op, m.commit(m.snapshotLocked()))
}

func (m *MemoryLedgerStore) customerIndex(id string) int {
	for i, c := range m.customers {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryLedgerStore) orderIndex(id string) int {
	for i, o := range m.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (m *MemoryLedgerStore) Snapshot(ctx context.Context) (models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked().Clone(), nil
}

func (m *MemoryLedgerStore) ReplaceAll(ctx context.Context, snap models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := snap.Clone()
	m.customers, m.transactions, m.orders = c.Customers, c.Transactions, c.BreadOrders
	return m.commitLocked("replace all")
}

func (m *MemoryLedgerStore) ReplaceCustomers(ctx context.Context, customers []models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.customers = append(make([]models.Customer, 0, len(customers)), customers...)
	m.transactions = make([]models.Transaction, 0)
	return m.commitLocked("replace customers")
}

func (m *MemoryLedgerStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// return a copy so external code can't modify internal state
	copied := make([]models.Customer, len(m.customers))
	copy(copied, m.customers)
	return copied, nil
}

func (m *MemoryLedgerStore) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.customerIndex(id)
	if i < 0 {
		return models.Customer{}, models.NotFound("customer", id)
	}
	return m.customers[i], nil
}

func (m *MemoryLedgerStore) SaveCustomer(ctx context.Context, customer models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.customerIndex(customer.ID); i >= 0 {
		m.customers[i] = customer
	} else {
		m.customers = append(m.customers, customer)
	}
	return m.commitLocked("save customer")
}

func (m *MemoryLedgerStore) DeleteCustomer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.customerIndex(id)
	if i < 0 {
		return models.NotFound("customer", id)
	}
	m.customers = append(m.customers[:i:i], m.customers[i+1:]...)

	kept := make([]models.Transaction, 0, len(m.transactions))
	for _, tx := range m.transactions {
		if tx.CustomerID != id {
			kept = append(kept, tx)
		}
	}
	m.transactions = kept
	return m.commitLocked("delete customer")
}

func (m *MemoryLedgerStore) SetBalance(ctx context.Context, customerID string, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.customerIndex(customerID)
	if i < 0 {
		return models.NotFound("customer", customerID)
	}
	m.customers[i].Balance = balance
	return m.commitLocked("set balance")
}

func (m *MemoryLedgerStore) AppendTransaction(ctx context.Context, tx models.Transaction) (models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.customerIndex(tx.CustomerID)
	if i < 0 {
		return models.Customer{}, models.NotFound("customer", tx.CustomerID)
	}
	m.transactions = append(m.transactions, tx)
	m.customers[i].Balance = m.customers[i].Balance.Add(tx.Delta())
	return m.customers[i], m.commitLocked("append transaction")
}

func (m *MemoryLedgerStore) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.Transaction, len(m.transactions))
	copy(copied, m.transactions)
	return copied, nil
}

func (m *MemoryLedgerStore) TransactionsByCustomer(ctx context.Context, customerID string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Transaction
	for _, tx := range m.transactions {
		if tx.CustomerID == customerID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *MemoryLedgerStore) ListOrders(ctx context.Context) ([]models.BreadOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]models.BreadOrder, len(m.orders))
	for i, o := range m.orders {
		copied[i] = o.Clone()
	}
	return copied, nil
}

func (m *MemoryLedgerStore) GetOrder(ctx context.Context, id string) (models.BreadOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.orderIndex(id)
	if i < 0 {
		return models.BreadOrder{}, models.NotFound("order", id)
	}
	return m.orders[i].Clone(), nil
}

func (m *MemoryLedgerStore) SaveOrder(ctx context.Context, order models.BreadOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order = order.Clone()
	if i := m.orderIndex(order.ID); i >= 0 {
		m.orders[i] = order
	} else {
		m.orders = append(m.orders, order)
	}
	return m.commitLocked("save order")
}

func (m *MemoryLedgerStore) DeleteOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.orderIndex(id)
	if i < 0 {
		return models.NotFound("order", id)
	}
	m.orders = append(m.orders[:i:i], m.orders[i+1:]...)
	return m.commitLocked("delete order")
}

func (m *MemoryLedgerStore) Close() error { return nil }

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
