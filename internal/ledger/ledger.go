package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
)

// Ledger keeps customer balances consistent with their transactions.
// It holds a reference to the storage layer and one mutex per customer.
type Ledger struct {
	store interfaces.LedgerStore
	muMap map[string]*sync.Mutex // stores the *sync.Mutex for each customer
	mapMu sync.Mutex             // protects the muMap itself
	now   func() time.Time
	newID func() string
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used to date transactions.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDs overrides transaction id generation.
func WithIDs(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// NewLedger creates a Ledger over the given store.
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		muMap: make(map[string]*sync.Mutex),
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) getCustomerLock(customerID string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[customerID]; !exists {
		l.muMap[customerID] = &sync.Mutex{}
	}
	return l.muMap[customerID]
}

// Forget drops the locks of customers that no longer exist. Callers must not
// be applying transactions for those ids at the same time.
func (l *Ledger) Forget(customerIDs ...string) {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()
	for _, id := range customerIDs {
		delete(l.muMap, id)
	}
}

// ForgetAll drops every customer lock, after the customer set was replaced.
func (l *Ledger) ForgetAll() {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()
	l.muMap = make(map[string]*sync.Mutex)
}

// Entry describes a transaction to apply.
type Entry struct {
	CustomerID  string
	Type        models.TransactionType
	Amount      decimal.Decimal
	Description string
	OrderID     string
}

// ApplyTransaction records a debt or payment and moves the owner's balance by
// +amount or -amount. The record and the balance change are written by a
// single store call, so neither is ever visible without the other.
func (l *Ledger) ApplyTransaction(ctx context.Context, e Entry) (models.Transaction, models.Customer, error) {
	if !e.Type.Valid() {
		return models.Transaction{}, models.Customer{}, models.Invalid("transaction type %q must be debt or payment", e.Type)
	}
	if e.Amount.Cmp(decimal.Zero) <= 0 {
		return models.Transaction{}, models.Customer{}, models.Invalid("amount must be positive")
	}
	if err := models.CheckMoney("amount", e.Amount); err != nil {
		return models.Transaction{}, models.Customer{}, err
	}

	mu := l.getCustomerLock(e.CustomerID)
	mu.Lock()
	defer mu.Unlock()

	current, err := l.store.GetCustomer(ctx, e.CustomerID)
	if err != nil {
		return models.Transaction{}, models.Customer{}, err
	}

	tx := models.Transaction{
		ID:          l.newID(),
		CustomerID:  e.CustomerID,
		Type:        e.Type,
		Amount:      e.Amount,
		Date:        l.now(),
		Description: e.Description,
		OrderID:     e.OrderID,
	}
	if err := models.CheckMoney("resulting balance", current.Balance.Add(tx.Delta())); err != nil {
		return models.Transaction{}, models.Customer{}, err
	}
	customer, err := l.store.AppendTransaction(ctx, tx)
	if err != nil {
		return models.Transaction{}, models.Customer{}, err
	}
	return tx, customer, nil
}

// Recompute folds a customer's transactions into a balance from scratch,
// starting at the customer's opening balance. It does not write anything.
func (l *Ledger) Recompute(ctx context.Context, customerID string) (decimal.Decimal, error) {
	customer, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	txs, err := l.store.TransactionsByCustomer(ctx, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	balance, _ := Fold(customer.OpeningBalance, txs)
	return balance, nil
}

// Statement returns the customer's transactions in chronological order with
// the running balance after each one.
func (l *Ledger) Statement(ctx context.Context, customerID string) ([]models.LedgerEntry, error) {
	customer, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	txs, err := l.store.TransactionsByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	_, entries := Fold(customer.OpeningBalance, txs)
	return entries, nil
}

// Repair stores the recomputed balance if it differs from the stored one and
// reports whether it did.
func (l *Ledger) Repair(ctx context.Context, customerID string) (bool, decimal.Decimal, error) {
	mu := l.getCustomerLock(customerID)
	mu.Lock()
	defer mu.Unlock()

	customer, err := l.store.GetCustomer(ctx, customerID)
	if err != nil {
		return false, decimal.Zero, err
	}
	computed, err := l.Recompute(ctx, customerID)
	if err != nil {
		return false, decimal.Zero, err
	}
	if computed.Equal(customer.Balance) {
		return false, computed, nil
	}
	if err := l.store.SetBalance(ctx, customerID, computed); err != nil {
		return false, decimal.Zero, err
	}
	return true, computed, nil
}

// RepairAll repairs every customer and returns the ids whose balance changed.
func (l *Ledger) RepairAll(ctx context.Context) ([]string, error) {
	customers, err := l.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	var changed []string
	for _, c := range customers {
		ok, _, err := l.Repair(ctx, c.ID)
		if err != nil {
			return changed, err
		}
		if ok {
			changed = append(changed, c.ID)
		}
	}
	return changed, nil
}

// Mismatch is a customer whose stored balance disagrees with its transactions.
type Mismatch struct {
	CustomerID string          `json:"customerId"`
	Stored     decimal.Decimal `json:"stored"`
	Computed   decimal.Decimal `json:"computed"`
}

// Verify compares every stored balance with its recomputed value.
func (l *Ledger) Verify(ctx context.Context) ([]Mismatch, error) {
	snap, err := l.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	byCustomer := groupByCustomer(snap.Transactions)

	var out []Mismatch
	for _, c := range snap.Customers {
		computed, _ := Fold(c.OpeningBalance, byCustomer[c.ID])
		if !computed.Equal(c.Balance) {
			out = append(out, Mismatch{CustomerID: c.ID, Stored: c.Balance, Computed: computed})
		}
	}
	return out, nil
}

// Rebalance sets every customer balance in snap to the value folded from its
// transactions and returns the ids it changed. Nothing is written to a store.
func Rebalance(snap *models.Snapshot) ([]string, error) {
	byCustomer := groupByCustomer(snap.Transactions)

	var changed []string
	for i := range snap.Customers {
		c := &snap.Customers[i]
		computed, _ := Fold(c.OpeningBalance, byCustomer[c.ID])
		if err := models.CheckMoney(fmt.Sprintf("customer %s balance", c.ID), computed); err != nil {
			return nil, err
		}
		if !computed.Equal(c.Balance) {
			c.Balance = computed
			changed = append(changed, c.ID)
		}
	}
	return changed, nil
}

func groupByCustomer(txs []models.Transaction) map[string][]models.Transaction {
	out := make(map[string][]models.Transaction)
	for _, tx := range txs {
		out[tx.CustomerID] = append(out[tx.CustomerID], tx)
	}
	return out
}

// Fold applies txs in chronological order (date, then id) on top of opening
// and returns the final balance with one statement line per transaction.
func Fold(opening decimal.Decimal, txs []models.Transaction) (decimal.Decimal, []models.LedgerEntry) {
	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	balance := opening
	entries := make([]models.LedgerEntry, 0, len(sorted))
	for _, tx := range sorted {
		balance = balance.Add(tx.Delta())
		entries = append(entries, models.LedgerEntry{Transaction: tx, RunningBalance: balance})
	}
	return balance, entries
}
