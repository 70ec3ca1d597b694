package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/metrics"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/notify"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/seed"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage/storetest"
)

type fixture struct {
	svc     *Service
	store   *memory.MemoryLedgerStore
	sub     *notify.Subscription
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCommit(t, nil)
}

func newFixtureWithCommit(t *testing.T, commit memory.CommitFunc) *fixture {
	t.Helper()
	store := memory.NewMemoryLedgerStore(seed.Default(), commit)
	hub := notify.NewHub(16)
	sub := hub.Subscribe()
	t.Cleanup(sub.Close)
	m := metrics.New()

	var mu sync.Mutex
	clock := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	ids := 0
	svc := New(store, hub, zap.NewNop(),
		WithMetrics(m),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Minute)
			return clock
		}),
		WithIDs(func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return fmt.Sprintf("id-%03d", ids)
		}),
	)
	return &fixture{svc: svc, store: store, sub: sub, metrics: m}
}

// signals drains and counts pending data-changed signals.
func (f *fixture) signals() int {
	n := 0
	for {
		select {
		case <-f.sub.C:
			n++
		default:
			return n
		}
	}
}

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestExampleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.AddCustomer(ctx, CustomerInput{Name: "Client C", Phone: "0550123456"})
	require.NoError(t, err)
	assert.True(t, c.Balance.IsZero())

	_, c, err = f.svc.AddTransaction(ctx, TransactionInput{CustomerID: c.ID, Type: models.TransactionDebt, Amount: money("500.00"), Description: "pain du mois"})
	require.NoError(t, err)
	assert.Equal(t, "500.00", c.Balance.StringFixed(2))

	_, c, err = f.svc.AddTransaction(ctx, TransactionInput{CustomerID: c.ID, Type: models.TransactionPayment, Amount: money("200.00"), Description: "espèces"})
	require.NoError(t, err)
	assert.Equal(t, "300.00", c.Balance.StringFixed(2))
	assert.Zero(t, f.signals(), "single mutations do not broadcast")

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportCustomersCSV(ctx, &buf))
	imported, err := f.svc.ImportCustomersCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Len(t, imported, len(seed.Default().Customers)+1)
	assert.Equal(t, 1, f.signals())

	got, err := f.svc.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", got.Balance.StringFixed(2))

	txs, err := f.svc.CustomerTransactions(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, txs)

	all, err := f.store.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	mismatches, err := f.svc.VerifyBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, mismatches, "opening balances keep imported customers consistent")
}

func TestCSVRoundTripPreservesCustomers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before, err := f.svc.ListCustomers(ctx, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportCustomersCSV(ctx, &buf))
	_, err = f.svc.ImportCustomersCSV(ctx, &buf)
	require.NoError(t, err)

	after, err := f.svc.ListCustomers(ctx, "")
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Name, after[i].Name)
		assert.Equal(t, before[i].Phone, after[i].Phone)
		assert.True(t, before[i].CreatedAt.Equal(after[i].CreatedAt))
		assert.True(t, before[i].Balance.Equal(after[i].Balance))
	}
}

func TestImportFailuresLeaveStoreUntouched(t *testing.T) {
	tests := []struct {
		name   string
		csv    string
		target error
	}{
		{"missing balance", "id,name,phone,createdAt\nc1,A,0123456789,2024-01-01T00:00:00Z\n", models.ErrSchema},
		{"header only", "id,name,phone,createdAt,balance\n", models.ErrEmptyFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.svc.ImportCustomersCSV(ctx, strings.NewReader(tt.csv))
			require.ErrorIs(t, err, tt.target)
			if tt.target == models.ErrSchema {
				var se *models.SchemaError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, []string{"balance"}, se.Missing)
			}

			snap, err := f.store.Snapshot(ctx)
			require.NoError(t, err)
			storetest.AssertSameSnapshot(t, seed.Default(), snap)
			assert.Zero(t, f.signals())
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Imports.WithLabelValues("csv", "rejected")))
		})
	}
}

func TestResetAllRestoresSeedAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddCustomer(ctx, CustomerInput{Name: "Temp", Phone: "0123456789"})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteOrder(ctx, "order-001"))
	_, _, err = f.svc.AddTransaction(ctx, TransactionInput{CustomerID: "cust-002", Type: models.TransactionDebt, Amount: money("10"), Description: "extra"})
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetAll(ctx))

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	storetest.AssertSameSnapshot(t, seed.Default(), snap)
	assert.Equal(t, 1, f.signals())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Resets))
}

func TestOrderTotalFollowsFactors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	o, err := f.svc.AddOrder(ctx, OrderInput{Name: "Croissants", Quantity: 12, UnitPrice: money("30.00"), CustomerID: "cust-003"})
	require.NoError(t, err)
	assert.Equal(t, "360.00", o.TotalAmount.StringFixed(2))
	require.NotNil(t, o.CustomerName)
	assert.Equal(t, "Karim Haddad", *o.CustomerName)

	qty := 5
	o, err = f.svc.UpdateOrder(ctx, o.ID, OrderPatch{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, "150.00", o.TotalAmount.StringFixed(2))

	price := money("2.25")
	o, err = f.svc.UpdateOrder(ctx, o.ID, OrderPatch{UnitPrice: &price})
	require.NoError(t, err)
	assert.Equal(t, "11.25", o.TotalAmount.StringFixed(2))

	unlink, paid := "", true
	o, err = f.svc.UpdateOrder(ctx, o.ID, OrderPatch{CustomerID: &unlink, IsPaid: &paid})
	require.NoError(t, err)
	assert.Nil(t, o.CustomerID)
	assert.True(t, o.IsPaid)

	stored, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(stored.UnitPrice.Mul(decimal.NewFromInt(int64(stored.Quantity)))))

	_, err = f.svc.UpdateOrder(ctx, "nope", OrderPatch{Quantity: &qty})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	zero := 0

	tests := map[string]error{
		"short name": func() error {
			_, err := f.svc.AddCustomer(ctx, CustomerInput{Name: "A", Phone: "0123456789"})
			return err
		}(),
		"short phone": func() error {
			_, err := f.svc.AddCustomer(ctx, CustomerInput{Name: "Amine", Phone: "012345"})
			return err
		}(),
		"order quantity": func() error {
			_, err := f.svc.AddOrder(ctx, OrderInput{Name: "Pain", Quantity: 0, UnitPrice: money("1")})
			return err
		}(),
		"order price": func() error {
			_, err := f.svc.AddOrder(ctx, OrderInput{Name: "Pain", Quantity: 1, UnitPrice: money("0")})
			return err
		}(),
		"order total range": func() error {
			_, err := f.svc.AddOrder(ctx, OrderInput{Name: "Pain", Quantity: 2000000000, UnitPrice: money("92233720368547.75")})
			return err
		}(),
		"transaction amount range": func() error {
			_, _, err := f.svc.AddTransaction(ctx, TransactionInput{CustomerID: "cust-002", Type: models.TransactionDebt, Amount: money("100000000000000000.00"), Description: "pain"})
			return err
		}(),
		"order patch quantity": func() error {
			_, err := f.svc.UpdateOrder(ctx, "order-002", OrderPatch{Quantity: &zero})
			return err
		}(),
		"short description": func() error {
			_, _, err := f.svc.AddTransaction(ctx, TransactionInput{CustomerID: "cust-001", Type: models.TransactionDebt, Amount: money("1"), Description: "ab"})
			return err
		}(),
		"non-positive amount": func() error {
			_, _, err := f.svc.AddTransaction(ctx, TransactionInput{CustomerID: "cust-001", Type: models.TransactionDebt, Amount: money("0"), Description: "pain"})
			return err
		}(),
	}
	for name, err := range tests {
		assert.ErrorIs(t, err, models.ErrValidation, name)
	}

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	storetest.AssertSameSnapshot(t, seed.Default(), snap)
}

func TestReferencesMustExist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddOrder(ctx, OrderInput{Name: "Pain", Quantity: 1, UnitPrice: money("1"), CustomerID: "ghost"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, _, err = f.svc.AddTransaction(ctx, TransactionInput{CustomerID: "ghost", Type: models.TransactionDebt, Amount: money("1"), Description: "pain"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, _, err = f.svc.AddTransaction(ctx, TransactionInput{CustomerID: "cust-001", Type: models.TransactionDebt, Amount: money("1"), Description: "pain", OrderID: "ghost"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.svc.CustomerTransactions(ctx, "ghost")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestListOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddOrder(ctx, OrderInput{Name: "Brioche", Quantity: 2, UnitPrice: money("40")})
	require.NoError(t, err)

	orders, err := f.svc.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "order-002", orders[0].ID, "pinned first")
	assert.Equal(t, "id-001", orders[1].ID, "then newest")
	assert.Equal(t, "order-001", orders[2].ID)

	customers, err := f.svc.ListCustomers(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"cust-003", "cust-002", "cust-001"}, []string{customers[0].ID, customers[1].ID, customers[2].ID})

	found, err := f.svc.ListCustomers(ctx, "  FATIMA ")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "cust-002", found[0].ID)
}

func TestCustomerTransactionsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, _, err := f.svc.AddTransaction(ctx, TransactionInput{CustomerID: "cust-001", Type: models.TransactionDebt, Amount: money("5"), Description: "croissant"})
	require.NoError(t, err)

	txs, err := f.svc.CustomerTransactions(ctx, "cust-001")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, tx.ID, txs[0].ID)
	assert.Equal(t, "txn-002", txs[1].ID)
	assert.Equal(t, "txn-001", txs[2].ID)
}

func TestCustomerSummaryAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sum, err := f.svc.CustomerSummary(ctx, "cust-001")
	require.NoError(t, err)
	assert.Equal(t, "1500.00", sum.TotalDebts.StringFixed(2))
	assert.Equal(t, "500.00", sum.TotalPayments.StringFixed(2))
	assert.Equal(t, "1000.00", sum.Balance.StringFixed(2))
	assert.Equal(t, 2, sum.TransactionCount)

	st, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalCustomers)
	assert.Equal(t, "1550.50", st.TotalBalance.StringFixed(2))
	assert.Equal(t, 2, st.CustomersInDebt)
	assert.Equal(t, 1, st.CustomersWithCredit)
	assert.Equal(t, 2, st.TotalOrders)
	assert.Equal(t, "2500.00", st.UnpaidOrdersTotal.StringFixed(2))
}

func TestUpdateAndDeleteCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "Ahmed B."
	c, err := f.svc.UpdateCustomer(ctx, "cust-001", CustomerPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ahmed B.", c.Name)
	assert.Equal(t, "1000.00", c.Balance.StringFixed(2))

	o, err := f.store.GetOrder(ctx, "order-001")
	require.NoError(t, err)
	assert.Equal(t, "Ahmed Benali", *o.CustomerName, "order keeps the name it was linked with")

	short := "x"
	_, err = f.svc.UpdateCustomer(ctx, "cust-001", CustomerPatch{Phone: &short})
	assert.ErrorIs(t, err, models.ErrValidation)

	require.NoError(t, f.svc.DeleteCustomer(ctx, "cust-001"))
	_, err = f.svc.GetCustomer(ctx, "cust-001")
	assert.ErrorIs(t, err, models.ErrNotFound)
	txs, err := f.store.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
	assert.ErrorIs(t, f.svc.DeleteCustomer(ctx, "cust-001"), models.ErrNotFound)
}

func TestBalanceCheckAndRecompute(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetBalance(ctx, "cust-002", money("1")))

	check, err := f.svc.CheckBalance(ctx, "cust-002")
	require.NoError(t, err)
	assert.False(t, check.Consistent)
	assert.Equal(t, "750.50", check.Computed.StringFixed(2))

	c, err := f.svc.RecomputeBalance(ctx, "cust-002")
	require.NoError(t, err)
	assert.Equal(t, "750.50", c.Balance.StringFixed(2))

	check, err = f.svc.CheckBalance(ctx, "cust-002")
	require.NoError(t, err)
	assert.True(t, check.Consistent)
}

func TestSnapshotRestoreRepairsBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportSnapshotJSON(ctx, &buf))
	doc := strings.Replace(buf.String(), `"balance": "1000"`, `"balance": "1"`, 1)
	require.NotEqual(t, buf.String(), doc, "fixture must tamper with a balance")

	require.NoError(t, f.svc.ResetAll(ctx))
	f.signals()

	report, err := f.svc.ImportSnapshotJSON(ctx, strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Customers)
	assert.Equal(t, 4, report.Transactions)
	assert.Equal(t, 2, report.BreadOrders)
	assert.Equal(t, []string{"cust-001"}, report.Repaired)
	assert.Equal(t, 1, f.signals())

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	storetest.AssertSameSnapshot(t, seed.Default(), snap)

	_, err = f.svc.ImportSnapshotJSON(ctx, strings.NewReader(`{"transactions":[{"id":"t","customerId":"ghost","type":"debt","amount":"1"}]}`))
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, f.signals())
}

func TestSnapshotRestoreRejectsUnstorableRepair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := `{"customers":[{"id":"c1","name":"Ali","phone":"0123456789","createdAt":"2024-01-01T00:00:00Z","balance":"0","openingBalance":"92233720368547758.07"}],
		"transactions":[{"id":"t1","customerId":"c1","type":"debt","amount":"1","date":"2024-01-01T00:00:00Z","description":"pain"}],"breadOrders":[]}`

	_, err := f.svc.ImportSnapshotJSON(ctx, strings.NewReader(doc))
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Zero(t, f.signals())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Imports.WithLabelValues("json", "rejected")))

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	storetest.AssertSameSnapshot(t, seed.Default(), snap)
}

func TestStorageFailuresSurfaceAndAreCounted(t *testing.T) {
	fail := false
	f := newFixtureWithCommit(t, func(models.Snapshot) error {
		if fail {
			return errors.New("disk full")
		}
		return nil
	})
	ctx := context.Background()
	fail = true

	_, err := f.svc.AddCustomer(ctx, CustomerInput{Name: "Nadia", Phone: "0123456789"})
	require.ErrorIs(t, err, models.ErrStorage)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StoreErrors.WithLabelValues("save customer")))

	err = f.svc.ResetAll(ctx)
	require.ErrorIs(t, err, models.ErrStorage)
	assert.Zero(t, f.signals())
}

func TestConcurrentTransactionsThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := models.TransactionDebt
			if i%2 == 1 {
				kind = models.TransactionPayment
			}
			_, _, err := f.svc.AddTransaction(ctx, TransactionInput{CustomerID: "cust-002", Type: kind, Amount: money("2.50"), Description: "concurrent"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	c, err := f.svc.GetCustomer(ctx, "cust-002")
	require.NoError(t, err)
	assert.Equal(t, "750.50", c.Balance.StringFixed(2))
	assert.Equal(t, 20.0, testutil.ToFloat64(f.metrics.Transactions.WithLabelValues("debt")))
}

func TestStatementRunsFromOpeningBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ImportCustomersCSV(ctx, strings.NewReader("id,name,phone,createdAt,balance\nc1,Amine,0123456789,2024-01-01T00:00:00Z,100\n"))
	require.NoError(t, err)
	_, _, err = f.svc.AddTransaction(ctx, TransactionInput{CustomerID: "c1", Type: models.TransactionDebt, Amount: money("20"), Description: "pain"})
	require.NoError(t, err)

	entries, err := f.svc.Statement(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "120.00", entries[0].RunningBalance.StringFixed(2))
}
