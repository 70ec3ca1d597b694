package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/seed"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage/storetest"
)

func TestSnapshotStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) interfaces.LedgerStore {
		return Open(filepath.Join(t.TempDir(), "ledger.json"), zap.NewNop())
	})
}

func TestMissingFileFallsBackToSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	s := Open(path, zap.NewNop())

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	storetest.AssertSameSnapshot(t, seed.Default(), snap)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "loading must not write the file")
}

func TestCorruptFileFallsBackToSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := Open(path, zap.NewNop())
	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	storetest.AssertSameSnapshot(t, seed.Default(), snap)
}

func TestMutationsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.json")
	ctx := context.Background()

	s := Open(path, zap.NewNop())
	_, err := s.AppendTransaction(ctx, models.Transaction{
		ID: "t-1", CustomerID: "cust-003", Type: models.TransactionDebt,
		Amount: decimal.RequireFromString("0.10"), Description: "pain",
	})
	require.NoError(t, err)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, loaded.Transactions, len(seed.Default().Transactions)+1)

	reopened := Open(path, zap.NewNop())
	c, err := reopened.GetCustomer(ctx, "cust-003")
	require.NoError(t, err)
	assert.Equal(t, "-199.90", c.Balance.StringFixed(2))
}

func TestSnapshotFileHasAllKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	s := Open(path, zap.NewNop())
	require.NoError(t, s.ReplaceAll(context.Background(), models.Snapshot{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"customers":[],"transactions":[],"breadOrders":[]}`, string(data))
}

func TestUnwritableDirectorySurfacesStorageError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	s := Open(filepath.Join(blocker, "ledger.json"), zap.NewNop())
	err := s.SetBalance(context.Background(), "cust-001", decimal.Zero)
	assert.ErrorIs(t, err, models.ErrStorage)
}

func TestInconsistentFileFallsBackToSeed(t *testing.T) {
	docs := map[string]string{
		"sub-cent balance":   `{"customers":[{"id":"c1","name":"Ali","phone":"0123456789","createdAt":"2024-01-01T00:00:00Z","balance":"999.999","openingBalance":"0"}],"transactions":[],"breadOrders":[]}`,
		"orphan transaction": `{"customers":[],"transactions":[{"id":"t1","customerId":"ghost","type":"debt","amount":"5","date":"2024-01-01T00:00:00Z"}],"breadOrders":[]}`,
		"negative amount":    `{"customers":[{"id":"c1","name":"Ali","phone":"0123456789","createdAt":"2024-01-01T00:00:00Z","balance":"0","openingBalance":"0"}],"transactions":[{"id":"t1","customerId":"c1","type":"debt","amount":"-5","date":"2024-01-01T00:00:00Z"}],"breadOrders":[]}`,
		"negative quantity":  `{"customers":[],"transactions":[],"breadOrders":[{"id":"o1","name":"Pain","quantity":-3,"unitPrice":"10","totalAmount":"777","createdAt":"2024-01-01T00:00:00Z"}]}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ledger.json")
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

			_, err := Load(path)
			assert.ErrorIs(t, err, models.ErrValidation)

			s := Open(path, zap.NewNop())
			snap, err := s.Snapshot(context.Background())
			require.NoError(t, err)
			storetest.AssertSameSnapshot(t, seed.Default(), snap)
		})
	}
}

func TestLoadRecomputesOrderTotals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	doc := `{"customers":[],"transactions":[],"breadOrders":[{"id":"o1","name":"Pain","quantity":3,"unitPrice":"10","totalAmount":"777","createdAt":"2024-01-01T00:00:00Z"}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	s := Open(path, zap.NewNop())
	o, err := s.GetOrder(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "30.00", o.TotalAmount.StringFixed(2))
}
