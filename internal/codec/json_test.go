package codec

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/seed"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/storage/storetest"
)

func TestSnapshotJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshotJSON(&buf, seed.Default()))
	assert.Contains(t, buf.String(), "\n  \"customers\": [")

	got, err := DecodeSnapshot(&buf)
	require.NoError(t, err)
	storetest.AssertSameSnapshot(t, seed.Default(), got)
}

func TestWriteEmptySnapshotHasAllKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshotJSON(&buf, models.Snapshot{}))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	for _, key := range []string{"customers", "transactions", "breadOrders"} {
		assert.JSONEq(t, "[]", string(raw[key]), key)
	}
}

func TestDecodeSnapshotRecomputesOrderTotals(t *testing.T) {
	in := `{"customers":[],"transactions":[],"breadOrders":[
		{"id":"o1","name":"Baguette","quantity":3,"unitPrice":"2.50","totalAmount":"999","createdAt":"2024-01-01T00:00:00Z"}]}`
	snap, err := DecodeSnapshot(strings.NewReader(in))
	require.NoError(t, err)
	assert.True(t, snap.BreadOrders[0].TotalAmount.Equal(decimal.RequireFromString("7.50")))
}

func TestDecodeSnapshotRejectsInconsistentData(t *testing.T) {
	tests := map[string]string{
		"dangling transaction": `{"customers":[],"transactions":[{"id":"t1","customerId":"ghost","type":"debt","amount":"1"}]}`,
		"bad type":             `{"customers":[{"id":"c1"}],"transactions":[{"id":"t1","customerId":"c1","type":"gift","amount":"1"}]}`,
		"negative amount":      `{"customers":[{"id":"c1"}],"transactions":[{"id":"t1","customerId":"c1","type":"debt","amount":"-1"}]}`,
		"duplicate customer":   `{"customers":[{"id":"c1"},{"id":"c1"}]}`,
		"zero quantity":        `{"breadOrders":[{"id":"o1","quantity":0,"unitPrice":"1"}]}`,
		"total beyond range":   `{"breadOrders":[{"id":"o1","quantity":2000000000,"unitPrice":"92233720368547.75"}]}`,
		"balance beyond range": `{"customers":[{"id":"c1","balance":"100000000000000000000"}]}`,
		"not json":             `{"customers":`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSnapshot(strings.NewReader(in))
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}

	_, err := DecodeSnapshot(strings.NewReader(""))
	assert.ErrorIs(t, err, models.ErrEmptyFile)
}
