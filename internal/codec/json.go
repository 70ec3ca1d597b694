package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
)

// WriteSnapshotJSON writes the full snapshot as indented JSON. Empty
// collections are written as [] rather than null.
func WriteSnapshotJSON(w io.Writer, snap models.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap.Clone())
}

// DecodeSnapshot reads a snapshot previously written by WriteSnapshotJSON and
// checks that it is internally consistent. Order totals are recomputed.
func DecodeSnapshot(r io.Reader) (models.Snapshot, error) {
	var snap models.Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		if err == io.EOF {
			return models.Snapshot{}, models.ErrEmptyFile
		}
		return models.Snapshot{}, models.Invalid("decode snapshot: %v", err)
	}
	snap = snap.Clone()
	for i := range snap.BreadOrders {
		snap.BreadOrders[i].Recalculate()
	}
	if err := ValidateSnapshot(snap); err != nil {
		return models.Snapshot{}, err
	}
	return snap, nil
}

// ValidateSnapshot checks id uniqueness, transaction ownership and the value
// rules of every entity. Orders may reference customers that no longer
// exist; their name snapshot is kept.
func ValidateSnapshot(snap models.Snapshot) error {
	customers := make(map[string]struct{}, len(snap.Customers))
	for _, c := range snap.Customers {
		if c.ID == "" {
			return models.Invalid("customer with empty id")
		}
		if _, dup := customers[c.ID]; dup {
			return models.Invalid("duplicate customer id %q", c.ID)
		}
		customers[c.ID] = struct{}{}
		if err := models.CheckMoney(fmt.Sprintf("customer %s balance", c.ID), c.Balance); err != nil {
			return err
		}
		if err := models.CheckMoney(fmt.Sprintf("customer %s openingBalance", c.ID), c.OpeningBalance); err != nil {
			return err
		}
	}

	txs := make(map[string]struct{}, len(snap.Transactions))
	for _, tx := range snap.Transactions {
		if tx.ID == "" {
			return models.Invalid("transaction with empty id")
		}
		if _, dup := txs[tx.ID]; dup {
			return models.Invalid("duplicate transaction id %q", tx.ID)
		}
		txs[tx.ID] = struct{}{}
		if _, ok := customers[tx.CustomerID]; !ok {
			return models.Invalid("transaction %s references unknown customer %q", tx.ID, tx.CustomerID)
		}
		if !tx.Type.Valid() {
			return models.Invalid("transaction %s has type %q", tx.ID, tx.Type)
		}
		if !tx.Amount.IsPositive() {
			return models.Invalid("transaction %s amount must be positive", tx.ID)
		}
		if err := models.CheckMoney(fmt.Sprintf("transaction %s amount", tx.ID), tx.Amount); err != nil {
			return err
		}
	}

	orders := make(map[string]struct{}, len(snap.BreadOrders))
	for _, o := range snap.BreadOrders {
		if o.ID == "" {
			return models.Invalid("order with empty id")
		}
		if _, dup := orders[o.ID]; dup {
			return models.Invalid("duplicate order id %q", o.ID)
		}
		orders[o.ID] = struct{}{}
		if o.Quantity <= 0 {
			return models.Invalid("order %s quantity must be positive", o.ID)
		}
		if !o.UnitPrice.IsPositive() {
			return models.Invalid("order %s unit price must be positive", o.ID)
		}
		if err := models.CheckMoney(fmt.Sprintf("order %s unitPrice", o.ID), o.UnitPrice); err != nil {
			return err
		}
		if err := models.CheckMoney(fmt.Sprintf("order %s totalAmount", o.ID), o.TotalAmount); err != nil {
			return err
		}
	}
	return nil
}
