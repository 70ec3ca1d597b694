package models

import (
	"github.com/shopspring/decimal"
)

// LedgerEntry is one line of a customer statement: a transaction together
// with the balance right after it was applied.
type LedgerEntry struct {
	Transaction
	RunningBalance decimal.Decimal `json:"runningBalance"`
}
