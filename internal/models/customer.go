package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is a person buying on credit.
// Balance is positive when the customer owes money, negative when they hold credit.
type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	CreatedAt      time.Time       `json:"createdAt"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"openingBalance,omitzero"` // carried in by CSV import, zero otherwise
}

// CustomerSummary is a customer with its transaction totals.
type CustomerSummary struct {
	Customer
	TotalDebts       decimal.Decimal `json:"totalDebts"`
	TotalPayments    decimal.Decimal `json:"totalPayments"`
	TransactionCount int             `json:"transactionCount"`
}
