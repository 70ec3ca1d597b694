package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDebt    TransactionType = "debt"
	TransactionPayment TransactionType = "payment"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionDebt || t == TransactionPayment
}

// Transaction is a single debt or payment recorded against a customer.
// Amount is always positive; Type decides the sign applied to the balance.
type Transaction struct {
	ID          string          `json:"id"`
	CustomerID  string          `json:"customerId"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	OrderID     string          `json:"orderId,omitempty"`
}

// Delta is the signed change this transaction applies to the owner's balance.
func (t Transaction) Delta() decimal.Decimal {
	if t.Type == TransactionPayment {
		return t.Amount.Neg()
	}
	return t.Amount
}
