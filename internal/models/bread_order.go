package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BreadOrder is a bread order line item, optionally linked to a customer.
// CustomerName is a snapshot taken when the link is set and is not kept
// in sync with later renames.
type BreadOrder struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	IsPaid       bool            `json:"isPaid"`
	IsDelivered  bool            `json:"isDelivered"`
	CreatedAt    time.Time       `json:"createdAt"`
	IsPinned     bool            `json:"isPinned"`
	CustomerID   *string         `json:"customerId"`
	CustomerName *string         `json:"customerName"`
}

// Recalculate sets TotalAmount from Quantity and UnitPrice.
func (o *BreadOrder) Recalculate() {
	o.TotalAmount = o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}
