package service

import (
	"context"

	"github.com/shopspring/decimal"
)

// Stats are the dashboard totals.
type Stats struct {
	TotalCustomers      int             `json:"totalCustomers"`
	TotalBalance        decimal.Decimal `json:"totalBalance"`
	CustomersInDebt     int             `json:"customersInDebt"`
	CustomersWithCredit int             `json:"customersWithCredit"`
	TotalOrders         int             `json:"totalOrders"`
	UnpaidOrdersTotal   decimal.Decimal `json:"unpaidOrdersTotal"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	snap, err := s.store.Snapshot(ctx)
	s.mu.RUnlock()
	if err != nil {
		return Stats{}, s.observe("snapshot", err)
	}

	st := Stats{
		TotalCustomers:    len(snap.Customers),
		TotalBalance:      decimal.Zero,
		TotalOrders:       len(snap.BreadOrders),
		UnpaidOrdersTotal: decimal.Zero,
	}
	for _, c := range snap.Customers {
		st.TotalBalance = st.TotalBalance.Add(c.Balance)
		switch c.Balance.Sign() {
		case 1:
			st.CustomersInDebt++
		case -1:
			st.CustomersWithCredit++
		}
	}
	for _, o := range snap.BreadOrders {
		if !o.IsPaid {
			st.UnpaidOrdersTotal = st.UnpaidOrdersTotal.Add(o.TotalAmount)
		}
	}
	return st, nil
}
