package service

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
)

type OrderInput struct {
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	IsPaid      bool            `json:"isPaid"`
	IsDelivered bool            `json:"isDelivered"`
	IsPinned    bool            `json:"isPinned"`
	CustomerID  string          `json:"customerId"`
}

// OrderPatch changes only the fields that are set. A CustomerID pointing to
// an empty string unlinks the order.
type OrderPatch struct {
	Name        *string          `json:"name"`
	Quantity    *int             `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
	IsPaid      *bool            `json:"isPaid"`
	IsDelivered *bool            `json:"isDelivered"`
	IsPinned    *bool            `json:"isPinned"`
	CustomerID  *string          `json:"customerId"`
}

func validateOrder(o models.BreadOrder) error {
	if err := minLen("name", o.Name, 2); err != nil {
		return err
	}
	if o.Quantity <= 0 {
		return models.Invalid("quantity must be positive")
	}
	if !o.UnitPrice.IsPositive() {
		return models.Invalid("unitPrice must be positive")
	}
	if err := models.CheckMoney("unitPrice", o.UnitPrice); err != nil {
		return err
	}
	total := o
	total.Recalculate()
	return models.CheckMoney("totalAmount", total.TotalAmount)
}

// link points o at customerID and snapshots the customer's current name.
// An empty id clears the link.
func (s *Service) link(ctx context.Context, o *models.BreadOrder, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		o.CustomerID, o.CustomerName = nil, nil
		return nil
	}
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return s.observe("get customer", err)
	}
	id, name := c.ID, c.Name
	o.CustomerID, o.CustomerName = &id, &name
	return nil
}

// AddOrder creates an order. Its total is always quantity × unitPrice.
func (s *Service) AddOrder(ctx context.Context, in OrderInput) (models.BreadOrder, error) {
	o := models.BreadOrder{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		IsPaid:      in.IsPaid,
		IsDelivered: in.IsDelivered,
		IsPinned:    in.IsPinned,
		CreatedAt:   s.now(),
	}
	if err := validateOrder(o); err != nil {
		return models.BreadOrder{}, err
	}
	o.Recalculate()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.link(ctx, &o, in.CustomerID); err != nil {
		return models.BreadOrder{}, err
	}
	if err := s.store.SaveOrder(ctx, o); err != nil {
		return models.BreadOrder{}, s.observe("save order", err)
	}
	s.logger.Info("order added", zap.String("order_id", o.ID), zap.String("total", o.TotalAmount.StringFixed(2)))
	return o, nil
}

// UpdateOrder merges patch into the stored order and recomputes its total
// from the merged factors.
func (s *Service) UpdateOrder(ctx context.Context, id string, patch OrderPatch) (models.BreadOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return models.BreadOrder{}, s.observe("get order", err)
	}
	if patch.Name != nil {
		o.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Quantity != nil {
		o.Quantity = *patch.Quantity
	}
	if patch.UnitPrice != nil {
		o.UnitPrice = *patch.UnitPrice
	}
	if patch.IsPaid != nil {
		o.IsPaid = *patch.IsPaid
	}
	if patch.IsDelivered != nil {
		o.IsDelivered = *patch.IsDelivered
	}
	if patch.IsPinned != nil {
		o.IsPinned = *patch.IsPinned
	}
	if err := validateOrder(o); err != nil {
		return models.BreadOrder{}, err
	}
	if patch.CustomerID != nil {
		if err := s.link(ctx, &o, *patch.CustomerID); err != nil {
			return models.BreadOrder{}, err
		}
	}
	o.Recalculate()

	if err := s.store.SaveOrder(ctx, o); err != nil {
		return models.BreadOrder{}, s.observe("save order", err)
	}
	return o, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.observe("delete order", s.store.DeleteOrder(ctx, id))
}

// ListOrders returns pinned orders first, each group newest first.
func (s *Service) ListOrders(ctx context.Context) ([]models.BreadOrder, error) {
	s.mu.RLock()
	orders, err := s.store.ListOrders(ctx)
	s.mu.RUnlock()
	if err != nil {
		return nil, s.observe("list orders", err)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return orders, nil
}
