package service

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
)

type CustomerInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// CustomerPatch changes only the fields that are set.
type CustomerPatch struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

func validateCustomer(name, phone string) error {
	if err := minLen("name", name, 2); err != nil {
		return err
	}
	return minLen("phone", phone, 10)
}

// AddCustomer creates a customer with a zero balance.
func (s *Service) AddCustomer(ctx context.Context, in CustomerInput) (models.Customer, error) {
	name, phone := strings.TrimSpace(in.Name), strings.TrimSpace(in.Phone)
	if err := validateCustomer(name, phone); err != nil {
		return models.Customer{}, err
	}

	c := models.Customer{
		ID:        s.newID(),
		Name:      name,
		Phone:     phone,
		CreatedAt: s.now(),
		Balance:   decimal.Zero,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		return models.Customer{}, s.observe("save customer", err)
	}
	s.logger.Info("customer added", zap.String("customer_id", c.ID))
	return c, nil
}

// UpdateCustomer renames a customer or changes their phone. Orders keep the
// customer name they were linked with.
func (s *Service) UpdateCustomer(ctx context.Context, id string, patch CustomerPatch) (models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return models.Customer{}, s.observe("get customer", err)
	}
	if patch.Name != nil {
		c.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Phone != nil {
		c.Phone = strings.TrimSpace(*patch.Phone)
	}
	if err := validateCustomer(c.Name, c.Phone); err != nil {
		return models.Customer{}, err
	}
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		return models.Customer{}, s.observe("save customer", err)
	}
	return c, nil
}

// DeleteCustomer removes a customer and all of their transactions.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return s.observe("delete customer", err)
	}
	s.ledger.Forget(id)
	s.logger.Info("customer deleted", zap.String("customer_id", id))
	return nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.store.GetCustomer(ctx, id)
	return c, s.observe("get customer", err)
}

// ListCustomers returns customers newest first. A non-empty query keeps only
// names containing it, ignoring case.
func (s *Service) ListCustomers(ctx context.Context, query string) ([]models.Customer, error) {
	s.mu.RLock()
	all, err := s.store.ListCustomers(ctx)
	s.mu.RUnlock()
	if err != nil {
		return nil, s.observe("list customers", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Customer, 0, len(all))
	for _, c := range all {
		if query == "" || strings.Contains(strings.ToLower(c.Name), query) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// CustomerTransactions returns a customer's transactions newest first.
func (s *Service) CustomerTransactions(ctx context.Context, id string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.store.GetCustomer(ctx, id); err != nil {
		return nil, s.observe("get customer", err)
	}
	txs, err := s.store.TransactionsByCustomer(ctx, id)
	if err != nil {
		return nil, s.observe("list transactions", err)
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID > txs[j].ID
	})
	return txs, nil
}

// CustomerSummary returns the customer with their debt and payment totals.
func (s *Service) CustomerSummary(ctx context.Context, id string) (models.CustomerSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return models.CustomerSummary{}, s.observe("get customer", err)
	}
	txs, err := s.store.TransactionsByCustomer(ctx, id)
	if err != nil {
		return models.CustomerSummary{}, s.observe("list transactions", err)
	}

	sum := models.CustomerSummary{Customer: c, TotalDebts: decimal.Zero, TotalPayments: decimal.Zero, TransactionCount: len(txs)}
	for _, tx := range txs {
		switch tx.Type {
		case models.TransactionDebt:
			sum.TotalDebts = sum.TotalDebts.Add(tx.Amount)
		case models.TransactionPayment:
			sum.TotalPayments = sum.TotalPayments.Add(tx.Amount)
		}
	}
	return sum, nil
}
