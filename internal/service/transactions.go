package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/bread-credit-ledger/internal/ledger"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
)

type TransactionInput struct {
	CustomerID  string                 `json:"customerId"`
	Type        models.TransactionType `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Description string                 `json:"description"`
	OrderID     string                 `json:"orderId"`
}

// AddTransaction records a debt or payment and returns it with the
// customer's new balance.
func (s *Service) AddTransaction(ctx context.Context, in TransactionInput) (models.Transaction, models.Customer, error) {
	desc := strings.TrimSpace(in.Description)
	if err := minLen("description", desc, 3); err != nil {
		return models.Transaction{}, models.Customer{}, err
	}
	orderID := strings.TrimSpace(in.OrderID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if orderID != "" {
		if _, err := s.store.GetOrder(ctx, orderID); err != nil {
			return models.Transaction{}, models.Customer{}, s.observe("get order", err)
		}
	}

	tx, c, err := s.ledger.ApplyTransaction(ctx, ledger.Entry{
		CustomerID:  in.CustomerID,
		Type:        in.Type,
		Amount:      in.Amount,
		Description: desc,
		OrderID:     orderID,
	})
	if err != nil {
		return models.Transaction{}, models.Customer{}, s.observe("append transaction", err)
	}

	if s.metrics != nil {
		s.metrics.Transactions.WithLabelValues(string(tx.Type)).Inc()
	}
	s.logger.Info("transaction applied",
		zap.String("transaction_id", tx.ID),
		zap.String("customer_id", c.ID),
		zap.String("type", string(tx.Type)),
		zap.String("amount", tx.Amount.StringFixed(2)),
		zap.String("balance", c.Balance.StringFixed(2)),
	)
	return tx, c, nil
}

// BalanceCheck compares a customer's stored balance with the value
// recomputed from their transactions.
type BalanceCheck struct {
	CustomerID string          `json:"customerId"`
	Balance    decimal.Decimal `json:"balance"`
	Computed   decimal.Decimal `json:"computed"`
	Consistent bool            `json:"consistent"`
}

func (s *Service) CheckBalance(ctx context.Context, id string) (BalanceCheck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return BalanceCheck{}, s.observe("get customer", err)
	}
	computed, err := s.ledger.Recompute(ctx, id)
	if err != nil {
		return BalanceCheck{}, s.observe("recompute balance", err)
	}
	return BalanceCheck{CustomerID: id, Balance: c.Balance, Computed: computed, Consistent: computed.Equal(c.Balance)}, nil
}

// RecomputeBalance rebuilds a customer's balance from their transactions and
// stores it when it had drifted.
func (s *Service) RecomputeBalance(ctx context.Context, id string) (models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, computed, err := s.ledger.Repair(ctx, id)
	if err != nil {
		return models.Customer{}, s.observe("repair balance", err)
	}
	if changed {
		s.logger.Warn("balance repaired", zap.String("customer_id", id), zap.String("balance", computed.StringFixed(2)))
	}
	c, err := s.store.GetCustomer(ctx, id)
	return c, s.observe("get customer", err)
}

// VerifyBalances lists every customer whose stored balance has drifted.
func (s *Service) VerifyBalances(ctx context.Context) ([]ledger.Mismatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mismatches, err := s.ledger.Verify(ctx)
	return mismatches, s.observe("verify balances", err)
}

// Statement returns the customer's transactions oldest first with the
// running balance after each.
func (s *Service) Statement(ctx context.Context, id string) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.ledger.Statement(ctx, id)
	return entries, s.observe("statement", err)
}
