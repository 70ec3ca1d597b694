// Package service is the data access façade: every read and write the HTTP
// API and the CLI perform goes through a Service.
package service

import (
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/ledger"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/metrics"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/notify"
)

// Service serializes mutations behind one lock and broadcasts a data-changed
// signal after bulk operations (imports and resets).
type Service struct {
	mu      sync.RWMutex
	store   interfaces.LedgerStore
	ledger  *ledger.Ledger
	changes notify.Notifier
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
	txIDs   func() string
}

type Option func(*Service)

// WithMetrics records counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source for every created entity.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs overrides id generation for customers and orders.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithTransactionIDs overrides id generation for transactions.
func WithTransactionIDs(newID func() string) Option {
	return func(s *Service) { s.txIDs = newID }
}

// New builds a Service over store. changes may be nil.
func New(store interfaces.LedgerStore, changes notify.Notifier, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		changes: changes,
		logger:  logger.With(zap.String("component", "service")),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}

	ledgerOpts := []ledger.Option{ledger.WithClock(s.now)}
	if s.txIDs != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithIDs(s.txIDs))
	}
	s.ledger = ledger.NewLedger(store, ledgerOpts...)
	return s
}

// Ledger exposes the balance engine for read-only tooling.
func (s *Service) Ledger() *ledger.Ledger { return s.ledger }

func (s *Service) notifyChanged() {
	if s.changes != nil {
		s.changes.Notify()
	}
	if s.metrics != nil {
		s.metrics.Notifications.Inc()
	}
}

// observe logs and counts storage failures before handing err back.
func (s *Service) observe(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrStorage) {
		s.logger.Error("storage failure", zap.String("op", op), zap.Error(err))
		if s.metrics != nil {
			s.metrics.StoreErrors.WithLabelValues(op).Inc()
		}
	}
	return err
}

func minLen(field, value string, n int) error {
	if utf8.RuneCountInString(value) < n {
		return models.Invalid("%s must be at least %d characters", field, n)
	}
	return nil
}
