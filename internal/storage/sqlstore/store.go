// Package sqlstore persists the ledger in a relational database through
// database/sql. Each mutation commits in its own SQL transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces" // interface LedgerStore
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/seed"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type SQLLedgerStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// Open connects to dsn, creates the schema and loads the seed dataset the
// first time the database is used.
func Open(ctx context.Context, dialect Dialect, dsn string, logger *zap.Logger) (*SQLLedgerStore, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, models.Storage("open database", err)
	}
	if dialect == SQLite {
		// one connection keeps SQLite writers from tripping over file locks
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, models.Storage("ping database", err)
	}

	s := NewSQLLedgerStore(db, dialect, logger)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLLedgerStore wraps an existing connection pool. The schema is assumed
// to exist.
func NewSQLLedgerStore(db *sql.DB, dialect Dialect, logger *zap.Logger) *SQLLedgerStore {
	return &SQLLedgerStore{
		db:      db,
		dialect: dialect,
		logger:  logger.With(zap.String("component", "sql-store"), zap.String("dialect", string(dialect))),
	}
}

func (p *SQLLedgerStore) migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return models.Storage("migrate schema", err)
		}
	}

	var value string
	err := p.db.QueryRowContext(ctx, p.q(`SELECT value FROM ledger_meta WHERE name = ?`), seededMarker).Scan(&value)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Storage("read ledger meta", err)
	}

	p.logger.Info("empty database, loading seed data")
	return p.withTx(ctx, "seed database", func(tx *sql.Tx) error {
		if err := p.replaceAll(ctx, tx, seed.Default()); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, p.q(`INSERT INTO ledger_meta (name, value) VALUES (?, ?)`), seededMarker, time.Now().UTC().Format(timeLayout))
		return err
	})
}

func (p *SQLLedgerStore) q(query string) string { return p.dialect.rebind(query) }

// withTx runs fn in a transaction, rolling back when fn or the commit fails.
func (p *SQLLedgerStore) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Storage(op, err)
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	if err = fn(dbTx); err != nil {
		return models.Storage(op, err)
	}
	if err = dbTx.Commit(); err != nil {
		return models.Storage(op, err)
	}
	return nil
}

func (p *SQLLedgerStore) Snapshot(ctx context.Context) (models.Snapshot, error) {
	var snap models.Snapshot
	err := p.withTx(ctx, "read snapshot", func(tx *sql.Tx) error {
		var err error
		if snap.Customers, err = p.listCustomers(ctx, tx); err != nil {
			return err
		}
		if snap.Transactions, err = p.listTransactions(ctx, tx, ""); err != nil {
			return err
		}
		snap.BreadOrders, err = p.listOrders(ctx, tx)
		return err
	})
	if err != nil {
		return models.Snapshot{}, err
	}
	return snap.Clone(), nil
}

func (p *SQLLedgerStore) ReplaceAll(ctx context.Context, snap models.Snapshot) error {
	return p.withTx(ctx, "replace all", func(tx *sql.Tx) error {
		return p.replaceAll(ctx, tx, snap)
	})
}

func (p *SQLLedgerStore) replaceAll(ctx context.Context, tx *sql.Tx, snap models.Snapshot) error {
	for _, table := range []string{"transactions", "customers", "bread_orders"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return err
		}
	}
	for _, c := range snap.Customers {
		if err := p.insertCustomer(ctx, tx, c); err != nil {
			return err
		}
	}
	for _, t := range snap.Transactions {
		if err := p.insertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, o := range snap.BreadOrders {
		if err := p.insertOrder(ctx, tx, o); err != nil {
			return err
		}
	}
	return nil
}

func (p *SQLLedgerStore) ReplaceCustomers(ctx context.Context, customers []models.Customer) error {
	return p.withTx(ctx, "replace customers", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM customers`); err != nil {
			return err
		}
		for _, c := range customers {
			if err := p.insertCustomer(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// ─── Customers ──────────────────────────────────────────────────────────────

func (p *SQLLedgerStore) insertCustomer(ctx context.Context, q querier, c models.Customer) error {
	const query = `INSERT INTO customers (` + customerColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, p.q(query), c.ID, c.Name, c.Phone, formatTime(c.CreatedAt), models.ToMinor(c.Balance), models.ToMinor(c.OpeningBalance))
	return err
}

func scanCustomer(scan func(dest ...any) error) (models.Customer, error) {
	var (
		c                       models.Customer
		createdAt               string
		balanceMinor, openMinor int64
	)
	if err := scan(&c.ID, &c.Name, &c.Phone, &createdAt, &balanceMinor, &openMinor); err != nil {
		return models.Customer{}, err
	}
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.Customer{}, err
	}
	c.Balance = models.FromMinor(balanceMinor)
	c.OpeningBalance = models.FromMinor(openMinor)
	return c, nil
}

func (p *SQLLedgerStore) listCustomers(ctx context.Context, q querier) ([]models.Customer, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows.Scan)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (p *SQLLedgerStore) getCustomer(ctx context.Context, q querier, id string) (models.Customer, error) {
	row := q.QueryRowContext(ctx, p.q(`SELECT `+customerColumns+` FROM customers WHERE id = ?`), id)
	c, err := scanCustomer(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, models.NotFound("customer", id)
	}
	return c, err
}

func (p *SQLLedgerStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	customers, err := p.listCustomers(ctx, p.db)
	return customers, models.Storage("list customers", err)
}

func (p *SQLLedgerStore) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	c, err := p.getCustomer(ctx, p.db, id)
	return c, models.Storage("get customer", err)
}

func (p *SQLLedgerStore) SaveCustomer(ctx context.Context, c models.Customer) error {
	return p.withTx(ctx, "save customer", func(tx *sql.Tx) error {
		_, err := p.getCustomer(ctx, tx, c.ID)
		if errors.Is(err, models.ErrNotFound) {
			return p.insertCustomer(ctx, tx, c)
		}
		if err != nil {
			return err
		}
		const query = `UPDATE customers SET name = ?, phone = ?, created_at = ?, balance_minor = ?, opening_minor = ? WHERE id = ?`
		_, err = tx.ExecContext(ctx, p.q(query), c.Name, c.Phone, formatTime(c.CreatedAt), models.ToMinor(c.Balance), models.ToMinor(c.OpeningBalance), c.ID)
		return err
	})
}

func (p *SQLLedgerStore) DeleteCustomer(ctx context.Context, id string) error {
	return p.withTx(ctx, "delete customer", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, p.q(`DELETE FROM customers WHERE id = ?`), id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return models.NotFound("customer", id)
		}
		_, err = tx.ExecContext(ctx, p.q(`DELETE FROM transactions WHERE customer_id = ?`), id)
		return err
	})
}

func (p *SQLLedgerStore) SetBalance(ctx context.Context, customerID string, balance decimal.Decimal) error {
	return p.withTx(ctx, "set balance", func(tx *sql.Tx) error {
		if _, err := p.getCustomer(ctx, tx, customerID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, p.q(`UPDATE customers SET balance_minor = ? WHERE id = ?`), models.ToMinor(balance), customerID)
		return err
	})
}

// ─── Transactions ───────────────────────────────────────────────────────────

func (p *SQLLedgerStore) insertTransaction(ctx context.Context, q querier, t models.Transaction) error {
	const query = `INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, p.q(query), t.ID, t.CustomerID, string(t.Type), models.ToMinor(t.Amount), formatTime(t.Date), t.Description, t.OrderID)
	return err
}

// AppendTransaction inserts the transaction and increments the balance
// column in the same SQL transaction.
func (p *SQLLedgerStore) AppendTransaction(ctx context.Context, t models.Transaction) (models.Customer, error) {
	var updated models.Customer
	err := p.withTx(ctx, "append transaction", func(tx *sql.Tx) error {
		if _, err := p.getCustomer(ctx, tx, t.CustomerID); err != nil {
			return err
		}
		if err := p.insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		const query = `UPDATE customers SET balance_minor = balance_minor + ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, p.q(query), models.ToMinor(t.Delta()), t.CustomerID); err != nil {
			return err
		}
		var err error
		updated, err = p.getCustomer(ctx, tx, t.CustomerID)
		return err
	})
	if err != nil {
		return models.Customer{}, err
	}
	return updated, nil
}

func (p *SQLLedgerStore) listTransactions(ctx context.Context, q querier, customerID string) ([]models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var args []any
	if customerID != "" {
		query += ` WHERE customer_id = ?`
		args = append(args, customerID)
	}
	query += ` ORDER BY occurred_at, id`

	rows, err := q.QueryContext(ctx, p.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var (
			t           models.Transaction
			kind, date  string
			amountMinor int64
		)
		if err := rows.Scan(&t.ID, &t.CustomerID, &kind, &amountMinor, &date, &t.Description, &t.OrderID); err != nil {
			return nil, err
		}
		if t.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		t.Type = models.TransactionType(kind)
		t.Amount = models.FromMinor(amountMinor)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (p *SQLLedgerStore) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	txs, err := p.listTransactions(ctx, p.db, "")
	return txs, models.Storage("list transactions", err)
}

func (p *SQLLedgerStore) TransactionsByCustomer(ctx context.Context, customerID string) ([]models.Transaction, error) {
	txs, err := p.listTransactions(ctx, p.db, customerID)
	return txs, models.Storage("list customer transactions", err)
}

// ─── Bread orders ───────────────────────────────────────────────────────────

func (p *SQLLedgerStore) insertOrder(ctx context.Context, q querier, o models.BreadOrder) error {
	const query = `INSERT INTO bread_orders (` + orderColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.ExecContext(ctx, p.q(query),
		o.ID, o.Name, o.Quantity, models.ToMinor(o.UnitPrice), models.ToMinor(o.TotalAmount),
		boolToInt(o.IsPaid), boolToInt(o.IsDelivered), boolToInt(o.IsPinned),
		formatTime(o.CreatedAt), nullString(o.CustomerID), nullString(o.CustomerName))
	return err
}

func scanOrder(scan func(dest ...any) error) (models.BreadOrder, error) {
	var (
		o                      models.BreadOrder
		priceMinor, totalMinor int64
		paid, delivered, pin   int64
		createdAt              string
		customerID, name       sql.NullString
	)
	if err := scan(&o.ID, &o.Name, &o.Quantity, &priceMinor, &totalMinor, &paid, &delivered, &pin, &createdAt, &customerID, &name); err != nil {
		return models.BreadOrder{}, err
	}
	var err error
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.BreadOrder{}, err
	}
	o.UnitPrice = models.FromMinor(priceMinor)
	o.TotalAmount = models.FromMinor(totalMinor)
	o.IsPaid, o.IsDelivered, o.IsPinned = paid == 1, delivered == 1, pin == 1
	if customerID.Valid {
		o.CustomerID = &customerID.String
	}
	if name.Valid {
		o.CustomerName = &name.String
	}
	return o, nil
}

func (p *SQLLedgerStore) listOrders(ctx context.Context, q querier) ([]models.BreadOrder, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+orderColumns+` FROM bread_orders ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.BreadOrder
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (p *SQLLedgerStore) getOrder(ctx context.Context, q querier, id string) (models.BreadOrder, error) {
	row := q.QueryRowContext(ctx, p.q(`SELECT `+orderColumns+` FROM bread_orders WHERE id = ?`), id)
	o, err := scanOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BreadOrder{}, models.NotFound("order", id)
	}
	return o, err
}

func (p *SQLLedgerStore) ListOrders(ctx context.Context) ([]models.BreadOrder, error) {
	orders, err := p.listOrders(ctx, p.db)
	return orders, models.Storage("list orders", err)
}

func (p *SQLLedgerStore) GetOrder(ctx context.Context, id string) (models.BreadOrder, error) {
	o, err := p.getOrder(ctx, p.db, id)
	return o, models.Storage("get order", err)
}

func (p *SQLLedgerStore) SaveOrder(ctx context.Context, o models.BreadOrder) error {
	return p.withTx(ctx, "save order", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, p.q(`DELETE FROM bread_orders WHERE id = ?`), o.ID); err != nil {
			return err
		}
		return p.insertOrder(ctx, tx, o)
	})
}

func (p *SQLLedgerStore) DeleteOrder(ctx context.Context, id string) error {
	return p.withTx(ctx, "delete order", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, p.q(`DELETE FROM bread_orders WHERE id = ?`), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return models.NotFound("order", id)
		}
		return nil
	})
}

func (p *SQLLedgerStore) Close() error { return p.db.Close() }

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var _ interfaces.LedgerStore = (*SQLLedgerStore)(nil)
