// Package redisstore keeps the ledger in Redis hashes. Entities are stored as
// JSON documents; balances live in their own hash as integer minor units so
// transactions can move them with an atomic HINCRBY.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/bread-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/models"
	"github.com/sheikh-saqib/bread-credit-ledger/internal/seed"
)

const (
	customersKey    = "customers"
	balancesKey     = "balances"
	transactionsKey = "transactions"
	ordersKey       = "orders"
	seededKey       = "seeded"
)

type RedisLedgerStore struct {
	client redis.UniversalClient // works with both single and cluster
	prefix string
	logger *zap.Logger
}

// Options configures the Redis connection.
type Options struct {
	Addrs      []string
	Password   string
	DB         int
	UseCluster bool
	Prefix     string
}

// NewClient builds a single-node or cluster client from opts.
func NewClient(opts Options) redis.UniversalClient {
	if opts.UseCluster && len(opts.Addrs) > 1 {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    opts.Addrs,
			Password: opts.Password,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addrs[0],
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// Open checks the connection and loads the seed dataset when the prefix has
// never been initialised.
func Open(ctx context.Context, client redis.UniversalClient, prefix string, logger *zap.Logger) (*RedisLedgerStore, error) {
	s := &RedisLedgerStore{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "redis-store"), zap.String("prefix", prefix)),
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, models.Storage("ping redis", err)
	}

	n, err := client.Exists(ctx, s.key(seededKey)).Result()
	if err != nil {
		return nil, models.Storage("read seed marker", err)
	}
	if n == 0 {
		s.logger.Info("empty keyspace, loading seed data")
		if err := s.ReplaceAll(ctx, seed.Default()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (r *RedisLedgerStore) key(name string) string { return r.prefix + ":" + name }

func (r *RedisLedgerStore) Snapshot(ctx context.Context) (models.Snapshot, error) {
	var (
		snap models.Snapshot
		err  error
	)
	if snap.Customers, err = r.ListCustomers(ctx); err != nil {
		return models.Snapshot{}, err
	}
	if snap.Transactions, err = r.ListTransactions(ctx); err != nil {
		return models.Snapshot{}, err
	}
	if snap.BreadOrders, err = r.ListOrders(ctx); err != nil {
		return models.Snapshot{}, err
	}
	return snap.Clone(), nil
}

// ReplaceAll rewrites every key in one MULTI/EXEC batch.
func (r *RedisLedgerStore) ReplaceAll(ctx context.Context, snap models.Snapshot) error {
	customers, balances, err := encodeCustomers(snap.Customers)
	if err != nil {
		return models.Storage("encode customers", err)
	}
	txs := make(map[string]any, len(snap.Transactions))
	for _, t := range snap.Transactions {
		if txs[t.ID], err = json.Marshal(t); err != nil {
			return models.Storage("encode transaction", err)
		}
	}
	orders := make(map[string]any, len(snap.BreadOrders))
	for _, o := range snap.BreadOrders {
		if orders[o.ID], err = json.Marshal(o); err != nil {
			return models.Storage("encode order", err)
		}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(customersKey), r.key(balancesKey), r.key(transactionsKey), r.key(ordersKey))
		hsetIfAny(ctx, pipe, r.key(customersKey), customers)
		hsetIfAny(ctx, pipe, r.key(balancesKey), balances)
		hsetIfAny(ctx, pipe, r.key(transactionsKey), txs)
		hsetIfAny(ctx, pipe, r.key(ordersKey), orders)
		pipe.Set(ctx, r.key(seededKey), time.Now().UTC().Format(time.RFC3339), 0)
		return nil
	})
	return models.Storage("replace all", err)
}

func (r *RedisLedgerStore) ReplaceCustomers(ctx context.Context, list []models.Customer) error {
	customers, balances, err := encodeCustomers(list)
	if err != nil {
		return models.Storage("encode customers", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(customersKey), r.key(balancesKey), r.key(transactionsKey))
		hsetIfAny(ctx, pipe, r.key(customersKey), customers)
		hsetIfAny(ctx, pipe, r.key(balancesKey), balances)
		return nil
	})
	return models.Storage("replace customers", err)
}

// ─── Customers ──────────────────────────────────────────────────────────────

func (r *RedisLedgerStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	docs, err := r.client.HGetAll(ctx, r.key(customersKey)).Result()
	if err != nil {
		return nil, models.Storage("list customers", err)
	}
	balances, err := r.client.HGetAll(ctx, r.key(balancesKey)).Result()
	if err != nil {
		return nil, models.Storage("list balances", err)
	}

	customers := make([]models.Customer, 0, len(docs))
	for id, doc := range docs {
		c, err := decodeCustomer(doc, balances[id])
		if err != nil {
			return nil, models.Storage("decode customer", err)
		}
		customers = append(customers, c)
	}
	sort.Slice(customers, func(i, j int) bool {
		if !customers[i].CreatedAt.Equal(customers[j].CreatedAt) {
			return customers[i].CreatedAt.Before(customers[j].CreatedAt)
		}
		return customers[i].ID < customers[j].ID
	})
	return customers, nil
}

func (r *RedisLedgerStore) GetCustomer(ctx context.Context, id string) (models.Customer, error) {
	doc, err := r.client.HGet(ctx, r.key(customersKey), id).Result()
	if errors.Is(err, redis.Nil) {
		return models.Customer{}, models.NotFound("customer", id)
	}
	if err != nil {
		return models.Customer{}, models.Storage("get customer", err)
	}
	balance, err := r.client.HGet(ctx, r.key(balancesKey), id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return models.Customer{}, models.Storage("get balance", err)
	}
	c, err := decodeCustomer(doc, balance)
	return c, models.Storage("decode customer", err)
}

func (r *RedisLedgerStore) SaveCustomer(ctx context.Context, c models.Customer) error {
	data, err := json.Marshal(c)
	if err != nil {
		return models.Storage("encode customer", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key(customersKey), c.ID, data)
		pipe.HSet(ctx, r.key(balancesKey), c.ID, models.ToMinor(c.Balance))
		return nil
	})
	return models.Storage("save customer", err)
}

func (r *RedisLedgerStore) DeleteCustomer(ctx context.Context, id string) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, r.key(customersKey), id).Result()
		if err != nil {
			return err
		}
		if !exists {
			return models.NotFound("customer", id)
		}
		owned, err := r.transactionIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, r.key(customersKey), id)
			pipe.HDel(ctx, r.key(balancesKey), id)
			if len(owned) > 0 {
				pipe.HDel(ctx, r.key(transactionsKey), owned...)
			}
			return nil
		})
		return err
	}, r.key(customersKey), r.key(transactionsKey))
	return models.Storage("delete customer", err)
}

func (r *RedisLedgerStore) transactionIDs(ctx context.Context, tx *redis.Tx, customerID string) ([]string, error) {
	docs, err := tx.HGetAll(ctx, r.key(transactionsKey)).Result()
	if err != nil {
		return nil, err
	}
	var ids []string
	for id, doc := range docs {
		var t models.Transaction
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, err
		}
		if t.CustomerID == customerID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *RedisLedgerStore) SetBalance(ctx context.Context, customerID string, balance decimal.Decimal) error {
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, r.key(customersKey), customerID).Result()
		if err != nil {
			return err
		}
		if !exists {
			return models.NotFound("customer", customerID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key(balancesKey), customerID, models.ToMinor(balance))
			return nil
		})
		return err
	}, r.key(customersKey))
	return models.Storage("set balance", err)
}

// ─── Transactions ───────────────────────────────────────────────────────────

// AppendTransaction stores the transaction document and increments the
// owner's balance in one MULTI/EXEC, guarded by a WATCH on the customers hash.
func (r *RedisLedgerStore) AppendTransaction(ctx context.Context, t models.Transaction) (models.Customer, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return models.Customer{}, models.Storage("encode transaction", err)
	}

	var doc string
	var incr *redis.IntCmd
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		var err error
		doc, err = tx.HGet(ctx, r.key(customersKey), t.CustomerID).Result()
		if errors.Is(err, redis.Nil) {
			return models.NotFound("customer", t.CustomerID)
		}
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key(transactionsKey), t.ID, data)
			incr = pipe.HIncrBy(ctx, r.key(balancesKey), t.CustomerID, models.ToMinor(t.Delta()))
			return nil
		})
		return err
	}, r.key(customersKey))
	if err != nil {
		return models.Customer{}, models.Storage("append transaction", err)
	}

	c, err := decodeCustomer(doc, strconv.FormatInt(incr.Val(), 10))
	return c, models.Storage("decode customer", err)
}

func (r *RedisLedgerStore) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	return r.listTransactions(ctx, "")
}

func (r *RedisLedgerStore) TransactionsByCustomer(ctx context.Context, customerID string) ([]models.Transaction, error) {
	return r.listTransactions(ctx, customerID)
}

func (r *RedisLedgerStore) listTransactions(ctx context.Context, customerID string) ([]models.Transaction, error) {
	docs, err := r.client.HGetAll(ctx, r.key(transactionsKey)).Result()
	if err != nil {
		return nil, models.Storage("list transactions", err)
	}
	var txs []models.Transaction
	for _, doc := range docs {
		var t models.Transaction
		if err := json.Unmarshal([]byte(doc), &t); err != nil {
			return nil, models.Storage("decode transaction", err)
		}
		if customerID == "" || t.CustomerID == customerID {
			txs = append(txs, t)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
	return txs, nil
}

// ─── Bread orders ───────────────────────────────────────────────────────────

func (r *RedisLedgerStore) ListOrders(ctx context.Context) ([]models.BreadOrder, error) {
	docs, err := r.client.HGetAll(ctx, r.key(ordersKey)).Result()
	if err != nil {
		return nil, models.Storage("list orders", err)
	}
	orders := make([]models.BreadOrder, 0, len(docs))
	for _, doc := range docs {
		var o models.BreadOrder
		if err := json.Unmarshal([]byte(doc), &o); err != nil {
			return nil, models.Storage("decode order", err)
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
	return orders, nil
}

func (r *RedisLedgerStore) GetOrder(ctx context.Context, id string) (models.BreadOrder, error) {
	doc, err := r.client.HGet(ctx, r.key(ordersKey), id).Result()
	if errors.Is(err, redis.Nil) {
		return models.BreadOrder{}, models.NotFound("order", id)
	}
	if err != nil {
		return models.BreadOrder{}, models.Storage("get order", err)
	}
	var o models.BreadOrder
	if err := json.Unmarshal([]byte(doc), &o); err != nil {
		return models.BreadOrder{}, models.Storage("decode order", err)
	}
	return o, nil
}

func (r *RedisLedgerStore) SaveOrder(ctx context.Context, o models.BreadOrder) error {
	data, err := json.Marshal(o)
	if err != nil {
		return models.Storage("encode order", err)
	}
	return models.Storage("save order", r.client.HSet(ctx, r.key(ordersKey), o.ID, data).Err())
}

func (r *RedisLedgerStore) DeleteOrder(ctx context.Context, id string) error {
	n, err := r.client.HDel(ctx, r.key(ordersKey), id).Result()
	if err != nil {
		return models.Storage("delete order", err)
	}
	if n == 0 {
		return models.NotFound("order", id)
	}
	return nil
}

func (r *RedisLedgerStore) Close() error { return r.client.Close() }

func hsetIfAny(ctx context.Context, pipe redis.Pipeliner, key string, fields map[string]any) {
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
	}
}

func encodeCustomers(list []models.Customer) (docs, balances map[string]any, err error) {
	docs = make(map[string]any, len(list))
	balances = make(map[string]any, len(list))
	for _, c := range list {
		if docs[c.ID], err = json.Marshal(c); err != nil {
			return nil, nil, err
		}
		balances[c.ID] = models.ToMinor(c.Balance)
	}
	return docs, balances, nil
}

// decodeCustomer merges a customer document with its balance field. An absent
// balance reads as zero.
func decodeCustomer(doc, balance string) (models.Customer, error) {
	var c models.Customer
	if err := json.Unmarshal([]byte(doc), &c); err != nil {
		return models.Customer{}, err
	}
	c.Balance = decimal.Zero
	if balance != "" {
		minor, err := strconv.ParseInt(balance, 10, 64)
		if err != nil {
			return models.Customer{}, fmt.Errorf("parse balance of %s: %w", c.ID, err)
		}
		c.Balance = models.FromMinor(minor)
	}
	return c, nil
}

var _ interfaces.LedgerStore = (*RedisLedgerStore)(nil)
