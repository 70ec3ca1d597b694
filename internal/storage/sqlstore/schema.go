package sqlstore

// Money columns hold integer minor units; timestamps are fixed-width UTC text
// so they sort lexically. Booleans are stored as 0/1 integers. The same DDL
// runs unchanged on SQLite, Postgres and MySQL.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id            VARCHAR(64)  PRIMARY KEY,
		name          VARCHAR(255) NOT NULL,
		phone         VARCHAR(64)  NOT NULL,
		created_at    VARCHAR(40)  NOT NULL,
		balance_minor BIGINT       NOT NULL DEFAULT 0,
		opening_minor BIGINT       NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id           VARCHAR(64) PRIMARY KEY,
		customer_id  VARCHAR(64) NOT NULL,
		tx_type      VARCHAR(16) NOT NULL,
		amount_minor BIGINT      NOT NULL,
		occurred_at  VARCHAR(40) NOT NULL,
		description  TEXT        NOT NULL,
		order_id     VARCHAR(64) NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS bread_orders (
		id               VARCHAR(64)  PRIMARY KEY,
		name             VARCHAR(255) NOT NULL,
		quantity         INTEGER      NOT NULL,
		unit_price_minor BIGINT       NOT NULL,
		total_minor      BIGINT       NOT NULL,
		is_paid          INTEGER      NOT NULL DEFAULT 0,
		is_delivered     INTEGER      NOT NULL DEFAULT 0,
		is_pinned        INTEGER      NOT NULL DEFAULT 0,
		created_at       VARCHAR(40)  NOT NULL,
		customer_id      VARCHAR(64),
		customer_name    VARCHAR(255)
	)`,

	`CREATE TABLE IF NOT EXISTS ledger_meta (
		name  VARCHAR(64)  PRIMARY KEY,
		value VARCHAR(255) NOT NULL
	)`,
}

const seededMarker = "seeded"

const (
	customerColumns    = `id, name, phone, created_at, balance_minor, opening_minor`
	transactionColumns = `id, customer_id, tx_type, amount_minor, occurred_at, description, order_id`
	orderColumns       = `id, name, quantity, unit_price_minor, total_minor, is_paid, is_delivered, is_pinned, created_at, customer_id, customer_name`
)
