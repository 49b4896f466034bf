/*
Package sqlite provides a SQLite-backed implementation of engine.TxRepository.

PURPOSE:
  Persists products, customers, providers, orders and transactions in one
  SQLite file. Record shapes are exactly the engine's entity fields; order
  lines and transaction metadata are embedded as JSON columns because they
  are owned by their parent record.

ATOMIC STOCK:
  AdjustStock is a single statement:
    UPDATE products SET stock = stock + ? WHERE id = ? RETURNING stock
  so concurrent deltas commute without a read-then-write window.

TRANSACTIONS:
  WithTx runs the whole engine operation inside one database transaction
  under the store's write lock. The Repository handed to fn talks to the
  *sql.Tx only; it must not be used after fn returns.

CONNECTIONS:
  The pool is capped at one connection. SQLite serializes writers anyway,
  and ":memory:" databases are per-connection.

MONEY:
  decimal.Decimal columns are stored as TEXT to keep exact values.

USAGE:
  store, err := sqlite.New("./data/repledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  eng := engine.New(store)

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/repledger/engine"
)

// Store implements engine.TxRepository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ engine.TxRepository = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_price TEXT NOT NULL DEFAULT '0',
		stock INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		brick TEXT NOT NULL DEFAULT '',
		default_discount TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS providers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT ''
	);

	-- Order lines are owned by the order and stored inline.
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		items_json TEXT NOT NULL DEFAULT '[]',
		total_amount TEXT NOT NULL DEFAULT '0',
		paid_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		is_draft BOOLEAN NOT NULL DEFAULT FALSE,
		is_return BOOLEAN NOT NULL DEFAULT FALSE,
		notes TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_orders_date ON orders(date);

	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		reference_id TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		provider_id TEXT NOT NULL DEFAULT '',
		provider_name TEXT NOT NULL DEFAULT '',
		metadata_json TEXT
	);

	-- Cascade on order delete and payment lookups
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id <> '';
	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxRepository interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) q() *queries { return &queries{db: s.db} }

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"transactions", "orders", "products", "customers", "providers"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// LOCKED ACCESSORS
// =============================================================================

func (s *Store) ListProducts(ctx context.Context) ([]engine.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListProducts(ctx)
}

func (s *Store) GetProduct(ctx context.Context, id string) (engine.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetProduct(ctx, id)
}

func (s *Store) InsertProduct(ctx context.Context, p engine.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().InsertProduct(ctx, p)
}

func (s *Store) UpdateProduct(ctx context.Context, p engine.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateProduct(ctx, p)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteProduct(ctx, id)
}

func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().AdjustStock(ctx, id, delta)
}

func (s *Store) ListCustomers(ctx context.Context) ([]engine.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListCustomers(ctx)
}

func (s *Store) GetCustomer(ctx context.Context, id string) (engine.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetCustomer(ctx, id)
}

func (s *Store) InsertCustomer(ctx context.Context, c engine.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().InsertCustomer(ctx, c)
}

func (s *Store) UpdateCustomer(ctx context.Context, c engine.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateCustomer(ctx, c)
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteCustomer(ctx, id)
}

func (s *Store) ListProviders(ctx context.Context) ([]engine.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListProviders(ctx)
}

func (s *Store) GetProvider(ctx context.Context, id string) (engine.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetProvider(ctx, id)
}

func (s *Store) InsertProvider(ctx context.Context, p engine.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().InsertProvider(ctx, p)
}

func (s *Store) UpdateProvider(ctx context.Context, p engine.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateProvider(ctx, p)
}

func (s *Store) DeleteProvider(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteProvider(ctx, id)
}

func (s *Store) ListOrders(ctx context.Context) ([]engine.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListOrders(ctx)
}

func (s *Store) GetOrder(ctx context.Context, id string) (engine.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetOrder(ctx, id)
}

func (s *Store) InsertOrder(ctx context.Context, o engine.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().InsertOrder(ctx, o)
}

func (s *Store) UpdateOrder(ctx context.Context, o engine.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateOrder(ctx, o)
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteOrder(ctx, id)
}

func (s *Store) ListTransactions(ctx context.Context) ([]engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListTransactions(ctx)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetTransaction(ctx, id)
}

func (s *Store) InsertTransaction(ctx context.Context, t engine.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().InsertTransaction(ctx, t)
}

func (s *Store) UpdateTransaction(ctx context.Context, t engine.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateTransaction(ctx, t)
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteTransaction(ctx, id)
}

func (s *Store) TransactionsByReference(ctx context.Context, refID string) ([]engine.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().TransactionsByReference(ctx, refID)
}

// =============================================================================
// QUERIES - shared by the pooled DB and *sql.Tx
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

type scanner interface {
	Scan(dest ...any) error
}

// --- products ---------------------------------------------------------------

const productColumns = `id, name, base_price, stock`

func scanProduct(row scanner) (engine.Product, error) {
	var (
		p     engine.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Stock); err != nil {
		return p, err
	}
	p.BasePrice = parseDecimal(price)
	return p, nil
}

func (q *queries) ListProducts(ctx context.Context) ([]engine.Product, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+productColumns+" FROM products ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []engine.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *queries) GetProduct(ctx context.Context, id string) (engine.Product, error) {
	p, err := scanProduct(q.db.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w: %s", engine.ErrProductNotFound, id)
	}
	if err != nil {
		return p, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (q *queries) InsertProduct(ctx context.Context, p engine.Product) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO products ("+productColumns+") VALUES (?, ?, ?, ?)",
		p.ID, p.Name, p.BasePrice.String(), p.Stock)
	return insertError("product", p.ID, err)
}

func (q *queries) UpdateProduct(ctx context.Context, p engine.Product) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE products SET name = ?, base_price = ? WHERE id = ?",
		p.Name, p.BasePrice.String(), p.ID)
	return affected(res, err, engine.ErrProductNotFound, p.ID)
}

func (q *queries) DeleteProduct(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	return affected(res, err, engine.ErrProductNotFound, id)
}

func (q *queries) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var stock int
	err := q.db.QueryRowContext(ctx,
		"UPDATE products SET stock = stock + ? WHERE id = ? RETURNING stock",
		delta, id,
	).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", engine.ErrProductNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust stock: %w", err)
	}
	return stock, nil
}

// --- customers --------------------------------------------------------------

const customerColumns = `id, name, type, address, brick, default_discount`

func scanCustomer(row scanner) (engine.Customer, error) {
	var (
		c        engine.Customer
		discount string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Type, &c.Address, &c.Brick, &discount); err != nil {
		return c, err
	}
	c.DefaultDiscount = parseDecimal(discount)
	return c, nil
}

func (q *queries) ListCustomers(ctx context.Context) ([]engine.Customer, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+customerColumns+" FROM customers ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var out []engine.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *queries) GetCustomer(ctx context.Context, id string) (engine.Customer, error) {
	c, err := scanCustomer(q.db.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("%w: %s", engine.ErrCustomerNotFound, id)
	}
	if err != nil {
		return c, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

func (q *queries) InsertCustomer(ctx context.Context, c engine.Customer) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO customers ("+customerColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		c.ID, c.Name, c.Type, c.Address, c.Brick, c.DefaultDiscount.String())
	return insertError("customer", c.ID, err)
}

func (q *queries) UpdateCustomer(ctx context.Context, c engine.Customer) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE customers SET name = ?, type = ?, address = ?, brick = ?, default_discount = ? WHERE id = ?",
		c.Name, c.Type, c.Address, c.Brick, c.DefaultDiscount.String(), c.ID)
	return affected(res, err, engine.ErrCustomerNotFound, c.ID)
}

func (q *queries) DeleteCustomer(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	return affected(res, err, engine.ErrCustomerNotFound, id)
}

// --- providers --------------------------------------------------------------

const providerColumns = `id, name, phone, notes`

func scanProvider(row scanner) (engine.Provider, error) {
	var p engine.Provider
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Notes)
	return p, err
}

func (q *queries) ListProviders(ctx context.Context) ([]engine.Provider, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+providerColumns+" FROM providers ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	var out []engine.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *queries) GetProvider(ctx context.Context, id string) (engine.Provider, error) {
	p, err := scanProvider(q.db.QueryRowContext(ctx,
		"SELECT "+providerColumns+" FROM providers WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w: %s", engine.ErrProviderNotFound, id)
	}
	if err != nil {
		return p, fmt.Errorf("failed to get provider: %w", err)
	}
	return p, nil
}

func (q *queries) InsertProvider(ctx context.Context, p engine.Provider) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO providers ("+providerColumns+") VALUES (?, ?, ?, ?)",
		p.ID, p.Name, p.Phone, p.Notes)
	return insertError("provider", p.ID, err)
}

func (q *queries) UpdateProvider(ctx context.Context, p engine.Provider) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE providers SET name = ?, phone = ?, notes = ? WHERE id = ?",
		p.Name, p.Phone, p.Notes, p.ID)
	return affected(res, err, engine.ErrProviderNotFound, p.ID)
}

func (q *queries) DeleteProvider(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM providers WHERE id = ?", id)
	return affected(res, err, engine.ErrProviderNotFound, id)
}

// --- orders -----------------------------------------------------------------

const orderColumns = `id, customer_id, customer_name, date, items_json, total_amount,
	paid_amount, status, is_draft, is_return, notes`

// itemRow is the JSON shape of an order line inside items_json.
type itemRow struct {
	ProductID       string          `json:"productId"`
	ProductName     string          `json:"productName"`
	Quantity        int             `json:"quantity"`
	BonusQuantity   int             `json:"bonusQuantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	Discount        decimal.Decimal `json:"discount"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Condition       string          `json:"condition,omitempty"`
	PaidQuantity    int             `json:"paidQuantity"`
}

func encodeItems(items []engine.OrderItem) (string, error) {
	rows := make([]itemRow, len(items))
	for i, it := range items {
		rows[i] = itemRow{
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			BonusQuantity:   it.BonusQuantity,
			UnitPrice:       it.UnitPrice,
			Discount:        it.Discount,
			DiscountPercent: it.DiscountPercent,
			Subtotal:        it.Subtotal,
			Condition:       string(it.Condition),
			PaidQuantity:    it.PaidQuantity,
		}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("failed to encode order items: %w", err)
	}
	return string(b), nil
}

func decodeItems(s string) ([]engine.OrderItem, error) {
	var rows []itemRow
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	items := make([]engine.OrderItem, len(rows))
	for i, r := range rows {
		items[i] = engine.OrderItem{
			ProductID:       r.ProductID,
			ProductName:     r.ProductName,
			Quantity:        r.Quantity,
			BonusQuantity:   r.BonusQuantity,
			UnitPrice:       r.UnitPrice,
			Discount:        r.Discount,
			DiscountPercent: r.DiscountPercent,
			Subtotal:        r.Subtotal,
			Condition:       engine.ItemCondition(r.Condition),
			PaidQuantity:    r.PaidQuantity,
		}
	}
	return items, nil
}

func scanOrder(row scanner) (engine.Order, error) {
	var (
		o               engine.Order
		date, itemsJSON string
		total, paid     string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &date, &itemsJSON,
		&total, &paid, &o.Status, &o.IsDraft, &o.IsReturn, &o.Notes)
	if err != nil {
		return o, err
	}
	o.Date = parseTime(date)
	o.TotalAmount = parseDecimal(total)
	o.PaidAmount = parseDecimal(paid)
	o.Items, err = decodeItems(itemsJSON)
	return o, err
}

func (q *queries) ListOrders(ctx context.Context) ([]engine.Order, error) {
	rows, err := q.db.QueryContext(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY date, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []engine.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (q *queries) GetOrder(ctx context.Context, id string) (engine.Order, error) {
	o, err := scanOrder(q.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return o, fmt.Errorf("%w: %s", engine.ErrOrderNotFound, id)
	}
	if err != nil {
		return o, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (q *queries) InsertOrder(ctx context.Context, o engine.Order) error {
	items, err := encodeItems(o.Items)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		"INSERT INTO orders ("+orderColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		o.ID, o.CustomerID, o.CustomerName, formatTime(o.Date), items,
		o.TotalAmount.String(), o.PaidAmount.String(), o.Status, o.IsDraft, o.IsReturn, o.Notes)
	return insertError("order", o.ID, err)
}

func (q *queries) UpdateOrder(ctx context.Context, o engine.Order) error {
	items, err := encodeItems(o.Items)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE orders SET customer_id = ?, customer_name = ?, date = ?, items_json = ?,
			total_amount = ?, paid_amount = ?, status = ?, is_draft = ?, is_return = ?, notes = ?
		WHERE id = ?`,
		o.CustomerID, o.CustomerName, formatTime(o.Date), items,
		o.TotalAmount.String(), o.PaidAmount.String(), o.Status, o.IsDraft, o.IsReturn, o.Notes,
		o.ID)
	return affected(res, err, engine.ErrOrderNotFound, o.ID)
}

func (q *queries) DeleteOrder(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", id)
	return affected(res, err, engine.ErrOrderNotFound, id)
}

// --- transactions -----------------------------------------------------------

const transactionColumns = `id, type, amount, date, reference_id, description,
	payment_method, provider_id, provider_name, metadata_json`

func scanTransaction(row scanner) (engine.Transaction, error) {
	var (
		t            engine.Transaction
		amount, date string
		metadataJSON sql.NullString
	)
	err := row.Scan(&t.ID, &t.Type, &amount, &date, &t.ReferenceID, &t.Description,
		&t.PaymentMethod, &t.ProviderID, &t.ProviderName, &metadataJSON)
	if err != nil {
		return t, err
	}
	t.Amount = parseDecimal(amount)
	t.Date = parseTime(date)

	// NULL metadata marks a record written before structured metadata.
	if metadataJSON.Valid && metadataJSON.String != "" {
		t.Metadata = &engine.TransactionMetadata{}
		if err := json.Unmarshal([]byte(metadataJSON.String), t.Metadata); err != nil {
			return t, fmt.Errorf("failed to decode transaction metadata: %w", err)
		}
	}
	return t, nil
}

func encodeMetadata(m *engine.TransactionMetadata) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode transaction metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func (q *queries) queryTransactions(ctx context.Context, query string, args ...any) ([]engine.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []engine.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (q *queries) ListTransactions(ctx context.Context) ([]engine.Transaction, error) {
	return q.queryTransactions(ctx, "SELECT "+transactionColumns+" FROM transactions ORDER BY date, id")
}

func (q *queries) TransactionsByReference(ctx context.Context, refID string) ([]engine.Transaction, error) {
	return q.queryTransactions(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE reference_id = ? ORDER BY date, id", refID)
}

func (q *queries) GetTransaction(ctx context.Context, id string) (engine.Transaction, error) {
	t, err := scanTransaction(q.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("%w: %s", engine.ErrTransactionNotFound, id)
	}
	if err != nil {
		return t, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

func (q *queries) InsertTransaction(ctx context.Context, t engine.Transaction) error {
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.Type, t.Amount.String(), formatTime(t.Date), t.ReferenceID, t.Description,
		t.PaymentMethod, t.ProviderID, t.ProviderName, meta)
	return insertError("transaction", t.ID, err)
}

func (q *queries) UpdateTransaction(ctx context.Context, t engine.Transaction) error {
	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions SET type = ?, amount = ?, date = ?, reference_id = ?, description = ?,
			payment_method = ?, provider_id = ?, provider_name = ?, metadata_json = ?
		WHERE id = ?`,
		t.Type, t.Amount.String(), formatTime(t.Date), t.ReferenceID, t.Description,
		t.PaymentMethod, t.ProviderID, t.ProviderName, meta, t.ID)
	return affected(res, err, engine.ErrTransactionNotFound, t.ID)
}

func (q *queries) DeleteTransaction(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	return affected(res, err, engine.ErrTransactionNotFound, id)
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// timeLayout is fixed width so ORDER BY date sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// affected maps a write that touched no row to the not-found sentinel.
func affected(res sql.Result, err error, notFound error, id string) error {
	if err != nil {
		return fmt.Errorf("failed to write record %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}

func insertError(kind, id string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%w: %s %s", engine.ErrAlreadyExists, kind, id)
	}
	return fmt.Errorf("failed to insert %s: %w", kind, err)
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}
