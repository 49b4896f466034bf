/*
store.go - Persistence interface consumed by the engine

PURPOSE:
  Defines the boundary between reconciliation logic and the data store.
  The engine issues only keyed CRUD calls plus two extras: an atomic stock
  increment and a "transactions where referenceId = X" filter.

KEY INTERFACES:
  Repository:   CRUD for products, customers, providers, orders, transactions
  TxRepository: Repository plus WithTx for all-or-nothing multi-step writes

ATOMIC STOCK:
  AdjustStock must add the delta in a single step (no read-then-write) so
  deltas from concurrent orders commute. Both implementations also support
  WithTx, which the engine uses to wrap every multi-step operation.

NOT FOUND:
  Get*, Update*, Delete* and AdjustStock return the matching Err*NotFound
  sentinel (possibly wrapped) when the id does not exist.

IMPLEMENTATIONS:
  - engine/store/memory.go: In-memory arena keyed by id
  - store/sqlite/sqlite.go: SQLite via mattn/go-sqlite3

SEE ALSO:
  - errors.go: Not-found sentinels
*/
package engine

import "context"

// =============================================================================
// REPOSITORY
// =============================================================================

type ProductStore interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	InsertProduct(ctx context.Context, p Product) error

	// UpdateProduct writes the catalog fields only. p.Stock is ignored;
	// stock moves through AdjustStock alone.
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error

	// AdjustStock atomically adds delta to the product's stock and returns
	// the new count.
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}

type CustomerStore interface {
	ListCustomers(ctx context.Context) ([]Customer, error)
	GetCustomer(ctx context.Context, id string) (Customer, error)
	InsertCustomer(ctx context.Context, c Customer) error
	UpdateCustomer(ctx context.Context, c Customer) error
	DeleteCustomer(ctx context.Context, id string) error
}

type ProviderStore interface {
	ListProviders(ctx context.Context) ([]Provider, error)
	GetProvider(ctx context.Context, id string) (Provider, error)
	InsertProvider(ctx context.Context, p Provider) error
	UpdateProvider(ctx context.Context, p Provider) error
	DeleteProvider(ctx context.Context, id string) error
}

type OrderStore interface {
	ListOrders(ctx context.Context) ([]Order, error)
	GetOrder(ctx context.Context, id string) (Order, error)
	InsertOrder(ctx context.Context, o Order) error
	UpdateOrder(ctx context.Context, o Order) error
	DeleteOrder(ctx context.Context, id string) error
}

type TransactionStore interface {
	ListTransactions(ctx context.Context) ([]Transaction, error)
	GetTransaction(ctx context.Context, id string) (Transaction, error)
	InsertTransaction(ctx context.Context, t Transaction) error
	UpdateTransaction(ctx context.Context, t Transaction) error
	DeleteTransaction(ctx context.Context, id string) error

	// TransactionsByReference returns every transaction whose ReferenceID
	// equals refID.
	TransactionsByReference(ctx context.Context, refID string) ([]Transaction, error)
}

// Repository is the whole data store as seen by the engine.
type Repository interface {
	ProductStore
	CustomerStore
	ProviderStore
	OrderStore
	TransactionStore
}

// =============================================================================
// TRANSACTIONAL REPOSITORY
// =============================================================================

// TxRepository wraps Repository with transaction support.
type TxRepository interface {
	Repository

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the given Repository is
	// rolled back. If fn returns nil, the writes are committed.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// atomically runs fn inside WithTx when repo supports it. Without it, steps
// already applied stay applied when a later step fails.
func atomically(ctx context.Context, repo Repository, fn func(Repository) error) error {
	if tx, ok := repo.(TxRepository); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(repo)
}
