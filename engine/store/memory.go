// Package store provides Repository implementations.
package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/warp/repledger/engine"
)

// =============================================================================
// TABLE - id-keyed arena for one record type
// =============================================================================

type table[T any] struct {
	rows     map[string]T
	copyFn   func(T) T
	notFound error
}

func newTable[T any](notFound error, copyFn func(T) T) table[T] {
	if copyFn == nil {
		copyFn = func(v T) T { return v }
	}
	return table[T]{rows: make(map[string]T), copyFn: copyFn, notFound: notFound}
}

func (t table[T]) get(id string) (T, error) {
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", t.notFound, id)
	}
	return t.copyFn(v), nil
}

func (t table[T]) insert(id string, v T) error {
	if _, ok := t.rows[id]; ok {
		return fmt.Errorf("%w: %s", engine.ErrAlreadyExists, id)
	}
	t.rows[id] = t.copyFn(v)
	return nil
}

func (t table[T]) update(id string, v T) error {
	if _, ok := t.rows[id]; !ok {
		return fmt.Errorf("%w: %s", t.notFound, id)
	}
	t.rows[id] = t.copyFn(v)
	return nil
}

func (t table[T]) remove(id string) error {
	if _, ok := t.rows[id]; !ok {
		return fmt.Errorf("%w: %s", t.notFound, id)
	}
	delete(t.rows, id)
	return nil
}

func (t table[T]) list(compare func(a, b T) int) []T {
	out := make([]T, 0, len(t.rows))
	for _, v := range t.rows {
		out = append(out, t.copyFn(v))
	}
	slices.SortFunc(out, compare)
	return out
}

// snapshot copies the map. Stored values are already private copies, so a
// shallow copy of the map is enough to restore from.
func (t table[T]) snapshot() table[T] {
	rows := make(map[string]T, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	return table[T]{rows: rows, copyFn: t.copyFn, notFound: t.notFound}
}

// =============================================================================
// ARENA - unlocked Repository over the tables
// =============================================================================

type arena struct {
	products     table[engine.Product]
	customers    table[engine.Customer]
	providers    table[engine.Provider]
	orders       table[engine.Order]
	transactions table[engine.Transaction]
}

func newArena() *arena {
	return &arena{
		products:     newTable[engine.Product](engine.ErrProductNotFound, nil),
		customers:    newTable[engine.Customer](engine.ErrCustomerNotFound, nil),
		providers:    newTable[engine.Provider](engine.ErrProviderNotFound, nil),
		orders:       newTable(engine.ErrOrderNotFound, engine.Order.Clone),
		transactions: newTable(engine.ErrTransactionNotFound, engine.Transaction.Clone),
	}
}

func (a *arena) snapshot() *arena {
	return &arena{
		products:     a.products.snapshot(),
		customers:    a.customers.snapshot(),
		providers:    a.providers.snapshot(),
		orders:       a.orders.snapshot(),
		transactions: a.transactions.snapshot(),
	}
}

func byName[T any](name, id func(T) string) func(a, b T) int {
	return func(a, b T) int {
		if c := cmp.Compare(name(a), name(b)); c != 0 {
			return c
		}
		return cmp.Compare(id(a), id(b))
	}
}

var (
	productOrder = byName(
		func(p engine.Product) string { return p.Name },
		func(p engine.Product) string { return p.ID })
	customerOrder = byName(
		func(c engine.Customer) string { return c.Name },
		func(c engine.Customer) string { return c.ID })
	providerOrder = byName(
		func(p engine.Provider) string { return p.Name },
		func(p engine.Provider) string { return p.ID })
)

func orderOrder(a, b engine.Order) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func transactionOrder(a, b engine.Transaction) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (a *arena) ListProducts(context.Context) ([]engine.Product, error) {
	return a.products.list(productOrder), nil
}

func (a *arena) GetProduct(_ context.Context, id string) (engine.Product, error) {
	return a.products.get(id)
}

func (a *arena) InsertProduct(_ context.Context, p engine.Product) error {
	return a.products.insert(p.ID, p)
}

func (a *arena) UpdateProduct(_ context.Context, p engine.Product) error {
	cur, err := a.products.get(p.ID)
	if err != nil {
		return err
	}
	p.Stock = cur.Stock
	return a.products.update(p.ID, p)
}

func (a *arena) DeleteProduct(_ context.Context, id string) error {
	return a.products.remove(id)
}

func (a *arena) AdjustStock(_ context.Context, id string, delta int) (int, error) {
	p, err := a.products.get(id)
	if err != nil {
		return 0, err
	}
	p.Stock += delta
	a.products.rows[id] = p
	return p.Stock, nil
}

func (a *arena) ListCustomers(context.Context) ([]engine.Customer, error) {
	return a.customers.list(customerOrder), nil
}

func (a *arena) GetCustomer(_ context.Context, id string) (engine.Customer, error) {
	return a.customers.get(id)
}

func (a *arena) InsertCustomer(_ context.Context, c engine.Customer) error {
	return a.customers.insert(c.ID, c)
}

func (a *arena) UpdateCustomer(_ context.Context, c engine.Customer) error {
	return a.customers.update(c.ID, c)
}

func (a *arena) DeleteCustomer(_ context.Context, id string) error {
	return a.customers.remove(id)
}

func (a *arena) ListProviders(context.Context) ([]engine.Provider, error) {
	return a.providers.list(providerOrder), nil
}

func (a *arena) GetProvider(_ context.Context, id string) (engine.Provider, error) {
	return a.providers.get(id)
}

func (a *arena) InsertProvider(_ context.Context, p engine.Provider) error {
	return a.providers.insert(p.ID, p)
}

func (a *arena) UpdateProvider(_ context.Context, p engine.Provider) error {
	return a.providers.update(p.ID, p)
}

func (a *arena) DeleteProvider(_ context.Context, id string) error {
	return a.providers.remove(id)
}

func (a *arena) ListOrders(context.Context) ([]engine.Order, error) {
	return a.orders.list(orderOrder), nil
}

func (a *arena) GetOrder(_ context.Context, id string) (engine.Order, error) {
	return a.orders.get(id)
}

func (a *arena) InsertOrder(_ context.Context, o engine.Order) error {
	return a.orders.insert(o.ID, o)
}

func (a *arena) UpdateOrder(_ context.Context, o engine.Order) error {
	return a.orders.update(o.ID, o)
}

func (a *arena) DeleteOrder(_ context.Context, id string) error {
	return a.orders.remove(id)
}

func (a *arena) ListTransactions(context.Context) ([]engine.Transaction, error) {
	return a.transactions.list(transactionOrder), nil
}

func (a *arena) GetTransaction(_ context.Context, id string) (engine.Transaction, error) {
	return a.transactions.get(id)
}

func (a *arena) InsertTransaction(_ context.Context, t engine.Transaction) error {
	return a.transactions.insert(t.ID, t)
}

func (a *arena) UpdateTransaction(_ context.Context, t engine.Transaction) error {
	return a.transactions.update(t.ID, t)
}

func (a *arena) DeleteTransaction(_ context.Context, id string) error {
	return a.transactions.remove(id)
}

func (a *arena) TransactionsByReference(_ context.Context, refID string) ([]engine.Transaction, error) {
	var out []engine.Transaction
	for _, t := range a.transactions.list(transactionOrder) {
		if t.ReferenceID == refID {
			out = append(out, t)
		}
	}
	return out, nil
}

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is a TxRepository held in process memory. Every call takes the
// store mutex, so stock adjustments are atomic and WithTx serializes whole
// engine operations.
type Memory struct {
	mu    sync.RWMutex
	arena *arena
}

var _ engine.TxRepository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{arena: newArena()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(engine.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.arena.snapshot()
	if err := fn(m.arena); err != nil {
		m.arena = snapshot
		return err
	}
	return nil
}

func (m *Memory) read(fn func(a *arena)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.arena)
}

func (m *Memory) write(fn func(a *arena) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.arena)
}

func (m *Memory) ListProducts(ctx context.Context) (out []engine.Product, err error) {
	m.read(func(a *arena) { out, err = a.ListProducts(ctx) })
	return
}

func (m *Memory) GetProduct(ctx context.Context, id string) (out engine.Product, err error) {
	m.read(func(a *arena) { out, err = a.GetProduct(ctx, id) })
	return
}

func (m *Memory) InsertProduct(ctx context.Context, p engine.Product) error {
	return m.write(func(a *arena) error { return a.InsertProduct(ctx, p) })
}

func (m *Memory) UpdateProduct(ctx context.Context, p engine.Product) error {
	return m.write(func(a *arena) error { return a.UpdateProduct(ctx, p) })
}

func (m *Memory) DeleteProduct(ctx context.Context, id string) error {
	return m.write(func(a *arena) error { return a.DeleteProduct(ctx, id) })
}

func (m *Memory) AdjustStock(ctx context.Context, id string, delta int) (stock int, err error) {
	err = m.write(func(a *arena) error {
		stock, err = a.AdjustStock(ctx, id, delta)
		return err
	})
	return
}

func (m *Memory) ListCustomers(ctx context.Context) (out []engine.Customer, err error) {
	m.read(func(a *arena) { out, err = a.ListCustomers(ctx) })
	return
}

func (m *Memory) GetCustomer(ctx context.Context, id string) (out engine.Customer, err error) {
	m.read(func(a *arena) { out, err = a.GetCustomer(ctx, id) })
	return
}

func (m *Memory) InsertCustomer(ctx context.Context, c engine.Customer) error {
	return m.write(func(a *arena) error { return a.InsertCustomer(ctx, c) })
}

func (m *Memory) UpdateCustomer(ctx context.Context, c engine.Customer) error {
	return m.write(func(a *arena) error { return a.UpdateCustomer(ctx, c) })
}

func (m *Memory) DeleteCustomer(ctx context.Context, id string) error {
	return m.write(func(a *arena) error { return a.DeleteCustomer(ctx, id) })
}

func (m *Memory) ListProviders(ctx context.Context) (out []engine.Provider, err error) {
	m.read(func(a *arena) { out, err = a.ListProviders(ctx) })
	return
}

func (m *Memory) GetProvider(ctx context.Context, id string) (out engine.Provider, err error) {
	m.read(func(a *arena) { out, err = a.GetProvider(ctx, id) })
	return
}

func (m *Memory) InsertProvider(ctx context.Context, p engine.Provider) error {
	return m.write(func(a *arena) error { return a.InsertProvider(ctx, p) })
}

func (m *Memory) UpdateProvider(ctx context.Context, p engine.Provider) error {
	return m.write(func(a *arena) error { return a.UpdateProvider(ctx, p) })
}

func (m *Memory) DeleteProvider(ctx context.Context, id string) error {
	return m.write(func(a *arena) error { return a.DeleteProvider(ctx, id) })
}

func (m *Memory) ListOrders(ctx context.Context) (out []engine.Order, err error) {
	m.read(func(a *arena) { out, err = a.ListOrders(ctx) })
	return
}

func (m *Memory) GetOrder(ctx context.Context, id string) (out engine.Order, err error) {
	m.read(func(a *arena) { out, err = a.GetOrder(ctx, id) })
	return
}

func (m *Memory) InsertOrder(ctx context.Context, o engine.Order) error {
	return m.write(func(a *arena) error { return a.InsertOrder(ctx, o) })
}

func (m *Memory) UpdateOrder(ctx context.Context, o engine.Order) error {
	return m.write(func(a *arena) error { return a.UpdateOrder(ctx, o) })
}

func (m *Memory) DeleteOrder(ctx context.Context, id string) error {
	return m.write(func(a *arena) error { return a.DeleteOrder(ctx, id) })
}

func (m *Memory) ListTransactions(ctx context.Context) (out []engine.Transaction, err error) {
	m.read(func(a *arena) { out, err = a.ListTransactions(ctx) })
	return
}

func (m *Memory) GetTransaction(ctx context.Context, id string) (out engine.Transaction, err error) {
	m.read(func(a *arena) { out, err = a.GetTransaction(ctx, id) })
	return
}

func (m *Memory) InsertTransaction(ctx context.Context, t engine.Transaction) error {
	return m.write(func(a *arena) error { return a.InsertTransaction(ctx, t) })
}

func (m *Memory) UpdateTransaction(ctx context.Context, t engine.Transaction) error {
	return m.write(func(a *arena) error { return a.UpdateTransaction(ctx, t) })
}

func (m *Memory) DeleteTransaction(ctx context.Context, id string) error {
	return m.write(func(a *arena) error { return a.DeleteTransaction(ctx, id) })
}

func (m *Memory) TransactionsByReference(ctx context.Context, refID string) (out []engine.Transaction, err error) {
	m.read(func(a *arena) { out, err = a.TransactionsByReference(ctx, refID) })
	return
}
