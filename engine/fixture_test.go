package engine_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/repledger/engine"
	"github.com/warp/repledger/engine/store"
	"github.com/warp/repledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testDate = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx    context.Context
	repo   engine.TxRepository
	eng    *engine.Engine
	events *recordingObserver
}

// forEachBackend runs fn once against the memory store and once against
// an in-memory SQLite database.
func forEachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, newFixture(t, store.NewMemory()))
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, newFixture(t, s))
	})
}

func newFixture(t *testing.T, repo engine.TxRepository) *fixture {
	var seq atomic.Int64
	events := &recordingObserver{}
	f := &fixture{
		ctx:    context.Background(),
		repo:   repo,
		events: events,
		eng: engine.New(repo,
			engine.WithObserver(events),
			engine.WithClock(func() time.Time { return testDate }),
			engine.WithIDGenerator(func() string {
				return fmt.Sprintf("id-%d", seq.Add(1))
			}),
		),
	}

	require.NoError(t, repo.InsertProduct(f.ctx, panadol))
	require.NoError(t, repo.InsertProduct(f.ctx, augmentin))
	return f
}

var (
	panadol   = engine.Product{ID: "p-panadol", Name: "Panadol Extra", BasePrice: dec("2.50"), Stock: 100}
	augmentin = engine.Product{ID: "p-augmentin", Name: "Augmentin 1g", BasePrice: dec("10"), Stock: 50}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.repo.GetProduct(f.ctx, productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) order(t *testing.T, id string) engine.Order {
	t.Helper()
	o, err := f.repo.GetOrder(f.ctx, id)
	require.NoError(t, err)
	return o
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

// sale builds a priced sale order from (product, quantity, bonus) lines.
func sale(lines ...line) engine.Order {
	o := engine.Order{CustomerID: "c-1", CustomerName: "Green Cross Pharmacy"}
	for _, l := range lines {
		o.Items = append(o.Items, engine.NewOrderItem(l.product, l.qty, l.bonus, decimal.Zero))
	}
	return o.WithTotals()
}

// returnOrder builds a return with the given condition on every line.
func returnOrder(cond engine.ItemCondition, lines ...line) engine.Order {
	o := sale(lines...)
	o.IsReturn = true
	for i := range o.Items {
		o.Items[i].Condition = cond
	}
	return o.WithTotals()
}

type line struct {
	product    engine.Product
	qty, bonus int
}

// =============================================================================
// RECORDING OBSERVER
// =============================================================================

type recordingObserver struct {
	mu       sync.Mutex
	missing  []engine.MissingProductEvent
	adjusted int
}

func (r *recordingObserver) MissingProduct(_ context.Context, ev engine.MissingProductEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing = append(r.missing, ev)
}

func (r *recordingObserver) StockAdjusted(context.Context, string, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adjusted++
}

func (r *recordingObserver) missingEvents() []engine.MissingProductEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.MissingProductEvent(nil), r.missing...)
}
