// Package storetest holds the behavior every engine.TxRepository must share.
// Backends call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/repledger/engine"
)

// Run executes the conformance suite. newRepo must return an empty store.
func Run(t *testing.T, newRepo func(t *testing.T) engine.TxRepository) {
	tests := []struct {
		name string
		fn   func(t *testing.T, repo engine.TxRepository)
	}{
		{"ProductCRUD", testProductCRUD},
		{"AdjustStock", testAdjustStock},
		{"AdjustStockConcurrent", testAdjustStockConcurrent},
		{"CustomerAndProviderCRUD", testCustomerAndProviderCRUD},
		{"OrderRoundTrip", testOrderRoundTrip},
		{"TransactionRoundTrip", testTransactionRoundTrip},
		{"TransactionsByReference", testTransactionsByReference},
		{"ListOrdering", testListOrdering},
		{"WithTxRollback", testWithTxRollback},
		{"WithTxCommit", testWithTxCommit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newRepo(t))
		})
	}
}

var day = time.Date(2025, time.June, 2, 8, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want decimal.Decimal, got decimal.Decimal) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

func testProductCRUD(t *testing.T, repo engine.TxRepository) {
	ctx := context.Background()
	p := engine.Product{ID: "p1", Name: "Panadol Extra", BasePrice: dec("2.50"), Stock: 12}

	require.NoError(t, repo.InsertProduct(ctx, p))
	assert.ErrorIs(t, repo.InsertProduct(ctx, p), engine.ErrAlreadyExists)

	got, err := repo.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Panadol Extra", got.Name)
	assert.Equal(t, 12, got.Stock)
	assertDecimal(t, p.BasePrice, got.BasePrice)

	// A sale lands between the caller's read and its catalog write
	_, err = repo.AdjustStock(ctx, "p1", -5)
	require.NoError(t, err)

	p.Name = "Panadol Extra 24s"
	p.Stock = 999
	require.NoError(t, repo.UpdateProduct(ctx, p))
	got, err = repo.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Panadol Extra 24s", got.Name)
	assert.Equal(t, 7, got.Stock, "catalog edits never write stock")

	require.NoError(t, repo.DeleteProduct(ctx, "p1"))
	_, err = repo.GetProduct(ctx, "p1")
	assert.ErrorIs(t, err, engine.ErrProductNotFound)
	assert.ErrorIs(t, repo.DeleteProduct(ctx, "p1"), engine.ErrProductNotFound)
	assert.ErrorIs(t, repo.UpdateProduct(ctx, p), engine.ErrProductNotFound)
}

func testAdjustStock(t *testing.T, repo engine.TxRepository) {
	ctx := context.Background()
	require.NoError(t, repo.InsertProduct(ctx, engine.Product{ID: "p1", Name: "A", Stock: 5}))

	stock, err := repo.AdjustStock(ctx, "p1", -8)
	require.NoError(t, err)
	assert.Equal(t, -3, stock)

	stock, err = repo.AdjustStock(ctx, "p1", 10)
	require.NoError(t, err)
	assert.Equal(t, 7, stock)

	_, err = repo.AdjustStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, engine.ErrProductNotFound)
}

func testAdjustStockConcurrent(t *testing.T, repo engine.TxRepository) {
	ctx := context.Background()
	require.NoError(t, repo.InsertProduct(ctx, engine.Product{ID: "p1", Name: "A", Stock: 0}))

	const workers, each = 10, 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(delta int) {
			defer wg.Done()
			for j := 0; j < each; j++ {
				_, err := repo.AdjustStock(ctx, "p1", delta)
				assert.NoError(t, err)
			}
		}(i%2*2 - 1) // alternating -1, +1
	}
	wg.Wait()

	got, err := repo.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func testCustomerAndProviderCRUD(t *testing.T, repo engine.TxRepository) {
	ctx := context.Background()

	c := engine.Customer{
		ID: "c1", Name: "Green Cross", Type: engine.CustomerTypePharmacy,
		Address: "12 Main St", Brick: "North-3", DefaultDiscount: dec("7.5"),
	}
	require.NoError(t, repo.InsertCustomer(ctx, c))
	gotC, err := repo.GetCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, engine.CustomerTypePharmacy, gotC.Type)
	assert.Equal(t, "North-3", gotC.Brick)
	assertDecimal(t, c.DefaultDiscount, gotC.DefaultDiscount)

	c.Type = engine.CustomerTypeStore
	require.NoError(t, repo.UpdateCustomer(ctx, c))
	customers, err := repo.ListCustomers(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, engine.CustomerTypeStore, customers[0].Type)
	require.NoError(t, repo.DeleteCustomer(ctx, "c1"))
	_, err = repo.GetCustomer(ctx, "c1")
	assert.ErrorIs(t, err, engine.ErrCustomerNotFound)

	p := engine.Provider{ID: "v1", Name: "Metro Pharma Supply", Phone: "555-0101"}
	require.NoError(t, repo.InsertProvider(ctx, p))
	p.Notes = "net 30"
	require.NoError(t, repo.UpdateProvider(ctx, p))
	gotP, err := repo.GetProvider(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, p, gotP)
	require.NoError(t, repo.DeleteProvider(ctx, "v1"))
	assert.ErrorIs(t, repo.DeleteProvider(ctx, "v1"), engine.ErrProviderNotFound)
}

func testOrderRoundTrip(t *testing.T, repo engine.TxRepository) {
	ctx := context.Background()
	o := engine.Order{
		ID: "o1", CustomerID: "c1", CustomerName: "Green Cross", Date: day,
		Items: []engine.OrderItem{{
			ProductID: "p1", ProductName: "Panadol Extra", Quantity: 4, BonusQuantity: 1,
			UnitPrice: dec("2.5"), Discount: dec("1"), DiscountPercent: dec("10"), Subtotal: dec("9"),
			Condition: engine.ConditionExpired, PaidQuantity: 2,
		}},
		TotalAmount: dec("-9"), PaidAmount: dec("3.25"),
		Status: engine.StatusReturned, IsReturn: true, Notes: "damaged box",
	}
	require.NoError(t, repo.InsertOrder(ctx, o))

	got, err := repo.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, o.Date, got.Date)
	assert.Equal(t, o.Status, got.Status)
	assert.True(t, got.IsReturn)
	assert.False(t, got.IsDraft)
	assert.Equal(t, "damaged box", got.Notes)
	assertDecimal(t, o.TotalAmount, got.TotalAmount)
	assertDecimal(t, o.PaidAmount, got.PaidAmount)
	require.Len(t, got.Items, 1)
	it := got.Items[0]
	assert.Equal(t, engine.ConditionExpired, it.Condition)
	assert.Equal(t, 2, it.PaidQuantity)
	assert.Equal(t, 5, it.EffectiveQuantity())
	assertDecimal(t, dec("9"), it.Subtotal)

	// Returned values are copies
	got.Items[0].Quantity = 99
	again, err := repo.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, 4, again.Items[0].Quantity)

	assert.ErrorIs(t, repo.UpdateOrder(ctx, engine.Order{ID: "nope", Date: day}), engine.ErrOrderNotFound)
}

func testTransactionRoundTrip(t *testing.T, repo engine.TxRepository) {
	ctx := context.Background()
	tx := engine.Transaction{
		ID: "t1", Type: engine.TxExpense, Amount: dec("48.00"), Date: day,
		ReferenceID: "p1", Description: "Stock purchase", PaymentMethod: engine.MethodBankTransfer,
		ProviderID: "v1", ProviderName: "Metro Pharma Supply",
		Metadata: &engine.TransactionMetadata{Quantity: engine.IntPtr(24)},
	}
	require.NoError(t, repo.InsertTransaction(ctx, tx))

	got, err := repo.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, engine.MethodBankTransfer, got.PaymentMethod)
	assert.Equal(t, "Metro Pharma Supply", got.ProviderName)
	qty, ok := got.StockQuantity()
	assert.True(t, ok)
	assert.Equal(t, 24, qty)

	// Metadata nil survives as nil
	legacy := engine.Transaction{ID: "t2", Type: engine.TxDepositToHQ, Amount: dec("5"), Date: day}
	require.NoError(t, repo.InsertTransaction(ctx, legacy))
	got, err = repo.GetTransaction(ctx, "t2")
	require.NoError(t, err)
	assert.Nil(t, got.Metadata)

	require.NoError(t, repo.DeleteTransaction(ctx, "t2"))
	_, err = repo.GetTransaction(ctx, "t2")
	assert.ErrorIs(t, err, engine.ErrTransactionNotFound)
}

func testTransactionsByReference(t *testing.T, repo engine.TxRepository) {
	ctx := context.Background()
	for i, ref := range []string{"o1", "o2", "o1", ""} {
		require.NoError(t, repo.InsertTransaction(ctx, engine.Transaction{
			ID:          string(rune('a' + i)),
			Type:        engine.TxPaymentReceived,
			Amount:      dec("1"),
			Date:        day.Add(time.Duration(i) * time.Hour),
			ReferenceID: ref,
		}))
	}

	txs, err := repo.TransactionsByReference(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "a", txs[0].ID)
	assert.Equal(t, "c", txs[1].ID)

	none, err := repo.TransactionsByReference(ctx, "o9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testListOrdering(t *testing.T, repo engine.TxRepository) {
	ctx := context.Background()
	for _, p := range []engine.Product{
		{ID: "3", Name: "Zinc"}, {ID: "1", Name: "Augmentin"}, {ID: "2", Name: "Augmentin"},
	} {
		require.NoError(t, repo.InsertProduct(ctx, p))
	}
	products, err := repo.ListProducts(ctx)
	require.NoError(t, err)
	ids := []string{products[0].ID, products[1].ID, products[2].ID}
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	for _, o := range []engine.Order{
		{ID: "late", Date: day.Add(48 * time.Hour), Status: engine.StatusPending, Items: []engine.OrderItem{}},
		{ID: "early", Date: day, Status: engine.StatusPending, Items: []engine.OrderItem{}},
	} {
		require.NoError(t, repo.InsertOrder(ctx, o))
	}
	orders, err := repo.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "early", orders[0].ID)
}

var errAbort = errors.New("abort")

func testWithTxRollback(t *testing.T, repo engine.TxRepository) {
	ctx := context.Background()
	require.NoError(t, repo.InsertProduct(ctx, engine.Product{ID: "p1", Name: "A", Stock: 10}))

	err := repo.WithTx(ctx, func(r engine.Repository) error {
		if _, err := r.AdjustStock(ctx, "p1", -4); err != nil {
			return err
		}
		if err := r.InsertOrder(ctx, engine.Order{ID: "o1", Date: day, Status: engine.StatusPending}); err != nil {
			return err
		}
		// Writes are visible inside the transaction
		p, err := r.GetProduct(ctx, "p1")
		if err != nil {
			return err
		}
		assert.Equal(t, 6, p.Stock)
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	p, err := repo.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
	_, err = repo.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, engine.ErrOrderNotFound)
}

func testWithTxCommit(t *testing.T, repo engine.TxRepository) {
	ctx := context.Background()
	require.NoError(t, repo.InsertProduct(ctx, engine.Product{ID: "p1", Name: "A", Stock: 10}))

	err := repo.WithTx(ctx, func(r engine.Repository) error {
		_, err := r.AdjustStock(ctx, "p1", 5)
		return err
	})
	require.NoError(t, err)

	p, err := repo.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 15, p.Stock)
}
