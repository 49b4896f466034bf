package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/repledger/engine"
)

// =============================================================================
// LIFECYCLE SCENARIOS
// =============================================================================

func TestOrderLifecycle_CreateUpdateDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		// GIVEN: Panadol stock = 100
		// WHEN: Sale of 10 + 2 bonus
		// THEN: Stock = 88
		o, err := f.eng.Orders.Create(f.ctx, sale(line{panadol, 10, 2}))
		require.NoError(t, err)
		assert.Equal(t, 88, f.stock(t, panadol.ID))
		assert.Equal(t, engine.StatusPending, o.Status)
		assert.Equal(t, testDate, o.Date)

		// WHEN: Line edited to 5 + 0
		// THEN: Old effect reversed (100), new applied (95)
		o, err = f.eng.Orders.Update(f.ctx, o.ID, sale(line{panadol, 5, 0}))
		require.NoError(t, err)
		assert.Equal(t, 95, f.stock(t, panadol.ID))
		assertDecimal(t, "12.50", f.order(t, o.ID).TotalAmount)

		// WHEN: Order deleted
		// THEN: Stock back to 100
		require.NoError(t, f.eng.Orders.Delete(f.ctx, o.ID))
		assert.Equal(t, 100, f.stock(t, panadol.ID))

		_, err = f.repo.GetOrder(f.ctx, o.ID)
		assert.ErrorIs(t, err, engine.ErrOrderNotFound)
	})
}

func TestOrderLifecycle_Return_GoodRestocks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o, err := f.eng.Orders.Create(f.ctx, returnOrder(engine.ConditionGood, line{panadol, 3, 0}))
		require.NoError(t, err)

		assert.Equal(t, 103, f.stock(t, panadol.ID))
		assert.Equal(t, engine.StatusReturned, o.Status)
		assertDecimal(t, "-7.50", o.TotalAmount)
	})
}

func TestOrderLifecycle_Return_ExpiredDoesNotRestock(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o, err := f.eng.Orders.Create(f.ctx, returnOrder(engine.ConditionExpired, line{panadol, 3, 0}))
		require.NoError(t, err)
		assert.Equal(t, 100, f.stock(t, panadol.ID))

		// Flipping the condition to GOOD restocks; deleting undoes it.
		_, err = f.eng.Orders.Update(f.ctx, o.ID, returnOrder(engine.ConditionGood, line{panadol, 3, 0}))
		require.NoError(t, err)
		assert.Equal(t, 103, f.stock(t, panadol.ID))

		require.NoError(t, f.eng.Orders.Delete(f.ctx, o.ID))
		assert.Equal(t, 100, f.stock(t, panadol.ID))
	})
}

func TestOrderLifecycle_ReturnWithoutCondition_DefaultsToGood(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o := sale(line{panadol, 2, 0})
		o.IsReturn = true

		created, err := f.eng.Orders.Create(f.ctx, o)
		require.NoError(t, err)
		assert.Equal(t, engine.ConditionGood, created.Items[0].Condition)
		assert.Equal(t, 102, f.stock(t, panadol.ID))
	})
}

// =============================================================================
// DRAFTS
// =============================================================================

func TestOrderLifecycle_Draft_NoStockUntilFinalized(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		draft := sale(line{panadol, 10, 0})
		draft.IsDraft = true

		o, err := f.eng.Orders.Create(f.ctx, draft)
		require.NoError(t, err)
		assert.Equal(t, engine.StatusDraft, o.Status)
		assert.Equal(t, 100, f.stock(t, panadol.ID))

		// Edits while still a draft never move stock
		draft = sale(line{panadol, 30, 5})
		draft.IsDraft = true
		_, err = f.eng.Orders.Update(f.ctx, o.ID, draft)
		require.NoError(t, err)
		assert.Equal(t, 100, f.stock(t, panadol.ID))

		// Finalizing applies the full effect once
		o, err = f.eng.Orders.Update(f.ctx, o.ID, sale(line{panadol, 30, 5}))
		require.NoError(t, err)
		assert.Equal(t, 65, f.stock(t, panadol.ID))
		assert.Equal(t, engine.StatusPending, o.Status)

		// Back to draft restores it
		draft = sale(line{panadol, 30, 5})
		draft.IsDraft = true
		_, err = f.eng.Orders.Update(f.ctx, o.ID, draft)
		require.NoError(t, err)
		assert.Equal(t, 100, f.stock(t, panadol.ID))

		// Deleting a draft moves nothing
		require.NoError(t, f.eng.Orders.Delete(f.ctx, o.ID))
		assert.Equal(t, 100, f.stock(t, panadol.ID))
	})
}

// =============================================================================
// TELESCOPING
// =============================================================================

func TestOrderUpdate_ManyEdits_NetEffectMatchesFinalState(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		// GIVEN: A sale edited many times, across products and draft states
		// THEN: Stock moved by exactly OrderEffect(final)
		o, err := f.eng.Orders.Create(f.ctx, sale(line{panadol, 1, 0}))
		require.NoError(t, err)

		edits := []engine.Order{
			sale(line{panadol, 7, 3}),
			sale(line{augmentin, 2, 0}),
			sale(line{panadol, 4, 0}, line{augmentin, 9, 1}),
			func() engine.Order { d := sale(line{panadol, 50, 0}); d.IsDraft = true; return d }(),
			sale(line{panadol, 0, 6}, line{panadol, 2, 0}),
			returnOrder(engine.ConditionGood, line{augmentin, 4, 0}),
			sale(line{panadol, 11, 1}, line{augmentin, 3, 2}),
		}

		var final engine.Order
		for _, next := range edits {
			final, err = f.eng.Orders.Update(f.ctx, o.ID, next)
			require.NoError(t, err)
		}

		effect := engine.OrderEffect(final)
		assert.Equal(t, panadol.Stock+effect[panadol.ID], f.stock(t, panadol.ID))
		assert.Equal(t, augmentin.Stock+effect[augmentin.ID], f.stock(t, augmentin.ID))
		assert.Equal(t, 88, f.stock(t, panadol.ID))
		assert.Equal(t, 45, f.stock(t, augmentin.ID))
	})
}

func TestOrderCreate_Concurrent_NoLostUpdates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		const workers = 20

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.eng.Orders.Create(f.ctx, sale(line{panadol, 2, 1}, line{augmentin, 1, 0}))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		assert.Equal(t, 100-workers*3, f.stock(t, panadol.ID))
		assert.Equal(t, 50-workers, f.stock(t, augmentin.ID))
	})
}

// =============================================================================
// PAYMENT-OWNED FIELDS AND DELETE CASCADE
// =============================================================================

func TestOrderUpdate_KeepsPaymentState(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o, err := f.eng.Orders.Create(f.ctx, sale(line{panadol, 10, 0}, line{augmentin, 2, 0}))
		require.NoError(t, err)

		_, err = f.eng.Transactions.Record(f.ctx, engine.Transaction{
			Type:        engine.TxPaymentReceived,
			Amount:      dec("20"),
			ReferenceID: o.ID,
			Metadata: &engine.TransactionMetadata{
				PaidItems: []engine.PaidItem{{ProductID: panadol.ID, Quantity: 4}},
			},
		})
		require.NoError(t, err)

		// Caller resubmits without payment fields
		edited := sale(line{augmentin, 1, 0}, line{panadol, 12, 0})
		updated, err := f.eng.Orders.Update(f.ctx, o.ID, edited)
		require.NoError(t, err)

		assertDecimal(t, "20", updated.PaidAmount)
		assert.Equal(t, 0, updated.Items[0].PaidQuantity)
		assert.Equal(t, 4, updated.Items[1].PaidQuantity)
		assert.Equal(t, engine.StatusPartial, updated.Status)
	})
}

func TestOrderDelete_RemovesReferencingTransactions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o, err := f.eng.Orders.Create(f.ctx, sale(line{panadol, 10, 0}))
		require.NoError(t, err)

		for _, amount := range []string{"5", "7.5"} {
			_, err := f.eng.Transactions.Record(f.ctx, engine.Transaction{
				Type: engine.TxPaymentReceived, Amount: dec(amount), ReferenceID: o.ID,
			})
			require.NoError(t, err)
		}
		deposit, err := f.eng.Transactions.Record(f.ctx, engine.Transaction{
			Type: engine.TxDepositToHQ, Amount: dec("10"),
		})
		require.NoError(t, err)

		require.NoError(t, f.eng.Orders.Delete(f.ctx, o.ID))

		txs, err := f.eng.Transactions.List(f.ctx)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, deposit.ID, txs[0].ID)
		assert.Equal(t, 100, f.stock(t, panadol.ID))
	})
}

// =============================================================================
// ERRORS
// =============================================================================

func TestOrderUpdateDelete_UnknownID_NotFound(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		_, err := f.eng.Orders.Update(f.ctx, "nope", sale(line{panadol, 1, 0}))
		assert.ErrorIs(t, err, engine.ErrOrderNotFound)
		assert.True(t, engine.IsNotFound(err))

		err = f.eng.Orders.Delete(f.ctx, "nope")
		assert.ErrorIs(t, err, engine.ErrOrderNotFound)
		assert.Equal(t, 100, f.stock(t, panadol.ID))
	})
}

func TestOrderCreate_NegativeQuantity_Rejected(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o := sale(line{panadol, 1, 0})
		o.Items[0].BonusQuantity = -1

		_, err := f.eng.Orders.Create(f.ctx, o)
		assert.ErrorIs(t, err, engine.ErrInvalidOrder)
		assert.True(t, engine.IsClientError(err))
		assert.Equal(t, 100, f.stock(t, panadol.ID))
	})
}

func TestOrderCreate_MissingProduct_SkippedAndReported(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ghost := engine.Product{ID: "p-ghost", Name: "Discontinued"}

		o, err := f.eng.Orders.Create(f.ctx, sale(line{ghost, 4, 0}, line{panadol, 1, 0}))
		require.NoError(t, err)

		assert.Equal(t, 99, f.stock(t, panadol.ID))
		assert.Equal(t, []engine.MissingProductEvent{{
			ProductID: "p-ghost",
			Delta:     -4,
			Source:    engine.SourceOrderCreate,
			RefID:     o.ID,
		}}, f.events.missingEvents())
	})
}

func TestOrderUpdate_StoreFailure_RollsBackStock(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o, err := f.eng.Orders.Create(f.ctx, sale(line{panadol, 10, 0}))
		require.NoError(t, err)

		// GIVEN: A repository whose order writes fail inside the transaction
		broken := engine.New(failingOrderWrites{f.repo})

		// WHEN: Update reverses the old effect and then fails to write
		_, err = broken.Orders.Update(f.ctx, o.ID, sale(line{panadol, 1, 0}))

		// THEN: The reversal is rolled back with it
		assert.ErrorIs(t, err, errStoreDown)
		assert.Equal(t, 90, f.stock(t, panadol.ID))
		assert.Equal(t, 10, f.order(t, o.ID).Items[0].Quantity)
	})
}

var errStoreDown = errors.New("store down")

type failingOrderWrites struct {
	engine.TxRepository
}

func (r failingOrderWrites) WithTx(ctx context.Context, fn func(engine.Repository) error) error {
	return r.TxRepository.WithTx(ctx, func(inner engine.Repository) error {
		return fn(failingOrderUpdate{inner})
	})
}

type failingOrderUpdate struct {
	engine.Repository
}

func (failingOrderUpdate) UpdateOrder(context.Context, engine.Order) error {
	return errStoreDown
}
