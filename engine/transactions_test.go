package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/repledger/engine"
)

func payment(orderID, amount string, paid ...engine.PaidItem) engine.Transaction {
	tx := engine.Transaction{
		Type:          engine.TxPaymentReceived,
		Amount:        dec(amount),
		ReferenceID:   orderID,
		PaymentMethod: engine.MethodCash,
	}
	if len(paid) > 0 {
		tx.Metadata = &engine.TransactionMetadata{PaidItems: paid}
	}
	return tx
}

func purchase(productID string, qty int, amount string) engine.Transaction {
	return engine.Transaction{
		Type:          engine.TxExpense,
		Amount:        dec(amount),
		ReferenceID:   productID,
		PaymentMethod: engine.MethodCash,
		Description:   "Stock purchase",
		Metadata:      &engine.TransactionMetadata{Quantity: engine.IntPtr(qty)},
	}
}

// orderWithTotal creates a sale of 80 Panadol at 2.50 (total 200).
func orderWithTotal200(t *testing.T, f *fixture) engine.Order {
	t.Helper()
	o, err := f.eng.Orders.Create(f.ctx, sale(line{panadol, 80, 0}))
	require.NoError(t, err)
	assertDecimal(t, "200", o.TotalAmount)
	return o
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestPayments_PartialThenFull_DeleteRecomputes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o := orderWithTotal200(t, f)

		// WHEN: 80 paid
		_, err := f.eng.Transactions.Record(f.ctx, payment(o.ID, "80"))
		require.NoError(t, err)
		got := f.order(t, o.ID)
		assertDecimal(t, "80", got.PaidAmount)
		assert.Equal(t, engine.StatusPartial, got.Status)

		// WHEN: 120 paid
		second, err := f.eng.Transactions.Record(f.ctx, payment(o.ID, "120"))
		require.NoError(t, err)
		got = f.order(t, o.ID)
		assertDecimal(t, "200", got.PaidAmount)
		assert.Equal(t, engine.StatusPaid, got.Status)

		// WHEN: The 120 payment is deleted
		require.NoError(t, f.eng.Transactions.Delete(f.ctx, second.ID))
		got = f.order(t, o.ID)
		assertDecimal(t, "80", got.PaidAmount)
		assert.Equal(t, engine.StatusPartial, got.Status)
	})
}

func TestPayments_DeleteLastPayment_BackToPending(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o := orderWithTotal200(t, f)
		tx, err := f.eng.Transactions.Record(f.ctx, payment(o.ID, "50"))
		require.NoError(t, err)

		require.NoError(t, f.eng.Transactions.Delete(f.ctx, tx.ID))

		got := f.order(t, o.ID)
		assert.True(t, got.PaidAmount.IsZero())
		assert.Equal(t, engine.StatusPending, got.Status)
	})
}

func TestPayments_StatusFollowsPaidAmount(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o := orderWithTotal200(t, f)
		paid := decimal.Zero

		for _, amount := range []string{"0.01", "99.99", "50", "49.99", "0.01", "10"} {
			_, err := f.eng.Transactions.Record(f.ctx, payment(o.ID, amount))
			require.NoError(t, err)
			paid = paid.Add(dec(amount))

			got := f.order(t, o.ID)
			assert.True(t, paid.Equal(got.PaidAmount))
			if paid.GreaterThanOrEqual(got.TotalAmount) {
				assert.Equal(t, engine.StatusPaid, got.Status, "paid %s", paid)
			} else {
				assert.Equal(t, engine.StatusPartial, got.Status, "paid %s", paid)
			}
		}
	})
}

func TestPayments_PaidItems_RecordedAndReversedWithClamp(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o, err := f.eng.Orders.Create(f.ctx, sale(line{panadol, 10, 0}, line{augmentin, 2, 0}))
		require.NoError(t, err)

		first, err := f.eng.Transactions.Record(f.ctx, payment(o.ID, "15",
			engine.PaidItem{ProductID: panadol.ID, Quantity: 6}))
		require.NoError(t, err)
		got := f.order(t, o.ID)
		assert.Equal(t, 6, got.Items[0].PaidQuantity)

		// GIVEN: The line's paid quantity was lowered by hand after payment
		got.Items[0].PaidQuantity = 2
		require.NoError(t, f.repo.UpdateOrder(f.ctx, got))

		// WHEN: The payment is deleted
		require.NoError(t, f.eng.Transactions.Delete(f.ctx, first.ID))

		// THEN: PaidAmount restored exactly, paid quantity clamped at 0
		got = f.order(t, o.ID)
		assert.True(t, got.PaidAmount.IsZero())
		assert.Equal(t, 0, got.Items[0].PaidQuantity)
		assert.Equal(t, 0, got.Items[1].PaidQuantity)
	})
}

func TestPayments_ReturnAndDraft_KeepStatus(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		ret, err := f.eng.Orders.Create(f.ctx, returnOrder(engine.ConditionGood, line{panadol, 2, 0}))
		require.NoError(t, err)
		draft := sale(line{panadol, 2, 0})
		draft.IsDraft = true
		dr, err := f.eng.Orders.Create(f.ctx, draft)
		require.NoError(t, err)

		for _, o := range []engine.Order{ret, dr} {
			tx, err := f.eng.Transactions.Record(f.ctx, payment(o.ID, "100"))
			require.NoError(t, err)
			assert.Equal(t, o.Status, f.order(t, o.ID).Status)

			require.NoError(t, f.eng.Transactions.Delete(f.ctx, tx.ID))
			assert.Equal(t, o.Status, f.order(t, o.ID).Status)
		}
	})
}

func TestPayments_SkipOrderUpdate_LeavesOrderAlone(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o := orderWithTotal200(t, f)
		tx := payment(o.ID, "200")
		tx.Metadata = &engine.TransactionMetadata{SkipOrderUpdate: true}

		recorded, err := f.eng.Transactions.Record(f.ctx, tx)
		require.NoError(t, err)
		assert.True(t, f.order(t, o.ID).PaidAmount.IsZero())

		amount := dec("150")
		_, err = f.eng.Transactions.Update(f.ctx, recorded.ID, engine.TransactionPatch{Amount: &amount})
		require.NoError(t, err)
		require.NoError(t, f.eng.Transactions.Delete(f.ctx, recorded.ID))

		got := f.order(t, o.ID)
		assert.True(t, got.PaidAmount.IsZero())
		assert.Equal(t, engine.StatusPending, got.Status)
	})
}

func TestPayments_UnknownOrder_FailsAndStoresNothing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		_, err := f.eng.Transactions.Record(f.ctx, payment("order-gone", "10"))
		assert.ErrorIs(t, err, engine.ErrOrderNotFound)

		txs, err := f.eng.Transactions.List(f.ctx)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}

func TestPayments_DeleteAfterOrderGone_RemovesTransaction(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o := orderWithTotal200(t, f)
		tx, err := f.eng.Transactions.Record(f.ctx, payment(o.ID, "10"))
		require.NoError(t, err)

		// Order removed behind the engine's back
		require.NoError(t, f.repo.DeleteOrder(f.ctx, o.ID))

		require.NoError(t, f.eng.Transactions.Delete(f.ctx, tx.ID))
		_, err = f.eng.Transactions.Get(f.ctx, tx.ID)
		assert.ErrorIs(t, err, engine.ErrTransactionNotFound)
	})
}

func TestPayments_UpdateAmount_AppliesDifference(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o := orderWithTotal200(t, f)
		tx, err := f.eng.Transactions.Record(f.ctx, payment(o.ID, "200"))
		require.NoError(t, err)
		assert.Equal(t, engine.StatusPaid, f.order(t, o.ID).Status)

		amount := dec("60")
		updated, err := f.eng.Transactions.Update(f.ctx, tx.ID, engine.TransactionPatch{Amount: &amount})
		require.NoError(t, err)
		assertDecimal(t, "60", updated.Amount)

		got := f.order(t, o.ID)
		assertDecimal(t, "60", got.PaidAmount)
		assert.Equal(t, engine.StatusPartial, got.Status)

		zero := decimal.Zero
		_, err = f.eng.Transactions.Update(f.ctx, tx.ID, engine.TransactionPatch{Amount: &zero})
		require.NoError(t, err)
		assert.Equal(t, engine.StatusPending, f.order(t, o.ID).Status)
	})
}

func TestPayments_UpdateAmountToZero_RecomputesToPending(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		// GIVEN: A partially paid sale
		o := orderWithTotal200(t, f)
		tx, err := f.eng.Transactions.Record(f.ctx, payment(o.ID, "80"))
		require.NoError(t, err)
		require.Equal(t, engine.StatusPartial, f.order(t, o.ID).Status)

		// WHEN: The payment is edited down to nothing
		zero := decimal.Zero
		_, err = f.eng.Transactions.Update(f.ctx, tx.ID, engine.TransactionPatch{Amount: &zero})
		require.NoError(t, err)

		// THEN: Status is recomputed from scratch, unlike at record time
		got := f.order(t, o.ID)
		assert.True(t, got.PaidAmount.IsZero())
		assert.Equal(t, engine.StatusPending, got.Status)

		// AND: Recording a zero payment leaves the status as it is
		_, err = f.eng.Transactions.Record(f.ctx, payment(o.ID, "0"))
		require.NoError(t, err)
		assert.Equal(t, engine.StatusPending, f.order(t, o.ID).Status)
	})
}

func TestPayments_UpdatePaidItems_ReplacesItemization(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		o, err := f.eng.Orders.Create(f.ctx, sale(line{panadol, 10, 0}, line{augmentin, 2, 0}))
		require.NoError(t, err)
		tx, err := f.eng.Transactions.Record(f.ctx, payment(o.ID, "10",
			engine.PaidItem{ProductID: panadol.ID, Quantity: 4}))
		require.NoError(t, err)

		items := []engine.PaidItem{{ProductID: augmentin.ID, Quantity: 1}}
		_, err = f.eng.Transactions.Update(f.ctx, tx.ID, engine.TransactionPatch{PaidItems: &items})
		require.NoError(t, err)

		got := f.order(t, o.ID)
		assert.Equal(t, 0, got.Items[0].PaidQuantity)
		assert.Equal(t, 1, got.Items[1].PaidQuantity)
		assertDecimal(t, "10", got.PaidAmount)

		stored, err := f.eng.Transactions.Get(f.ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, items, stored.Metadata.PaidItems)
	})
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestExpenses_StockPurchase_RecordUpdateDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		tx, err := f.eng.Transactions.Record(f.ctx, purchase(panadol.ID, 24, "48"))
		require.NoError(t, err)
		assert.Equal(t, 124, f.stock(t, panadol.ID))

		qty := 20
		_, err = f.eng.Transactions.Update(f.ctx, tx.ID, engine.TransactionPatch{Quantity: &qty})
		require.NoError(t, err)
		assert.Equal(t, 120, f.stock(t, panadol.ID))

		require.NoError(t, f.eng.Transactions.Delete(f.ctx, tx.ID))
		assert.Equal(t, 100, f.stock(t, panadol.ID))
	})
}

func TestExpenses_WithoutQuantity_NoStockEffect(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		tx, err := f.eng.Transactions.Record(f.ctx, engine.Transaction{
			Type:        engine.TxExpense,
			Amount:      dec("15"),
			ReferenceID: panadol.ID,
			Description: "Fuel",
		})
		require.NoError(t, err)

		qty := 5
		_, err = f.eng.Transactions.Update(f.ctx, tx.ID, engine.TransactionPatch{Quantity: &qty})
		assert.ErrorIs(t, err, engine.ErrInvalidTransaction)

		require.NoError(t, f.eng.Transactions.Delete(f.ctx, tx.ID))
		assert.Equal(t, 100, f.stock(t, panadol.ID))
	})
}

func TestExpenses_ProductDeleted_SkippedAndReported(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		tx, err := f.eng.Transactions.Record(f.ctx, purchase(augmentin.ID, 6, "60"))
		require.NoError(t, err)
		require.NoError(t, f.repo.DeleteProduct(f.ctx, augmentin.ID))

		require.NoError(t, f.eng.Transactions.Delete(f.ctx, tx.ID))

		events := f.events.missingEvents()
		require.Len(t, events, 1)
		assert.Equal(t, engine.SourceExpenseDelete, events[0].Source)
		assert.Equal(t, -6, events[0].Delta)
		assert.Equal(t, tx.ID, events[0].RefID)
	})
}

// =============================================================================
// LEGACY RECORDS
// =============================================================================

func TestLegacyRecords_ReversedFromDescription(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		// GIVEN: Records written before structured metadata
		expense := engine.Transaction{
			ID:          "legacy-exp",
			Type:        engine.TxExpense,
			Amount:      dec("60"),
			Date:        testDate,
			ReferenceID: panadol.ID,
			Description: "Stock purchase: 24 x Panadol Extra",
		}
		require.NoError(t, f.repo.InsertTransaction(f.ctx, expense))

		o, err := f.eng.Orders.Create(f.ctx, sale(line{panadol, 10, 0}, line{augmentin, 3, 0}))
		require.NoError(t, err)
		o.PaidAmount = dec("25")
		o.Items[0].PaidQuantity = 2
		o.Items[1].PaidQuantity = 3
		require.NoError(t, f.repo.UpdateOrder(f.ctx, o))

		pay := engine.Transaction{
			ID:          "legacy-pay",
			Type:        engine.TxPaymentReceived,
			Amount:      dec("25"),
			Date:        testDate,
			ReferenceID: o.ID,
			Description: "Payment for order 1042: Panadol Extra x2, augmentin 1G x1",
		}
		require.NoError(t, f.repo.InsertTransaction(f.ctx, pay))

		// WHEN: Both are deleted
		require.NoError(t, f.eng.Transactions.Delete(f.ctx, expense.ID))
		require.NoError(t, f.eng.Transactions.Delete(f.ctx, pay.ID))

		// THEN: Stock and paid quantities are reversed from the text
		assert.Equal(t, 90-24, f.stock(t, panadol.ID))
		got := f.order(t, o.ID)
		assert.True(t, got.PaidAmount.IsZero())
		assert.Equal(t, 0, got.Items[0].PaidQuantity)
		assert.Equal(t, 2, got.Items[1].PaidQuantity)
	})
}

func TestNewRecords_WithoutMetadata_NeverReversedFromDescription(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		// GIVEN: An expense recorded without metadata whose text names a quantity
		expense := engine.Transaction{
			Type:          engine.TxExpense,
			Amount:        dec("60"),
			ReferenceID:   panadol.ID,
			PaymentMethod: engine.MethodCash,
			Description:   "Stock purchase: 24 x Panadol Extra",
		}
		recorded, err := f.eng.Transactions.Record(f.ctx, expense)
		require.NoError(t, err)
		require.NotNil(t, recorded.Metadata)
		assert.Equal(t, 100, f.stock(t, panadol.ID), "no quantity, no stock effect")

		// WHEN: It is deleted
		require.NoError(t, f.eng.Transactions.Delete(f.ctx, recorded.ID))

		// THEN: Stock is untouched
		assert.Equal(t, 100, f.stock(t, panadol.ID))
	})
}

func TestNewPayment_WithoutMetadata_DeleteKeepsOtherItemization(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		// GIVEN: An itemized payment covering 4 units and a plain payment
		// whose description mentions 3 units
		o := orderWithTotal200(t, f)
		_, err := f.eng.Transactions.Record(f.ctx,
			payment(o.ID, "10", engine.PaidItem{ProductID: panadol.ID, Quantity: 4}))
		require.NoError(t, err)

		plain := payment(o.ID, "7.50")
		plain.Description = "Payment for order 1042: Panadol Extra x3"
		plain, err = f.eng.Transactions.Record(f.ctx, plain)
		require.NoError(t, err)
		assertDecimal(t, "17.50", f.order(t, o.ID).PaidAmount)

		// WHEN: The plain payment is deleted
		require.NoError(t, f.eng.Transactions.Delete(f.ctx, plain.ID))

		// THEN: Only its amount is reversed
		got := f.order(t, o.ID)
		assertDecimal(t, "10", got.PaidAmount)
		assert.Equal(t, 4, got.Items[0].PaidQuantity)
		assert.Equal(t, engine.StatusPartial, got.Status)
	})
}

// =============================================================================
// VALIDATION AND IDEMPOTENT DELETE
// =============================================================================

func TestTransactions_Validation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		_, err := f.eng.Transactions.Record(f.ctx, engine.Transaction{Type: "REFUND", Amount: dec("1")})
		assert.ErrorIs(t, err, engine.ErrInvalidTransaction)

		_, err = f.eng.Transactions.Record(f.ctx, engine.Transaction{Type: engine.TxDepositToHQ, Amount: dec("-1")})
		assert.ErrorIs(t, err, engine.ErrInvalidTransaction)

		_, err = f.eng.Transactions.Record(f.ctx, purchase(panadol.ID, -3, "1"))
		assert.ErrorIs(t, err, engine.ErrInvalidTransaction)

		deposit, err := f.eng.Transactions.Record(f.ctx, engine.Transaction{Type: engine.TxDepositToHQ, Amount: dec("5")})
		require.NoError(t, err)
		items := []engine.PaidItem{{ProductID: panadol.ID, Quantity: 1}}
		_, err = f.eng.Transactions.Update(f.ctx, deposit.ID, engine.TransactionPatch{PaidItems: &items})
		assert.ErrorIs(t, err, engine.ErrInvalidTransaction)
	})
}

func TestTransactions_UpdateUnknown_NotFound_DeleteUnknown_NoOp(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		desc := "x"
		_, err := f.eng.Transactions.Update(f.ctx, "missing", engine.TransactionPatch{Description: &desc})
		assert.ErrorIs(t, err, engine.ErrTransactionNotFound)

		assert.NoError(t, f.eng.Transactions.Delete(f.ctx, "missing"))
	})
}

func TestTransactions_Record_DefaultsIDAndDate(t *testing.T) {
	forEachBackend(t, func(t *testing.T, f *fixture) {
		tx, err := f.eng.Transactions.Record(f.ctx, engine.Transaction{Type: engine.TxDepositToHQ, Amount: dec("5")})
		require.NoError(t, err)
		assert.NotEmpty(t, tx.ID)
		assert.Equal(t, testDate, tx.Date)

		stored, err := f.eng.Transactions.Get(f.ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, testDate, stored.Date)
		assert.NotNil(t, stored.Metadata, "new records always carry metadata")
	})
}
