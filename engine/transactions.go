/*
transactions.go - Transaction Ledger

PURPOSE:
  Records, edits and deletes payments, expenses and deposits, and keeps the
  records they point at in step:

    PAYMENT_RECEIVED -> order PaidAmount, Status, item PaidQuantity
    EXPENSE (stock purchase, Metadata.Quantity set) -> product Stock
    DEPOSIT_TO_HQ    -> no side effect (only read by the aggregator)

RECORD:
  Applies the side effect once, at creation.

UPDATE:
  Two independent paths, both incremental:
    - purchase quantity changed -> stock += new - old
    - payment amount changed    -> PaidAmount += new - old
  Type and ReferenceID are fixed for the life of a transaction.

DELETE:
  Replays the inverse of the creation side effect. Records written before
  structured metadata existed are reversed from their description text
  (see legacy.go). Deleting an unknown id is a no-op.

STATUS RULES (sales only; returns and drafts keep their status):
  record:         PAID if paid >= total, PARTIAL if paid > 0, else unchanged
  update, delete: PENDING, then PARTIAL if paid > 0, then PAID if paid >= total
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionLedger manages financial transactions.
type TransactionLedger struct {
	repo Repository
	opts options
}

// TransactionPatch lists the fields Update may change. Nil means unchanged.
type TransactionPatch struct {
	Amount        *decimal.Decimal
	Date          *time.Time
	Description   *string
	PaymentMethod *PaymentMethod
	ProviderID    *string
	ProviderName  *string

	// Quantity changes the purchased quantity of a stock purchase expense.
	Quantity *int

	// PaidItems replaces the itemization of a payment.
	PaidItems *[]PaidItem
}

// Get returns a stored transaction.
func (l *TransactionLedger) Get(ctx context.Context, id string) (Transaction, error) {
	return l.repo.GetTransaction(ctx, id)
}

// List returns every stored transaction.
func (l *TransactionLedger) List(ctx context.Context) ([]Transaction, error) {
	return l.repo.ListTransactions(ctx)
}

// Record appends tx and applies its side effect.
func (l *TransactionLedger) Record(ctx context.Context, tx Transaction) (Transaction, error) {
	if err := validateTransaction(tx); err != nil {
		return Transaction{}, err
	}
	tx = tx.Clone()
	if tx.ID == "" {
		tx.ID = l.opts.newID()
	}
	// Nil metadata is reserved for records that predate it; only those
	// are reversed from their description.
	if tx.Metadata == nil {
		tx.Metadata = &TransactionMetadata{}
	}
	if tx.Date.IsZero() {
		tx.Date = l.opts.now()
	}

	err := atomically(ctx, l.repo, func(r Repository) error {
		if err := r.InsertTransaction(ctx, tx); err != nil {
			return err
		}

		switch tx.Type {
		case TxPaymentReceived:
			if tx.ReferenceID == "" || tx.skipsOrderUpdate() {
				return nil
			}
			o, err := r.GetOrder(ctx, tx.ReferenceID)
			if err != nil {
				return err
			}
			o.PaidAmount = o.PaidAmount.Add(tx.Amount)
			addPaidItems(o.Items, paidItemsOf(tx), 1)
			o.Status = recordedStatus(o)
			return r.UpdateOrder(ctx, o)

		case TxExpense:
			qty, ok := tx.StockQuantity()
			if !ok || tx.ReferenceID == "" {
				return nil
			}
			stock := NewStockLedger(r, l.opts.observer)
			return stock.applyTolerant(ctx, tx.ReferenceID, qty, SourceExpenseRecord, tx.ID)
		}
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Update applies patch to the transaction stored under id.
func (l *TransactionLedger) Update(ctx context.Context, id string, patch TransactionPatch) (Transaction, error) {
	if patch.Amount != nil && patch.Amount.IsNegative() {
		return Transaction{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidTransaction)
	}

	var next Transaction
	err := atomically(ctx, l.repo, func(r Repository) error {
		orig, err := r.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		next, err = patch.applyTo(orig)
		if err != nil {
			return err
		}

		switch orig.Type {
		case TxExpense:
			if err := l.reconcileExpenseEdit(ctx, r, orig, next); err != nil {
				return err
			}
		case TxPaymentReceived:
			if err := reconcilePaymentEdit(ctx, r, orig, next, patch.PaidItems != nil); err != nil {
				return err
			}
		}
		return r.UpdateTransaction(ctx, next)
	})
	if err != nil {
		return Transaction{}, err
	}
	return next, nil
}

// Delete removes the transaction stored under id after reversing its side
// effect. An unknown id is not an error.
func (l *TransactionLedger) Delete(ctx context.Context, id string) error {
	return atomically(ctx, l.repo, func(r Repository) error {
		tx, err := r.GetTransaction(ctx, id)
		if errors.Is(err, ErrTransactionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		switch tx.Type {
		case TxExpense:
			if err := l.reverseExpense(ctx, r, tx); err != nil {
				return err
			}
		case TxPaymentReceived:
			if err := reversePayment(ctx, r, tx); err != nil {
				return err
			}
		}
		return r.DeleteTransaction(ctx, id)
	})
}

// =============================================================================
// EXPENSES
// =============================================================================

func (l *TransactionLedger) reconcileExpenseEdit(ctx context.Context, r Repository, orig, next Transaction) error {
	oldQty, ok := orig.StockQuantity()
	if !ok || orig.ReferenceID == "" {
		return nil
	}
	newQty, _ := next.StockQuantity()
	if newQty == oldQty {
		return nil
	}
	stock := NewStockLedger(r, l.opts.observer)
	return stock.applyTolerant(ctx, orig.ReferenceID, newQty-oldQty, SourceExpenseUpdate, orig.ID)
}

func (l *TransactionLedger) reverseExpense(ctx context.Context, r Repository, tx Transaction) error {
	if tx.ReferenceID == "" {
		return nil
	}
	qty, ok := tx.StockQuantity()
	if !ok && tx.Metadata == nil {
		qty, ok = parseLegacyExpenseQuantity(tx.Description)
	}
	if !ok {
		return nil
	}
	stock := NewStockLedger(r, l.opts.observer)
	return stock.applyTolerant(ctx, tx.ReferenceID, -qty, SourceExpenseDelete, tx.ID)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func reconcilePaymentEdit(ctx context.Context, r Repository, orig, next Transaction, itemsChanged bool) error {
	if orig.ReferenceID == "" || orig.skipsOrderUpdate() {
		return nil
	}
	amountChanged := !next.Amount.Equal(orig.Amount)
	if !amountChanged && !itemsChanged {
		return nil
	}

	o, err := r.GetOrder(ctx, orig.ReferenceID)
	if err != nil {
		return err
	}
	if amountChanged {
		o.PaidAmount = o.PaidAmount.Add(next.Amount.Sub(orig.Amount))
	}
	if itemsChanged {
		addPaidItems(o.Items, paidItemsOf(orig), -1)
		addPaidItems(o.Items, paidItemsOf(next), 1)
	}
	if !o.paymentExempt() {
		o.Status = settledStatus(o)
	}
	return r.UpdateOrder(ctx, o)
}

func reversePayment(ctx context.Context, r Repository, tx Transaction) error {
	if tx.ReferenceID == "" || tx.skipsOrderUpdate() {
		return nil
	}
	o, err := r.GetOrder(ctx, tx.ReferenceID)
	if errors.Is(err, ErrOrderNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	o.PaidAmount = o.PaidAmount.Sub(tx.Amount)
	if !o.paymentExempt() {
		o.Status = settledStatus(o)
	}
	if tx.Metadata != nil {
		addPaidItems(o.Items, tx.Metadata.PaidItems, -1)
	} else {
		subtractLegacyPaidItems(o.Items, parseLegacyPaidItems(tx.Description))
	}
	return r.UpdateOrder(ctx, o)
}

// addPaidItems moves PaidQuantity of the first line of each product by
// sign*quantity. Decrements never go below zero.
func addPaidItems(items []OrderItem, paid []PaidItem, sign int) {
	for _, p := range paid {
		for i := range items {
			if items[i].ProductID != p.ProductID {
				continue
			}
			items[i].PaidQuantity = max(0, items[i].PaidQuantity+sign*p.Quantity)
			break
		}
	}
}

func subtractLegacyPaidItems(items []OrderItem, lines []legacyLine) {
	for _, ln := range lines {
		for i := range items {
			if !strings.EqualFold(strings.TrimSpace(items[i].ProductName), ln.Name) {
				continue
			}
			items[i].PaidQuantity = max(0, items[i].PaidQuantity-ln.Quantity)
			break
		}
	}
}

func paidItemsOf(tx Transaction) []PaidItem {
	if tx.Metadata == nil {
		return nil
	}
	return tx.Metadata.PaidItems
}

// =============================================================================
// STATUS
// =============================================================================

func (o Order) paymentExempt() bool {
	return o.IsReturn || o.IsDraft
}

// recordedStatus is the status after a payment is recorded.
func recordedStatus(o Order) OrderStatus {
	switch {
	case o.paymentExempt():
		return o.Status
	case o.PaidAmount.GreaterThanOrEqual(o.TotalAmount):
		return StatusPaid
	case o.PaidAmount.IsPositive():
		return StatusPartial
	}
	return o.Status
}

// settledStatus recomputes a sale's status from scratch.
func settledStatus(o Order) OrderStatus {
	status := StatusPending
	if o.PaidAmount.IsPositive() {
		status = StatusPartial
	}
	if o.PaidAmount.GreaterThanOrEqual(o.TotalAmount) {
		status = StatusPaid
	}
	return status
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateTransaction(tx Transaction) error {
	if !tx.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, tx.Type)
	}
	if tx.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidTransaction)
	}
	if q, ok := tx.StockQuantity(); ok && q < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidTransaction)
	}
	return nil
}

func (p TransactionPatch) applyTo(orig Transaction) (Transaction, error) {
	next := orig.Clone()
	if p.Amount != nil {
		next.Amount = *p.Amount
	}
	if p.Date != nil {
		next.Date = *p.Date
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.PaymentMethod != nil {
		next.PaymentMethod = *p.PaymentMethod
	}
	if p.ProviderID != nil {
		next.ProviderID = *p.ProviderID
	}
	if p.ProviderName != nil {
		next.ProviderName = *p.ProviderName
	}
	if p.Quantity != nil {
		if _, ok := orig.StockQuantity(); !ok {
			return Transaction{}, fmt.Errorf("%w: quantity can only change on a stock purchase", ErrInvalidTransaction)
		}
		if *p.Quantity < 0 {
			return Transaction{}, fmt.Errorf("%w: quantity must not be negative", ErrInvalidTransaction)
		}
		next.Metadata.Quantity = IntPtr(*p.Quantity)
	}
	if p.PaidItems != nil {
		if orig.Type != TxPaymentReceived {
			return Transaction{}, fmt.Errorf("%w: paid items only apply to payments", ErrInvalidTransaction)
		}
		if next.Metadata == nil {
			next.Metadata = &TransactionMetadata{}
		}
		next.Metadata.PaidItems = append([]PaidItem(nil), (*p.PaidItems)...)
	}
	return next, nil
}
