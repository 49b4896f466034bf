/*
orders.go - Order Lifecycle Manager

PURPOSE:
  Creates, updates and deletes orders while keeping the stock effect of
  each order applied exactly once.

REVERSE-THEN-REAPPLY:
  Update never diffs line by line. It undoes the whole effect of the stored
  snapshot and applies the whole effect of the new one:

    stock += -OrderEffect(old) + OrderEffect(new)

  Summed over any sequence of edits the intermediate terms cancel, so the
  net change only depends on the final state. Draft transitions fall out of
  this for free because OrderEffect of a draft is empty.

PAYMENT-OWNED FIELDS:
  PaidAmount and item PaidQuantity belong to the Transaction Ledger. Update
  carries them over from the stored snapshot.

DELETE:
  Reverses the effect, then removes every transaction that references the
  order, then the order itself.
*/
package engine

import (
	"context"
	"fmt"
)

// OrderManager orchestrates order mutations.
type OrderManager struct {
	repo Repository
	opts options
}

// Get returns a stored order.
func (m *OrderManager) Get(ctx context.Context, id string) (Order, error) {
	return m.repo.GetOrder(ctx, id)
}

// List returns every stored order.
func (m *OrderManager) List(ctx context.Context) ([]Order, error) {
	return m.repo.ListOrders(ctx)
}

// Create persists o and, unless it is a draft, applies its stock effect.
func (m *OrderManager) Create(ctx context.Context, o Order) (Order, error) {
	if err := validateOrder(o); err != nil {
		return Order{}, err
	}
	o = o.Clone()
	if o.ID == "" {
		o.ID = m.opts.newID()
	}
	if o.Date.IsZero() {
		o.Date = m.opts.now()
	}
	normalizeItems(&o)
	o.Status = deriveStatus(o)

	err := atomically(ctx, m.repo, func(r Repository) error {
		if err := r.InsertOrder(ctx, o); err != nil {
			return err
		}
		stock := NewStockLedger(r, m.opts.observer)
		return stock.ApplyEffect(ctx, OrderEffect(o), SourceOrderCreate, o.ID)
	})
	if err != nil {
		return Order{}, err
	}
	return o, nil
}

// Update replaces the order stored under id with next.
func (m *OrderManager) Update(ctx context.Context, id string, next Order) (Order, error) {
	if err := validateOrder(next); err != nil {
		return Order{}, err
	}
	next = next.Clone()
	next.ID = id

	err := atomically(ctx, m.repo, func(r Repository) error {
		old, err := r.GetOrder(ctx, id)
		if err != nil {
			return err
		}

		if next.Date.IsZero() {
			next.Date = old.Date
		}
		next.PaidAmount = old.PaidAmount
		carryPaidQuantities(old.Items, next.Items)
		normalizeItems(&next)
		next.Status = deriveStatus(next)

		stock := NewStockLedger(r, m.opts.observer)
		if err := stock.ApplyEffect(ctx, OrderEffect(old).Negate(), SourceOrderUpdate, id); err != nil {
			return err
		}
		if err := r.UpdateOrder(ctx, next); err != nil {
			return err
		}
		return stock.ApplyEffect(ctx, OrderEffect(next), SourceOrderUpdate, id)
	})
	if err != nil {
		return Order{}, err
	}
	return next, nil
}

// Delete reverses the order's effect and removes it together with every
// transaction referencing it.
func (m *OrderManager) Delete(ctx context.Context, id string) error {
	return atomically(ctx, m.repo, func(r Repository) error {
		o, err := r.GetOrder(ctx, id)
		if err != nil {
			return err
		}

		stock := NewStockLedger(r, m.opts.observer)
		if err := stock.ApplyEffect(ctx, OrderEffect(o).Negate(), SourceOrderDelete, id); err != nil {
			return err
		}

		txs, err := r.TransactionsByReference(ctx, id)
		if err != nil {
			return err
		}
		for _, tx := range txs {
			if err := r.DeleteTransaction(ctx, tx.ID); err != nil {
				return err
			}
		}
		return r.DeleteOrder(ctx, id)
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func validateOrder(o Order) error {
	for i, it := range o.Items {
		if it.ProductID == "" {
			return fmt.Errorf("%w: item %d has no product", ErrInvalidOrder, i)
		}
		if it.Quantity < 0 || it.BonusQuantity < 0 {
			return fmt.Errorf("%w: item %d has a negative quantity", ErrInvalidOrder, i)
		}
	}
	return nil
}

// normalizeItems defaults the condition of return lines to GOOD and clears
// it on sales, where it has no meaning.
func normalizeItems(o *Order) {
	for i := range o.Items {
		switch {
		case !o.IsReturn:
			o.Items[i].Condition = ""
		case o.Items[i].Condition == "":
			o.Items[i].Condition = ConditionGood
		}
	}
}

// deriveStatus computes the status of an order written by Create/Update.
func deriveStatus(o Order) OrderStatus {
	switch {
	case o.IsDraft:
		return StatusDraft
	case o.IsReturn:
		return StatusReturned
	}
	return settledStatus(o)
}

// carryPaidQuantities copies PaidQuantity from old lines onto new lines of
// the same product, matching lines in order.
func carryPaidQuantities(old, next []OrderItem) {
	used := make([]bool, len(old))
	for i := range next {
		next[i].PaidQuantity = 0
		for j := range old {
			if used[j] || old[j].ProductID != next[i].ProductID {
				continue
			}
			used[j] = true
			next[i].PaidQuantity = old[j].PaidQuantity
			break
		}
	}
}
