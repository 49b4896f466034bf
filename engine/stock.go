/*
stock.go - Stock Ledger

PURPOSE:
  Applies and reverses signed quantity deltas to product stock. Every stock
  change in the engine goes through here.

MISSING PRODUCTS:
  ApplyDelta fails with *MissingProductError. ApplyEffect skips that item,
  reports a MissingProductEvent and keeps going with the rest of the batch,
  so one deleted product cannot block reconciling the other lines.

NO FLOOR:
  Stock may go below zero. A negative count signals an oversell and is left
  for the reader to act on.
*/
package engine

import (
	"context"
	"errors"
)

// StockLedger applies deltas through Repository.AdjustStock.
type StockLedger struct {
	repo     ProductStore
	observer Observer
}

func NewStockLedger(repo ProductStore, observer Observer) *StockLedger {
	if observer == nil {
		observer = NopObserver
	}
	return &StockLedger{repo: repo, observer: observer}
}

// ApplyDelta adds delta to the product's stock and returns the new count.
func (l *StockLedger) ApplyDelta(ctx context.Context, productID string, delta int) (int, error) {
	stock, err := l.repo.AdjustStock(ctx, productID, delta)
	if errors.Is(err, ErrProductNotFound) {
		return 0, &MissingProductError{ProductID: productID, Delta: delta}
	}
	if err != nil {
		return 0, err
	}
	l.observer.StockAdjusted(ctx, productID, delta, stock)
	return stock, nil
}

// ApplyEffect applies every delta of effect in product id order. Missing
// products are skipped and reported; any other error stops the batch.
func (l *StockLedger) ApplyEffect(ctx context.Context, effect StockEffect, source, refID string) error {
	for _, id := range effect.ProductIDs() {
		if err := l.applyTolerant(ctx, id, effect[id], source, refID); err != nil {
			return err
		}
	}
	return nil
}

// applyTolerant is ApplyDelta with the skip-and-report policy.
func (l *StockLedger) applyTolerant(ctx context.Context, productID string, delta int, source, refID string) error {
	if delta == 0 {
		return nil
	}
	_, err := l.ApplyDelta(ctx, productID, delta)
	var missing *MissingProductError
	if errors.As(err, &missing) {
		l.observer.MissingProduct(ctx, MissingProductEvent{
			ProductID: productID,
			Delta:     delta,
			Source:    source,
			RefID:     refID,
		})
		return nil
	}
	return err
}
