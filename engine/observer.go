package engine

import "context"

// Event sources reported with MissingProductEvent.
const (
	SourceOrderCreate   = "order.create"
	SourceOrderUpdate   = "order.update"
	SourceOrderDelete   = "order.delete"
	SourceExpenseRecord = "expense.record"
	SourceExpenseUpdate = "expense.update"
	SourceExpenseDelete = "expense.delete"
)

// MissingProductEvent is emitted when a stock correction is skipped because
// the product no longer exists. The correction is lost; stock for that id
// is under-counted from then on.
type MissingProductEvent struct {
	ProductID string
	Delta     int
	Source    string
	RefID     string // order or transaction id that produced the delta
}

// Observer receives reconciliation signals. Implementations must not block.
type Observer interface {
	MissingProduct(ctx context.Context, ev MissingProductEvent)
	StockAdjusted(ctx context.Context, productID string, delta, stock int)
}

type nopObserver struct{}

func (nopObserver) MissingProduct(context.Context, MissingProductEvent) {}
func (nopObserver) StockAdjusted(context.Context, string, int, int)     {}

// NopObserver discards every event.
var NopObserver Observer = nopObserver{}
