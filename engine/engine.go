package engine

import (
	"time"

	"github.com/google/uuid"
)

// Engine bundles the components over one Repository.
type Engine struct {
	Stock        *StockLedger
	Orders       *OrderManager
	Transactions *TransactionLedger
	Stats        *Aggregator
}

type options struct {
	observer Observer
	newID    func() string
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*options)

// WithObserver sets the receiver of reconciliation signals.
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithIDGenerator replaces the default uuid generator.
func WithIDGenerator(fn func() string) Option {
	return func(opts *options) { opts.newID = fn }
}

// WithClock replaces time.Now for default order and transaction dates.
func WithClock(fn func() time.Time) Option {
	return func(opts *options) { opts.now = fn }
}

// New wires every component to repo.
func New(repo Repository, opts ...Option) *Engine {
	o := options{
		observer: NopObserver,
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		o.observer = NopObserver
	}

	return &Engine{
		Stock:        NewStockLedger(repo, o.observer),
		Orders:       &OrderManager{repo: repo, opts: o},
		Transactions: &TransactionLedger{repo: repo, opts: o},
		Stats:        &Aggregator{repo: repo},
	}
}
