/*
Package observability reports reconciliation signals to logs and Prometheus.

METRICS:
  repledger_missing_product_total{source}   stock corrections skipped
                                            because the product is gone
  repledger_stock_adjustments_total         deltas applied to stock
  repledger_stock_units_moved_total{dir}    absolute units moved in/out

Metrics live in their own registry so tests and multiple servers in one
process do not collide on registration.
*/
package observability

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/warp/repledger/engine"
)

const namespace = "repledger"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	MissingProducts  *prometheus.CounterVec
	StockAdjustments prometheus.Counter
	UnitsMoved       *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MissingProducts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_product_total",
			Help:      "Stock corrections skipped because the product no longer exists.",
		}, []string{"source"}),
		StockAdjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock deltas applied.",
		}),
		UnitsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_units_moved_total",
			Help:      "Absolute stock units moved, by direction.",
		}, []string{"direction"}),
	}

	m.registry.MustRegister(
		m.MissingProducts,
		m.StockAdjustments,
		m.UnitsMoved,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observer implements engine.Observer with slog and Metrics.
type Observer struct {
	logger  *slog.Logger
	metrics *Metrics
}

var _ engine.Observer = (*Observer)(nil)

// NewObserver creates an observer. A nil metrics disables counting.
func NewObserver(logger *slog.Logger, metrics *Metrics) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{logger: logger, metrics: metrics}
}

func (o *Observer) MissingProduct(ctx context.Context, ev engine.MissingProductEvent) {
	o.logger.WarnContext(ctx, "stock correction skipped: product not found",
		"product_id", ev.ProductID,
		"delta", ev.Delta,
		"source", ev.Source,
		"ref_id", ev.RefID,
	)
	if o.metrics != nil {
		o.metrics.MissingProducts.WithLabelValues(ev.Source).Inc()
	}
}

func (o *Observer) StockAdjusted(ctx context.Context, productID string, delta, stock int) {
	o.logger.DebugContext(ctx, "stock adjusted",
		"product_id", productID,
		"delta", delta,
		"stock", stock,
	)
	if stock < 0 {
		o.logger.WarnContext(ctx, "stock below zero", "product_id", productID, "stock", stock)
	}
	if o.metrics == nil {
		return
	}
	o.metrics.StockAdjustments.Inc()
	if delta > 0 {
		o.metrics.UnitsMoved.WithLabelValues("in").Add(float64(delta))
	} else {
		o.metrics.UnitsMoved.WithLabelValues("out").Add(float64(-delta))
	}
}
