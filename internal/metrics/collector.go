// internal/metrics/collector.go
package metrics

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/lpvault/internal/events"
	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

const namespace = "lpvault"

// Collector owns the engine metrics on a private registry so several
// collectors (one per test, one per process) never clash.
type Collector struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	vault      *prometheus.GaugeVec
	curve      *prometheus.GaugeVec
	alerts     *prometheus.CounterVec
}

// NewCollector creates and registers the metric set.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Engine operations by outcome",
			},
			[]string{"engine", "operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Engine operation latency including persistence",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"engine", "operation"},
		),
		vault: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "vault_units",
				Help:      "Vault totals in whole stablecoin units",
			},
			[]string{"field"},
		),
		curve: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "curve_units",
				Help:      "Bonding curve state in whole units",
			},
			[]string{"field"},
		),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Operator alerts triggered by type",
			},
			[]string{"type"},
		),
	}
	c.registry.MustRegister(c.operations, c.duration, c.vault, c.curve, c.alerts)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Attach subscribes the collector to every engine event on bus.
func (c *Collector) Attach(bus *events.Bus) events.Subscription {
	return bus.SubscribeFunc(events.Any, c.handle)
}

// RecordOperation counts an operation attempt and its latency.
func (c *Collector) RecordOperation(engine, operation string, duration time.Duration, err error) {
	c.operations.WithLabelValues(engine, operation, Status(err)).Inc()
	c.duration.WithLabelValues(engine, operation).Observe(duration.Seconds())
}

// RecordAlert counts a triggered alert.
func (c *Collector) RecordAlert(alertType string) {
	c.alerts.WithLabelValues(alertType).Inc()
}

// ObserveVault sets the vault gauges.
func (c *Collector) ObserveVault(s events.VaultSnapshot) {
	c.vault.WithLabelValues("total_assets").Set(units(s.TotalAssets))
	c.vault.WithLabelValues("total_shares").Set(units(s.TotalShares))
	c.vault.WithLabelValues("managed_assets").Set(units(s.ManagedAssets))
	c.vault.WithLabelValues("pool_balance").Set(units(s.PoolBalance))
}

// ObserveCurve sets the curve gauges.
func (c *Collector) ObserveCurve(s events.CurveSnapshot) {
	c.curve.WithLabelValues("total_issued").Set(units(s.TotalIssued))
	c.curve.WithLabelValues("reserve_balance").Set(units(s.ReserveBalance))
	c.curve.WithLabelValues("price").Set(units(s.Price))
}

func (c *Collector) handle(_ context.Context, e events.Event) error {
	switch ev := e.(type) {
	case *events.DepositEvent:
		c.ObserveVault(ev.After)
	case *events.RedeemEvent:
		c.ObserveVault(ev.After)
	case *events.FundsMovedEvent:
		c.ObserveVault(ev.After)
	case *events.PnLReportedEvent:
		c.ObserveVault(ev.After)
	case *events.TradeEvent:
		c.ObserveCurve(ev.After)
	}
	return nil
}

// Status maps an engine error onto a bounded label value.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrNotPersisted):
		return "not_persisted"
	case errors.Is(err, types.ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, types.ErrZeroAddress):
		return "zero_address"
	case errors.Is(err, types.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, types.ErrExcessiveReduction):
		return "excessive_reduction"
	case errors.Is(err, types.ErrInsufficientTokens):
		return "insufficient_tokens"
	case errors.Is(err, types.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, types.ErrReentrantCall):
		return "reentrant"
	case errors.Is(err, types.ErrSlippageExceeded):
		return "slippage"
	default:
		return "error"
	}
}

// units converts raw 10^-6 amounts to whole units for display only.
func units(raw math.Int) float64 {
	if raw.IsNil() {
		return 0
	}
	f, _ := new(big.Rat).SetFrac(raw.BigInt(), big.NewInt(fixedpoint.Scale)).Float64()
	return f
}
