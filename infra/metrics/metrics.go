// Package metrics exposes the ledger's prometheus instruments. Domain
// counters are fed by bus subscribers; HTTP instruments by the webapi layer.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/amirasaad/crossledger/pkg/domain/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics holds the registry and every instrument registered on it.
type Metrics struct {
	registry *prometheus.Registry

	EventsHandled        *prometheus.CounterVec
	TransactionsAppended *prometheus.CounterVec
	TransactionsSettled  *prometheus.CounterVec
	CrossTransitions     *prometheus.CounterVec
	SettlementDelta      *prometheus.HistogramVec
	WalletChanges        *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates the instruments on a fresh registry, so several instances can
// live in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EventsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossledger_events_handled_total",
			Help: "Domain events seen by the metrics subscriber",
		}, []string{"event_type"}),

		TransactionsAppended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossledger_transactions_appended_total",
			Help: "Ledger rows committed",
		}, []string{"kind", "status", "currency"}),

		TransactionsSettled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossledger_transactions_settled_total",
			Help: "Pending rows moved to a final status",
		}, []string{"to"}),

		CrossTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossledger_cross_transitions_total",
			Help: "Cross lifecycle events",
		}, []string{"event_type"}),

		SettlementDelta: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crossledger_settlement_delta_abs",
			Help:    "Absolute settlement delta per leg, in cross currency units",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"side", "currency"}),

		WalletChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossledger_wallet_changes_total",
			Help: "Wallet registry events",
		}, []string{"event_type"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crossledger_http_requests_total",
			Help: "HTTP requests served",
		}, []string{"method", "route", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crossledger_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handle is the bus subscriber that turns domain events into counters.
func (m *Metrics) Handle(_ context.Context, e events.Event) error {
	m.EventsHandled.WithLabelValues(e.Type()).Inc()
	switch ev := e.(type) {
	case *events.TransactionAppended:
		m.TransactionsAppended.WithLabelValues(ev.Kind, ev.Status, ev.Currency).Inc()
	case *events.TransactionStatusChanged:
		m.TransactionsSettled.WithLabelValues(ev.To).Inc()
	case *events.CrossEvent:
		m.CrossTransitions.WithLabelValues(ev.Type()).Inc()
	case *events.CrossClosed:
		m.CrossTransitions.WithLabelValues(ev.Type()).Inc()
		observeDelta(m.SettlementDelta, "long", ev.Currency, ev.DeltaLong)
		observeDelta(m.SettlementDelta, "short", ev.Currency, ev.DeltaShort)
	case *events.WalletEvent:
		m.WalletChanges.WithLabelValues(ev.Type()).Inc()
	}
	return nil
}

func observeDelta(h *prometheus.HistogramVec, side, currency, amount string) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return
	}
	v, _ := d.Abs().Float64()
	h.WithLabelValues(side, currency).Observe(v)
}
