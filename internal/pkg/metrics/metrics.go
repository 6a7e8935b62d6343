package metrics

import (
	"context"
	"errors"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Metrics holds the aggregator's prometheus collectors.
type Metrics struct {
	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	batchItems      *prometheus.CounterVec
	priceLookups    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggregator",
			Name:      "source_attempts_total",
			Help:      "Upstream source attempts made by the fallback cascade.",
		}, []string{"network", "operation", "source", "outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aggregator",
			Name:      "source_attempt_duration_seconds",
			Help:      "Latency of upstream source attempts.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 6, 8, 10},
		}, []string{"network", "operation", "source"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggregator",
			Name:      "fanout_items_total",
			Help:      "Items processed by multi-network fan-out requests.",
		}, []string{"kind", "outcome"}),
		priceLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aggregator",
			Name:      "price_lookups_total",
			Help:      "Ticker lookups that reached the upstream market.",
		}, []string{"source", "outcome"}),
	}
	for _, c := range []prometheus.Collector{m.attempts, m.attemptDuration, m.batchItems, m.priceLookups} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustRegisterMetrics is New on the default registry, panicking on duplicate registration.
func MustRegisterMetrics() *Metrics {
	m, err := New(prometheus.DefaultRegisterer)
	if err != nil {
		panic(err)
	}
	return m
}

// RecordAttempt implements port.AttemptRecorder.
func (m *Metrics) RecordAttempt(a entity.FetchAttempt) {
	m.attempts.WithLabelValues(string(a.Network), string(a.Operation), a.Source, string(a.Outcome)).Inc()
	m.attemptDuration.WithLabelValues(string(a.Network), string(a.Operation), a.Source).Observe(a.Latency.Seconds())
}

// RecordBatchItem counts one fan-out item outcome ("result" or "exception").
func (m *Metrics) RecordBatchItem(kind, outcome string) {
	m.batchItems.WithLabelValues(kind, outcome).Inc()
}

type instrumentedTicker struct {
	inner   port.TickerClient
	counter *prometheus.CounterVec
}

// InstrumentTicker counts every lookup made through inner by outcome
// ("success", "not_found" or "error").
func (m *Metrics) InstrumentTicker(inner port.TickerClient) port.TickerClient {
	return &instrumentedTicker{inner: inner, counter: m.priceLookups}
}

func (t *instrumentedTicker) Name() string { return t.inner.Name() }

func (t *instrumentedTicker) TickerPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	price, err := t.inner.TickerPrice(ctx, base, quote)
	outcome := "success"
	switch {
	case errors.Is(err, entity.ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	t.counter.WithLabelValues(t.inner.Name(), outcome).Inc()
	return price, err
}

type teeRecorder []port.AttemptRecorder

func (t teeRecorder) RecordAttempt(a entity.FetchAttempt) {
	for _, r := range t {
		r.RecordAttempt(a)
	}
}

// Tee fans one attempt out to every non-nil recorder.
func Tee(recorders ...port.AttemptRecorder) port.AttemptRecorder {
	out := make(teeRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
