package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

type countingRecorder struct{ n int }

func (c *countingRecorder) RecordAttempt(entity.FetchAttempt) { c.n++ }

func TestRecordAttempt(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	attempt := entity.FetchAttempt{
		Network:   entity.Ethereum,
		Operation: entity.OpBalance,
		Source:    "etherscan",
		Outcome:   entity.OutcomeTimeout,
		Latency:   150 * time.Millisecond,
	}
	m.RecordAttempt(attempt)
	m.RecordAttempt(attempt)

	got := testutil.ToFloat64(m.attempts.WithLabelValues("ethereum", "balance", "etherscan", "timeout"))
	if got != 2 {
		t.Fatalf("attempts counter=%v want 2", got)
	}

	m.RecordBatchItem("balances", "exception")
	if got := testutil.ToFloat64(m.batchItems.WithLabelValues("balances", "exception")); got != 1 {
		t.Fatalf("batch counter=%v want 1", got)
	}
}

func TestTeeSkipsNil(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	rec := Tee(a, nil, b)
	rec.RecordAttempt(entity.FetchAttempt{})
	if a.n != 1 || b.n != 1 {
		t.Fatalf("recorders saw %d and %d attempts", a.n, b.n)
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New: %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

type scriptedTicker map[string]error

func (s scriptedTicker) Name() string { return "scripted" }

func (s scriptedTicker) TickerPrice(_ context.Context, base, _ string) (decimal.Decimal, error) {
	if err := s[base]; err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(10), nil
}

func TestInstrumentTicker(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ticker := m.InstrumentTicker(scriptedTicker{
		"NOPE": fmt.Errorf("%w: no market", entity.ErrNotFound),
		"DOWN": entity.ErrUpstream,
	})
	if ticker.Name() != "scripted" {
		t.Fatalf("name=%q", ticker.Name())
	}
	for _, base := range []string{"ETH", "BTC", "NOPE", "DOWN"} {
		price, err := ticker.TickerPrice(context.Background(), base, "USDT")
		if base == "DOWN" && !errors.Is(err, entity.ErrUpstream) {
			t.Fatalf("error not passed through: %v", err)
		}
		if err == nil && !price.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("price=%s", price)
		}
	}
	for outcome, want := range map[string]float64{"success": 2, "not_found": 1, "error": 1} {
		if got := testutil.ToFloat64(m.priceLookups.WithLabelValues("scripted", outcome)); got != want {
			t.Errorf("%s=%v want %v", outcome, got, want)
		}
	}
}
