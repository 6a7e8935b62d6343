package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/logger"

	"github.com/shopspring/decimal"
)

var testLogger = logger.NewDiscard()

var evmNetwork = entity.NetworkConfig{
	ID:             entity.Ethereum,
	Name:           "Ethereum",
	ChainID:        1,
	Kind:           entity.KindEVM,
	NativeSymbol:   "ETH",
	NativeName:     "Ether",
	NativeDecimals: 18,
	LogoURL:        "https://example.test/eth.png",
	FiatSymbol:     "USDT",
}

const (
	queried = "0xabc0000000000000000000000000000000000001"
	other   = "0xdef0000000000000000000000000000000000002"
)

type fakeAdapter struct {
	name  string
	ops   map[entity.Operation]bool
	calls atomic.Int32
	fetch func(ctx context.Context, op entity.Operation, params entity.FetchParams) (entity.RawPayload, error)
}

func newFakeAdapter(name string, fetch func(ctx context.Context, op entity.Operation, params entity.FetchParams) (entity.RawPayload, error)) *fakeAdapter {
	return &fakeAdapter{name: name, fetch: fetch}
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Supports(op entity.Operation) bool {
	return f.ops == nil || f.ops[op]
}

func (f *fakeAdapter) Fetch(ctx context.Context, op entity.Operation, params entity.FetchParams) (entity.RawPayload, error) {
	f.calls.Add(1)
	return f.fetch(ctx, op, params)
}

func failing(name string) *fakeAdapter {
	return newFakeAdapter(name, func(context.Context, entity.Operation, entity.FetchParams) (entity.RawPayload, error) {
		return entity.RawPayload{}, fmt.Errorf("%w: status 500", entity.ErrUpstream)
	})
}

// blocking waits for its context like a well behaved slow upstream.
func blocking(name string) *fakeAdapter {
	return newFakeAdapter(name, func(ctx context.Context, _ entity.Operation, _ entity.FetchParams) (entity.RawPayload, error) {
		<-ctx.Done()
		return entity.RawPayload{}, ctx.Err()
	})
}

// stuck ignores its context entirely.
func stuck(name string, d time.Duration) *fakeAdapter {
	return newFakeAdapter(name, func(context.Context, entity.Operation, entity.FetchParams) (entity.RawPayload, error) {
		time.Sleep(d)
		return entity.RawPayload{Balance: &entity.RawBalance{Amount: "1"}}, nil
	})
}

func returning(name string, payload entity.RawPayload) *fakeAdapter {
	return newFakeAdapter(name, func(context.Context, entity.Operation, entity.FetchParams) (entity.RawPayload, error) {
		return payload, nil
	})
}

type fakeTicker struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  []string
}

func newFakeTicker(prices map[string]string) *fakeTicker {
	t := &fakeTicker{prices: make(map[string]decimal.Decimal)}
	for k, v := range prices {
		t.prices[k] = decimal.RequireFromString(v)
	}
	return t
}

func (t *fakeTicker) Name() string { return "fake" }

func (t *fakeTicker) TickerPrice(_ context.Context, base, quote string) (decimal.Decimal, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, base+"/"+quote)
	p, ok := t.prices[strings.ToUpper(base)]
	if !ok {
		return decimal.Zero, errors.New("unknown symbol")
	}
	return p, nil
}

func (t *fakeTicker) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

type countingRecorder struct {
	mu       sync.Mutex
	attempts []entity.FetchAttempt
}

func (r *countingRecorder) RecordAttempt(a entity.FetchAttempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}
