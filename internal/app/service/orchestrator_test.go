package service

import (
	"context"
	"testing"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

func newTestOrchestrator(timeout time.Duration, rec port.AttemptRecorder) *FallbackOrchestrator {
	return NewFallbackOrchestrator(entity.Ethereum, timeout, rec, testLogger)
}

func TestResolveFallbackOrdering(t *testing.T) {
	a := blocking("a")
	b := returning("b", entity.RawPayload{Balance: &entity.RawBalance{Amount: "42"}})
	c := returning("c", entity.RawPayload{Balance: &entity.RawBalance{Amount: "7"}})

	res := newTestOrchestrator(50*time.Millisecond, nil).Resolve(context.Background(), entity.OpBalance, entity.FetchParams{Address: queried}, []port.SourceAdapter{a, b, c})

	if res.Exhausted {
		t.Fatal("cascade reported exhaustion")
	}
	if res.Source != "b" || res.Payload.Balance.Amount != "42" {
		t.Fatalf("resolved from %q amount %q, want b/42", res.Source, res.Payload.Balance.Amount)
	}
	if got := c.calls.Load(); got != 0 {
		t.Fatalf("candidate c called %d times", got)
	}
	if len(res.Attempts) != 2 || res.Attempts[0].Outcome != entity.OutcomeTimeout || res.Attempts[1].Outcome != entity.OutcomeSuccess {
		t.Fatalf("unexpected attempts: %+v", res.Attempts)
	}
}

func TestResolveTimeoutBound(t *testing.T) {
	timeout := 50 * time.Millisecond
	s := stuck("stuck", 2*time.Second)

	start := time.Now()
	res := newTestOrchestrator(timeout, nil).Resolve(context.Background(), entity.OpBalance, entity.FetchParams{}, []port.SourceAdapter{s})
	elapsed := time.Since(start)

	if elapsed > timeout+500*time.Millisecond {
		t.Fatalf("orchestrator blocked for %s", elapsed)
	}
	if !res.Exhausted || res.Payload.Balance == nil || res.Payload.Balance.Amount != "0" {
		t.Fatalf("expected exhausted default balance, got %+v", res)
	}
	if res.Attempts[0].Outcome != entity.OutcomeTimeout {
		t.Fatalf("outcome=%s want timeout", res.Attempts[0].Outcome)
	}
}

func TestResolveEmptyItems(t *testing.T) {
	tokens := entity.RawPayload{Tokens: []entity.RawToken{{Contract: other, Symbol: "USDC", Balance: "1"}}}
	empty := entity.RawPayload{Tokens: []entity.RawToken{}}

	cases := []struct {
		name       string
		candidates []port.SourceAdapter
		source     string
		items      int
		exhausted  bool
	}{
		{"empty first falls through", []port.SourceAdapter{returning("a", empty), returning("b", tokens)}, "b", 1, false},
		{"empty last is success", []port.SourceAdapter{failing("a"), returning("b", empty)}, "b", 0, false},
		{"earlier empty kept when later fail", []port.SourceAdapter{returning("a", empty), failing("b")}, "a", 0, false},
		{"all fail", []port.SourceAdapter{failing("a"), failing("b")}, "", 0, true},
		{"no candidates", nil, "", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := newTestOrchestrator(time.Second, nil).Resolve(context.Background(), entity.OpTokens, entity.FetchParams{}, tc.candidates)
			if res.Source != tc.source || len(res.Payload.Tokens) != tc.items || res.Exhausted != tc.exhausted {
				t.Fatalf("got source=%q items=%d exhausted=%v", res.Source, len(res.Payload.Tokens), res.Exhausted)
			}
			if res.Payload.Tokens == nil {
				t.Fatal("tokens must never be nil")
			}
		})
	}
}

func TestResolveBalanceWithoutPayloadIsDecodeFailure(t *testing.T) {
	a := returning("a", entity.RawPayload{})
	b := returning("b", entity.RawPayload{Balance: &entity.RawBalance{Amount: "5"}})

	res := newTestOrchestrator(time.Second, nil).Resolve(context.Background(), entity.OpBalance, entity.FetchParams{}, []port.SourceAdapter{a, b})
	if res.Source != "b" {
		t.Fatalf("source=%q want b", res.Source)
	}
	if res.Attempts[0].Outcome != entity.OutcomeError {
		t.Fatalf("first outcome=%s want error", res.Attempts[0].Outcome)
	}
}

func TestResolveRecoversPanickingAdapter(t *testing.T) {
	boom := newFakeAdapter("boom", func(context.Context, entity.Operation, entity.FetchParams) (entity.RawPayload, error) {
		panic("selector returned nil")
	})
	ok := returning("ok", entity.RawPayload{Balance: &entity.RawBalance{Amount: "1"}})

	rec := &countingRecorder{}
	res := newTestOrchestrator(time.Second, rec).Resolve(context.Background(), entity.OpBalance, entity.FetchParams{}, []port.SourceAdapter{boom, ok})
	if res.Source != "ok" {
		t.Fatalf("source=%q want ok", res.Source)
	}
	if len(rec.attempts) != 2 || rec.attempts[0].Outcome != entity.OutcomeError {
		t.Fatalf("recorded attempts: %+v", rec.attempts)
	}
}

func TestResolveStopsWhenCallerContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := returning("a", entity.RawPayload{Balance: &entity.RawBalance{Amount: "1"}})

	res := newTestOrchestrator(time.Second, nil).Resolve(ctx, entity.OpBalance, entity.FetchParams{}, []port.SourceAdapter{a})
	if !res.Exhausted || a.calls.Load() != 0 {
		t.Fatalf("expected no calls after cancellation, got exhausted=%v calls=%d", res.Exhausted, a.calls.Load())
	}
}

func TestAllExhausted(t *testing.T) {
	if allExhausted(Resolution{}, Resolution{}) {
		t.Fatal("no candidates anywhere must not count as failure")
	}
	if !allExhausted(Resolution{Candidates: 1, Exhausted: true}, Resolution{}) {
		t.Fatal("single tried and exhausted operation should count")
	}
	if allExhausted(Resolution{Candidates: 1, Exhausted: true}, Resolution{Candidates: 2}) {
		t.Fatal("one successful operation must not count as failure")
	}
}
