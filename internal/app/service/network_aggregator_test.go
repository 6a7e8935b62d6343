package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
)

func newTestAggregator(sources map[entity.Operation][]port.SourceAdapter, ticker port.TickerClient) port.NetworkAggregator {
	orch := NewFallbackOrchestrator(evmNetwork.ID, time.Second, nil, testLogger)
	prices := NewPriceResolver(ticker, evmNetwork.FiatSymbol, DefaultStablecoins, DefaultPriceAliases, testLogger)
	settings := AggregatorSettings{AggregateTimeout: 2 * time.Second, TransactionsTimeout: time.Second}
	return NewNetworkAggregator(evmNetwork, sources, orch, prices, NewNormalizer(), settings, testLogger)
}

func balancePayload(wei string) entity.RawPayload {
	return entity.RawPayload{Balance: &entity.RawBalance{Amount: wei}}
}

func TestGetPortfolioFallsBackToSecondBalanceSource(t *testing.T) {
	primary := failing("etherscan")
	secondary := returning("rpc", balancePayload("1500000000000000000"))
	agg := newTestAggregator(map[entity.Operation][]port.SourceAdapter{
		entity.OpBalance:      {primary, secondary},
		entity.OpTokens:       {returning("etherscan", entity.RawPayload{Tokens: []entity.RawToken{}})},
		entity.OpTransactions: {returning("etherscan", entity.RawPayload{Transactions: []entity.RawTransaction{}})},
	}, newFakeTicker(map[string]string{"ETH": "2000"}))

	p, err := agg.GetPortfolio(context.Background(), entity.PortfolioRequest{Address: queried})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Balance != "1.5" || p.FiatBalance != 3000 {
		t.Fatalf("balance=%s fiat=%v", p.Balance, p.FiatBalance)
	}
	if p.Type != entity.PortfolioTypeAccount || p.Account.Price != "2000.00" {
		t.Fatalf("portfolio: %+v", p)
	}
	if primary.calls.Load() != 1 || secondary.calls.Load() != 1 {
		t.Fatalf("calls primary=%d secondary=%d", primary.calls.Load(), secondary.calls.Load())
	}
	if len(p.Transactions) != 0 {
		t.Fatalf("expected no transactions, got %+v", p.Transactions)
	}
}

func TestGetPortfolioPartialFailures(t *testing.T) {
	n := NewNormalizer()
	for mask := 0; mask < 8; mask++ {
		balanceOK, tokensOK, txOK := mask&1 != 0, mask&2 != 0, mask&4 != 0
		t.Run(fmt.Sprintf("balance=%t/tokens=%t/tx=%t", balanceOK, tokensOK, txOK), func(t *testing.T) {
			sources := map[entity.Operation][]port.SourceAdapter{
				entity.OpBalance:      {failing("etherscan")},
				entity.OpTokens:       {failing("etherscan")},
				entity.OpTransactions: {failing("etherscan")},
			}
			if balanceOK {
				sources[entity.OpBalance] = []port.SourceAdapter{returning("rpc", balancePayload("2000000000000000000"))}
			}
			if tokensOK {
				sources[entity.OpTokens] = []port.SourceAdapter{returning("blockscout", entity.RawPayload{Tokens: []entity.RawToken{
					{Contract: other, Symbol: "USDC", Balance: "1000000", Decimals: "6"},
				}})}
			}
			if txOK {
				sources[entity.OpTransactions] = []port.SourceAdapter{returning("blockscout", entity.RawPayload{Transactions: []entity.RawTransaction{
					{Hash: "0x" + fmt.Sprintf("%064x", 1), From: other, To: queried, Value: "1"},
				}})}
			}
			agg := newTestAggregator(sources, newFakeTicker(map[string]string{"ETH": "100"}))

			p, err := agg.GetPortfolio(context.Background(), entity.PortfolioRequest{Address: queried})
			if vErr := n.Validate(p); vErr != nil {
				t.Fatalf("structurally invalid portfolio: %v", vErr)
			}
			if p.TokenHoldings.Tokens[0].TokenType != entity.TokenTypeNative {
				t.Fatalf("native holding not first: %+v", p.TokenHoldings.Tokens[0])
			}

			if txOK {
				if len(p.Transactions) != 1 || p.Transactions[0].Traffic != entity.TrafficIn {
					t.Fatalf("transactions: %+v", p.Transactions)
				}
			} else if len(p.Transactions) != 1 || p.Transactions[0].Traffic != entity.TrafficError {
				t.Fatalf("expected single error row, got %+v", p.Transactions)
			}

			wantTokens := 1
			if tokensOK {
				wantTokens = 2
			}
			if p.TokenHoldings.Total != wantTokens {
				t.Fatalf("total=%d want %d", p.TokenHoldings.Total, wantTokens)
			}

			wantBalance := "0"
			if balanceOK {
				wantBalance = "2"
			}
			if p.Balance != wantBalance {
				t.Fatalf("balance=%s want %s", p.Balance, wantBalance)
			}

			if mask == 0 {
				if !errors.Is(err, entity.ErrAllSourcesFailed) || p.Type != entity.PortfolioTypeError {
					t.Fatalf("all failed: err=%v type=%s", err, p.Type)
				}
				return
			}
			if err != nil || p.Type != entity.PortfolioTypeAccount {
				t.Fatalf("partial failure: err=%v type=%s", err, p.Type)
			}
		})
	}
}

func TestGetPortfolioMalformedAddress(t *testing.T) {
	src := returning("rpc", balancePayload("1"))
	ticker := newFakeTicker(map[string]string{"ETH": "1"})
	agg := newTestAggregator(map[entity.Operation][]port.SourceAdapter{entity.OpBalance: {src}}, ticker)

	p, err := agg.GetPortfolio(context.Background(), entity.PortfolioRequest{Address: "0x123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Type != entity.PortfolioTypeError || p.Address != entity.ZeroAddress {
		t.Fatalf("expected default portfolio, got %+v", p)
	}
	if src.calls.Load() != 0 || ticker.callCount() != 0 {
		t.Fatal("malformed address must not reach upstreams")
	}
}

func TestGetPortfolioPricesStablecoinsWithoutTicker(t *testing.T) {
	ticker := newFakeTicker(map[string]string{"ETH": "2000"})
	agg := newTestAggregator(map[entity.Operation][]port.SourceAdapter{
		entity.OpBalance: {returning("rpc", balancePayload("0"))},
		entity.OpTokens: {returning("rpc", entity.RawPayload{Tokens: []entity.RawToken{
			{Contract: other, Symbol: "USDC", Balance: "2500000", Decimals: "6"},
			{Contract: "0x1110000000000000000000000000000000000003", Symbol: "WETH", Balance: "1000000000000000000", Decimals: "18"},
		}})},
		entity.OpTransactions: {returning("rpc", entity.RawPayload{Transactions: []entity.RawTransaction{}})},
	}, ticker)

	p, err := agg.GetPortfolio(context.Background(), entity.PortfolioRequest{Address: queried})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tokens := p.TokenHoldings.Tokens
	if len(tokens) != 3 {
		t.Fatalf("tokens: %+v", tokens)
	}
	if tokens[1].Symbol != "WETH" || tokens[1].FiatBalance != "2000.00" {
		t.Fatalf("WETH should borrow the ETH price: %+v", tokens[1])
	}
	if tokens[2].Symbol != "USDC" || tokens[2].FiatBalance != "2.50" || tokens[2].Price != "1.00" {
		t.Fatalf("USDC: %+v", tokens[2])
	}
	if p.TokenHoldings.Balance != "2002.50" {
		t.Fatalf("holdings balance=%s", p.TokenHoldings.Balance)
	}
	for _, c := range ticker.calls {
		if c == "USDC/USDT" {
			t.Fatal("stablecoin price must not hit the ticker")
		}
	}
}

func TestGetPortfolioClampsPaging(t *testing.T) {
	var got entity.FetchParams
	txSource := newFakeAdapter("rpc", func(_ context.Context, _ entity.Operation, params entity.FetchParams) (entity.RawPayload, error) {
		got = params
		return entity.RawPayload{Transactions: []entity.RawTransaction{}}, nil
	})
	agg := newTestAggregator(map[entity.Operation][]port.SourceAdapter{entity.OpTransactions: {txSource}}, newFakeTicker(nil))

	if _, err := agg.GetTransactions(context.Background(), entity.PortfolioRequest{Address: queried, Show: 1000}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Page != 1 || got.Show != 100 || got.Address != queried {
		t.Fatalf("params: %+v", got)
	}
}

func TestGetPortfolioSlowTransactionsDoNotBlockResult(t *testing.T) {
	orch := NewFallbackOrchestrator(evmNetwork.ID, 5*time.Second, nil, testLogger)
	prices := NewPriceResolver(newFakeTicker(map[string]string{"ETH": "1"}), "USDT", DefaultStablecoins, nil, testLogger)
	agg := NewNetworkAggregator(evmNetwork, map[entity.Operation][]port.SourceAdapter{
		entity.OpBalance:      {returning("rpc", balancePayload("1000000000000000000"))},
		entity.OpTransactions: {blocking("etherscan")},
	}, orch, prices, NewNormalizer(), AggregatorSettings{AggregateTimeout: 2 * time.Second, TransactionsTimeout: 50 * time.Millisecond}, testLogger)

	start := time.Now()
	p, err := agg.GetPortfolio(context.Background(), entity.PortfolioRequest{Address: queried})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("portfolio took %v", elapsed)
	}
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Balance != "1" || len(p.Transactions) != 1 || p.Transactions[0].Traffic != entity.TrafficError {
		t.Fatalf("portfolio: %+v", p)
	}
}

func TestGetTransactionsAllFailed(t *testing.T) {
	agg := newTestAggregator(map[entity.Operation][]port.SourceAdapter{
		entity.OpTransactions: {failing("etherscan"), failing("blockscout")},
	}, newFakeTicker(nil))

	txs, err := agg.GetTransactions(context.Background(), entity.PortfolioRequest{Address: queried})
	if !errors.Is(err, entity.ErrAllSourcesFailed) {
		t.Fatalf("err=%v", err)
	}
	if len(txs) != 1 || txs[0].Traffic != entity.TrafficError {
		t.Fatalf("txs: %+v", txs)
	}

	if _, err := agg.GetTransactions(context.Background(), entity.PortfolioRequest{Address: "nope"}); !errors.Is(err, entity.ErrValidation) {
		t.Fatalf("malformed address err=%v", err)
	}
}

func TestGetTransactionStatus(t *testing.T) {
	hash := fmt.Sprintf("0x%064x", 7)
	tests := []struct {
		name    string
		hash    string
		sources []port.SourceAdapter
		wantErr error
		want    entity.TxStatus
	}{
		{
			name:    "malformed hash",
			hash:    "nothex",
			sources: []port.SourceAdapter{returning("rpc", entity.RawPayload{TxStatus: &entity.RawTxStatus{Found: true}})},
			wantErr: entity.ErrValidation,
		},
		{
			name:    "not found",
			hash:    hash,
			sources: []port.SourceAdapter{returning("rpc", entity.RawPayload{TxStatus: &entity.RawTxStatus{}})},
			wantErr: entity.ErrNotFound,
		},
		{
			name:    "all sources failed",
			hash:    hash,
			sources: []port.SourceAdapter{failing("etherscan"), failing("rpc")},
			wantErr: entity.ErrAllSourcesFailed,
		},
		{
			name: "found after fallback",
			hash: hash,
			sources: []port.SourceAdapter{
				failing("etherscan"),
				returning("rpc", entity.RawPayload{TxStatus: &entity.RawTxStatus{Found: true, Status: "0x0", Block: "0x2a"}}),
			},
			want: entity.TxStatusFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := newTestAggregator(map[entity.Operation][]port.SourceAdapter{entity.OpTxStatus: tt.sources}, newFakeTicker(nil))
			res, err := agg.GetTransactionStatus(context.Background(), tt.hash)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != tt.want || res.Block != 42 || res.Source != "rpc" || res.Hash != hash {
				t.Fatalf("result: %+v", res)
			}
		})
	}
}

func TestGetGasTracker(t *testing.T) {
	agg := newTestAggregator(map[entity.Operation][]port.SourceAdapter{}, newFakeTicker(nil))
	if _, err := agg.GetGasTracker(context.Background()); !errors.Is(err, entity.ErrUnsupportedOperation) {
		t.Fatalf("err=%v", err)
	}

	agg = newTestAggregator(map[entity.Operation][]port.SourceAdapter{
		entity.OpGasTracker: {returning("etherscan", entity.RawPayload{Gas: &entity.RawGas{Safe: "10", Propose: "11", Fast: "12", BaseFee: "9.5"}})},
	}, newFakeTicker(nil))
	g, err := agg.GetGasTracker(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Fast != "12" || g.BaseFee != "9.5" || g.Source != "etherscan" || g.Network != entity.Ethereum {
		t.Fatalf("gas: %+v", g)
	}
}
