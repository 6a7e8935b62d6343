package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"portfolio_aggregator/internal/domain/entity"

	"go.uber.org/zap"
)

func blockscoutNetwork(baseURL string) entity.NetworkConfig {
	return entity.NetworkConfig{
		ID:             entity.Base,
		ChainID:        8453,
		Kind:           entity.KindEVM,
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		Endpoints:      entity.Endpoints{BlockscoutURL: baseURL},
	}
}

func TestBlockscoutAdapterFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/addresses/"+testAddress, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hash":"` + testAddress + `","coin_balance":"250000000000000000"}`))
	})
	mux.HandleFunc("/api/v2/addresses/"+testAddress+"/token-balances", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"value":"42","token":{"address_hash":"0x833589fcd6edb6e08f4c7c32d4f71b54bda02913","name":"USD Coin","symbol":"USDC","decimals":"6","type":"ERC-20","icon_url":"https://example.test/usdc.png","exchange_rate":"0.9998"}}]`))
	})
	mux.HandleFunc("/api/v2/addresses/"+testAddress+"/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("block_number") == "" {
			w.Write([]byte(`{"items":[{"hash":"0x01"}],"next_page_params":{"block_number":18446744073709,"index":7,"items_count":50}}`))
			return
		}
		if r.URL.Query().Get("block_number") != "18446744073709" || r.URL.Query().Get("index") != "7" {
			t.Errorf("page params lost precision: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"items":[
			{"hash":"` + testHash + `","block_number":123,"timestamp":"2024-01-02T03:04:05.000000Z","from":{"hash":"` + testAddress + `"},"to":null,"created_contract":{"hash":"0xdef0000000000000000000000000000000000002"},"value":"0","fee":{"type":"actual","value":"21000000000000"},"raw_input":"0x6080","method":null,"status":"ok","result":"success"},
			{"hash":"0x02","block_number":122,"timestamp":"2024-01-02T03:00:00.000000Z","from":{"hash":"0x1"},"to":{"hash":"` + testAddress + `"},"value":"1","status":"ok","result":"success"}
		],"next_page_params":null}`))
	})
	mux.HandleFunc("/api/v2/transactions/"+testHash, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hash":"` + testHash + `","block":123,"status":null,"result":"pending"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewBlockscoutAdapter(blockscoutNetwork(srv.URL), testHTTP(), zap.NewNop())
	ctx := context.Background()

	t.Run("balance", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpBalance, entity.FetchParams{Address: testAddress})
		if err != nil || p.Balance.Amount != "250000000000000000" {
			t.Fatalf("balance=%+v err=%v", p.Balance, err)
		}
	})
	t.Run("tokens", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpTokens, entity.FetchParams{Address: testAddress})
		if err != nil || len(p.Tokens) != 1 {
			t.Fatalf("tokens=%+v err=%v", p.Tokens, err)
		}
		tok := p.Tokens[0]
		if tok.Contract != "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913" || tok.Type != "ERC-20" || tok.Price != "0.9998" || tok.Image == "" {
			t.Fatalf("token=%+v", tok)
		}
	})
	t.Run("second page with show limit", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpTransactions, entity.FetchParams{Address: testAddress, Page: 2, Show: 1})
		if err != nil || len(p.Transactions) != 1 {
			t.Fatalf("txs=%+v err=%v", p.Transactions, err)
		}
		tx := p.Transactions[0]
		if tx.Hash != testHash || tx.Block != "123" || tx.To != "0xdef0000000000000000000000000000000000002" || tx.Fee != "21000000000000" || tx.Status != "ok" {
			t.Fatalf("tx=%+v", tx)
		}
	})
	t.Run("page past the end", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpTransactions, entity.FetchParams{Address: testAddress, Page: 3, Show: 10})
		if err != nil || p.Transactions == nil || len(p.Transactions) != 0 {
			t.Fatalf("txs=%+v err=%v", p.Transactions, err)
		}
	})
	t.Run("pending tx", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpTxStatus, entity.FetchParams{Hash: testHash})
		if err != nil || !p.TxStatus.Found || p.TxStatus.Status != "pending" || p.TxStatus.Block != "123" {
			t.Fatalf("status=%+v err=%v", p.TxStatus, err)
		}
	})
}

func TestBlockscoutAdapterNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()
	a := NewBlockscoutAdapter(blockscoutNetwork(srv.URL), testHTTP(), zap.NewNop())
	ctx := context.Background()

	p, err := a.Fetch(ctx, entity.OpBalance, entity.FetchParams{Address: testAddress})
	if err != nil || p.Balance.Amount != "0" {
		t.Fatalf("balance=%+v err=%v", p.Balance, err)
	}
	p, err = a.Fetch(ctx, entity.OpTxStatus, entity.FetchParams{Hash: testHash})
	if err != nil || p.TxStatus.Found {
		t.Fatalf("status=%+v err=%v", p.TxStatus, err)
	}
	if _, err := a.Fetch(ctx, entity.OpGasTracker, entity.FetchParams{}); !errors.Is(err, entity.ErrUnsupportedOperation) {
		t.Fatalf("err=%v", err)
	}
}
