package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"portfolio_aggregator/internal/domain/entity"

	"go.uber.org/zap"
)

const (
	btcAddress = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	btcOther   = "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"
	btcTxID    = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
)

func TestEsploraAdapter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/address/"+btcAddress, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"address":"` + btcAddress + `","chain_stats":{"funded_txo_sum":150000000,"spent_txo_sum":50000000},"mempool_stats":{"funded_txo_sum":1,"spent_txo_sum":0}}`))
	})
	mux.HandleFunc("/api/address/"+btcAddress+"/txs", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"txid":"` + btcTxID + `","fee":1000,"status":{"confirmed":true,"block_height":800000,"block_time":1704164645},
			 "vin":[{"prevout":{"scriptpubkey_address":"` + btcAddress + `","value":100000}}],
			 "vout":[{"scriptpubkey_address":"` + btcOther + `","value":60000},{"scriptpubkey_address":"` + btcAddress + `","value":39000}]},
			{"txid":"` + strings.Repeat("b", 64) + `","fee":500,"status":{"confirmed":false},
			 "vin":[{"prevout":{"scriptpubkey_address":"` + btcOther + `","value":20000}}],
			 "vout":[{"scriptpubkey_address":"` + btcAddress + `","value":19500}]}
		]`))
	})
	mux.HandleFunc("/api/tx/"+btcTxID+"/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"confirmed":true,"block_height":800000,"block_hash":"00","block_time":1704164645}`))
	})
	mux.HandleFunc("/api/tx/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Transaction not found", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	name := EsploraSourceName(srv.URL + "/api")
	if !strings.HasPrefix(name, "esplora:127.0.0.1:") {
		t.Fatalf("name=%q", name)
	}
	a := NewEsploraAdapter(name, srv.URL+"/api/", testHTTP(), zap.NewNop())
	ctx := context.Background()

	t.Run("confirmed balance", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpBalance, entity.FetchParams{Address: btcAddress})
		if err != nil || p.Balance.Amount != "100000000" {
			t.Fatalf("balance=%+v err=%v", p.Balance, err)
		}
	})
	t.Run("transactions", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpTransactions, entity.FetchParams{Address: btcAddress, Page: 1, Show: 25})
		if err != nil || len(p.Transactions) != 2 {
			t.Fatalf("txs=%+v err=%v", p.Transactions, err)
		}
		out, in := p.Transactions[0], p.Transactions[1]
		if out.From != btcAddress || out.To != btcOther || out.Value != "60000" || out.Fee != "1000" || out.Status != "confirmed" || out.Block != "800000" {
			t.Fatalf("outgoing=%+v", out)
		}
		if in.From != btcOther || in.To != btcAddress || in.Value != "19500" || in.Status != "pending" || in.Timestamp != "" {
			t.Fatalf("incoming=%+v", in)
		}
	})
	t.Run("status", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpTxStatus, entity.FetchParams{Hash: btcTxID})
		if err != nil || !p.TxStatus.Found || p.TxStatus.Status != "confirmed" || p.TxStatus.Block != "800000" {
			t.Fatalf("status=%+v err=%v", p.TxStatus, err)
		}
		p, err = a.Fetch(ctx, entity.OpTxStatus, entity.FetchParams{Hash: strings.Repeat("c", 64)})
		if err != nil || p.TxStatus.Found {
			t.Fatalf("status=%+v err=%v", p.TxStatus, err)
		}
	})
	if a.Supports(entity.OpTokens) || a.Supports(entity.OpGasTracker) {
		t.Fatal("esplora has no token or gas endpoints")
	}
}
