package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/httpclient"

	"go.uber.org/zap"
)

const (
	testAddress = "0xabc0000000000000000000000000000000000001"
	testHash    = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
)

func testHTTP() *httpclient.Client {
	return httpclient.New(httpclient.Options{Timeout: 2 * time.Second}, zap.NewNop())
}

func etherscanNetwork(apiURL string) entity.NetworkConfig {
	return entity.NetworkConfig{
		ID:             entity.Ethereum,
		ChainID:        1,
		Kind:           entity.KindEVM,
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		Endpoints:      entity.Endpoints{ExplorerAPIURL: apiURL, ExplorerAPIKey: "key"},
	}
}

func etherscanServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apikey") != "key" || q.Get("chainid") != "1" {
			t.Errorf("missing apikey/chainid in %s", r.URL.RawQuery)
		}
		body, ok := responses[q.Get("action")]
		if !ok {
			http.Error(w, "unexpected action", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(body))
	}))
}

func TestEtherscanAdapterFetch(t *testing.T) {
	srv := etherscanServer(t, map[string]string{
		"balance": `{"status":"1","message":"OK","result":"1500000000000000000"}`,
		"addresstokenbalance": `{"status":"1","message":"OK","result":[
			{"TokenAddress":"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48","TokenName":"USD Coin","TokenSymbol":"USDC","TokenQuantity":"2500000","TokenDivisor":"6","TokenPriceUSD":"1.0001"}]}`,
		"txlist": `{"status":"1","message":"OK","result":[
			{"blockNumber":"19000000","timeStamp":"1704164645","hash":"` + testHash + `","from":"` + testAddress + `","to":"","contractAddress":"0xdef0000000000000000000000000000000000002","value":"0","gasPrice":"1000000000","gasUsed":"21000","isError":"0","txreceipt_status":"1","input":"0x60806040","functionName":""}]}`,
		"eth_getTransactionReceipt": `{"jsonrpc":"2.0","id":1,"result":{"status":"0x1","blockNumber":"0x121eac0"}}`,
		"gasoracle": `{"status":"1","message":"OK","result":{"SafeGasPrice":"10","ProposeGasPrice":"11","FastGasPrice":"12.5","suggestBaseFee":"9.8"}}`,
	})
	defer srv.Close()
	a := NewEtherscanAdapter(etherscanNetwork(srv.URL), testHTTP(), zap.NewNop())
	ctx := context.Background()

	t.Run("balance", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpBalance, entity.FetchParams{Address: testAddress})
		if err != nil || p.Balance == nil || p.Balance.Amount != "1500000000000000000" {
			t.Fatalf("payload=%+v err=%v", p.Balance, err)
		}
	})
	t.Run("tokens", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpTokens, entity.FetchParams{Address: testAddress})
		if err != nil || len(p.Tokens) != 1 {
			t.Fatalf("tokens=%+v err=%v", p.Tokens, err)
		}
		tok := p.Tokens[0]
		if tok.Symbol != "USDC" || tok.Decimals != "6" || tok.Balance != "2500000" || tok.Price != "1.0001" {
			t.Fatalf("token=%+v", tok)
		}
	})
	t.Run("transactions", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpTransactions, entity.FetchParams{Address: testAddress, Page: 1, Show: 10})
		if err != nil || len(p.Transactions) != 1 {
			t.Fatalf("txs=%+v err=%v", p.Transactions, err)
		}
		tx := p.Transactions[0]
		if tx.To != "0xdef0000000000000000000000000000000000002" || tx.Status != "1" || tx.Input != "0x60806040" {
			t.Fatalf("tx=%+v", tx)
		}
	})
	t.Run("txStatus", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpTxStatus, entity.FetchParams{Hash: testHash})
		if err != nil || p.TxStatus == nil || !p.TxStatus.Found || p.TxStatus.Status != "0x1" || p.TxStatus.Block != "0x121eac0" {
			t.Fatalf("status=%+v err=%v", p.TxStatus, err)
		}
	})
	t.Run("gas", func(t *testing.T) {
		p, err := a.Fetch(ctx, entity.OpGasTracker, entity.FetchParams{})
		want := entity.RawGas{Safe: "10", Propose: "11", Fast: "12.5", BaseFee: "9.8"}
		if err != nil || p.Gas == nil || *p.Gas != want {
			t.Fatalf("gas=%+v err=%v", p.Gas, err)
		}
	})
}

func TestEtherscanAdapterEnvelopes(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		op      entity.Operation
		body    string
		wantErr error
		empty   bool
	}{
		{name: "no transactions is empty", action: "txlist", op: entity.OpTransactions, body: `{"status":"0","message":"No transactions found","result":[]}`, empty: true},
		{name: "rate limit is upstream", action: "balance", op: entity.OpBalance, body: `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`, wantErr: entity.ErrUpstream},
		{name: "wrong shape is decode", action: "balance", op: entity.OpBalance, body: `{"status":"1","message":"OK","result":{"unexpected":true}}`, wantErr: entity.ErrDecode},
		{name: "missing result is decode", action: "balance", op: entity.OpBalance, body: `{"status":"1","message":"OK"}`, wantErr: entity.ErrDecode},
		{name: "unknown receipt", action: "eth_getTransactionReceipt", op: entity.OpTxStatus, body: `{"jsonrpc":"2.0","id":1,"result":null}`},
		{name: "proxy error", action: "eth_getTransactionReceipt", op: entity.OpTxStatus, body: `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"invalid"}}`, wantErr: entity.ErrUpstream},
		{name: "empty gas oracle", action: "gasoracle", op: entity.OpGasTracker, body: `{"status":"1","message":"OK","result":{}}`, wantErr: entity.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := etherscanServer(t, map[string]string{tt.action: tt.body})
			defer srv.Close()
			a := NewEtherscanAdapter(etherscanNetwork(srv.URL), testHTTP(), zap.NewNop())

			p, err := a.Fetch(context.Background(), tt.op, entity.FetchParams{Address: testAddress, Hash: testHash, Page: 1, Show: 10})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.empty && (p.Transactions == nil || len(p.Transactions) != 0) {
				t.Fatalf("want empty non-nil list, got %+v", p.Transactions)
			}
			if tt.op == entity.OpTxStatus && (p.TxStatus == nil || p.TxStatus.Found) {
				t.Fatalf("want not-found status, got %+v", p.TxStatus)
			}
		})
	}
}

func TestEtherscanAdapterHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()
	a := NewEtherscanAdapter(etherscanNetwork(srv.URL), testHTTP(), zap.NewNop())

	if _, err := a.Fetch(context.Background(), entity.OpBalance, entity.FetchParams{Address: testAddress}); !errors.Is(err, entity.ErrUpstream) {
		t.Fatalf("err=%v", err)
	}
}

func TestEtherscanAdapterIsContractVerified(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "verified", body: `{"status":"1","message":"OK","result":[{"SourceCode":"contract A {}","ABI":"[]","ContractName":"A"}]}`, want: true},
		{name: "unverified", body: `{"status":"1","message":"OK","result":[{"SourceCode":"","ABI":"Contract source code not verified","ContractName":""}]}`, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := etherscanServer(t, map[string]string{"getsourcecode": tt.body})
			defer srv.Close()
			a := NewEtherscanAdapter(etherscanNetwork(srv.URL), testHTTP(), zap.NewNop())

			got, err := a.IsContractVerified(context.Background(), testAddress)
			if err != nil || got != tt.want {
				t.Fatalf("got=%v err=%v", got, err)
			}
		})
	}
}
