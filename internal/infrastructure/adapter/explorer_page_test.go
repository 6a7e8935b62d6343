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

const addressPage = `<html><body>
<div id="ContentPlaceHolder1_divSummary">
  <div class="card">
    <h4 class="text-muted">ETH Balance</h4>
    <div class="d-flex"><i class="fab fa-ethereum"></i>1,234.5678 ETH</div>
  </div>
</div>
</body></html>`

func TestExplorerPageAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/address/"+testAddress {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(addressPage))
	}))
	defer srv.Close()

	tests := []struct {
		name     string
		selector string
		want     string
		wantErr  error
	}{
		{name: "default selector", want: "1234.5678"},
		{name: "custom selector", selector: "div.d-flex", want: "1234.5678"},
		{name: "markup changed", selector: "#balance", wantErr: entity.ErrDecode},
		{name: "no amount", selector: "h4", wantErr: entity.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			network := entity.NetworkConfig{
				ID:        entity.Ethereum,
				Kind:      entity.KindEVM,
				Endpoints: entity.Endpoints{ExplorerPageURL: srv.URL + "/", BalanceSelector: tt.selector},
			}
			a := NewExplorerPageAdapter(network, testHTTP(), zap.NewNop())

			p, err := a.Fetch(context.Background(), entity.OpBalance, entity.FetchParams{Address: testAddress})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Balance == nil || p.Balance.Amount != tt.want || !p.Balance.Scaled {
				t.Fatalf("balance=%+v", p.Balance)
			}
		})
	}
}

func TestExplorerPageAdapterOnlyServesBalance(t *testing.T) {
	a := NewExplorerPageAdapter(entity.NetworkConfig{ID: entity.Ethereum}, testHTTP(), zap.NewNop())
	if a.Supports(entity.OpTokens) {
		t.Fatal("explorer page must not claim tokens")
	}
	if _, err := a.Fetch(context.Background(), entity.OpTokens, entity.FetchParams{}); !errors.Is(err, entity.ErrUnsupportedOperation) {
		t.Fatalf("err=%v", err)
	}
}
