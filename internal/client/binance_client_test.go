package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestBinanceTickerPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("symbol") {
		case "ETHUSDT":
			w.Write([]byte(`{"symbol":"ETHUSDT","price":"3012.45000000"}`))
		case "FOOUSDT":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		case "BADUSDT":
			w.Write([]byte(`{"symbol":"BADUSDT","price":"n/a"}`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c := NewBinanceClient(srv.URL+"/", time.Second, zap.NewNop())
	if c.Name() != "binance" {
		t.Fatalf("name=%q", c.Name())
	}

	tests := []struct {
		base    string
		want    string
		wantErr error
	}{
		{base: "eth", want: "3012.45"},
		{base: "FOO", wantErr: entity.ErrNotFound},
		{base: "BAD", wantErr: entity.ErrDecode},
		{base: "XYZ", wantErr: entity.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			got, err := c.TickerPrice(context.Background(), tt.base, "usdt")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err=%v want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("price=%s want %s", got, tt.want)
			}
		})
	}
}

func TestBinanceHonoursDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"symbol":"ETHUSDT","price":"1"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := NewBinanceClient(srv.URL, 5*time.Second, zap.NewNop()).TickerPrice(ctx, "ETH", "USDT")
	if !errors.Is(err, entity.ErrUpstreamTimeout) {
		t.Fatalf("err=%v want timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Fatalf("deadline not honoured: %s", elapsed)
	}
}
