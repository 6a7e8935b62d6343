package service

import (
	"testing"

	"portfolio_aggregator/internal/domain/entity"
)

func TestRegistry(t *testing.T) {
	eth := &fakeAggregator{network: evmNetwork}
	btc := &fakeAggregator{network: entity.NetworkConfig{ID: entity.Bitcoin}}

	reg, err := NewRegistry(btc, eth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, ok := reg.Aggregator(entity.Ethereum); !ok || got != eth {
		t.Fatal("ethereum not registered")
	}
	if _, ok := reg.Aggregator(entity.Polygon); ok {
		t.Fatal("polygon should not be registered")
	}
	networks := reg.Networks()
	if len(networks) != 2 || networks[0].ID != entity.Bitcoin || networks[1].ID != entity.Ethereum {
		t.Fatalf("networks: %+v", networks)
	}

	if _, err := NewRegistry(eth, eth); err == nil {
		t.Fatal("duplicate network accepted")
	}
	if _, err := NewRegistry(&fakeAggregator{network: entity.NetworkConfig{ID: "solana"}}); err == nil {
		t.Fatal("unknown network accepted")
	}
}
