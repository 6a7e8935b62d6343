package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/shopspring/decimal"
)

// TokenProvider returns the known token contracts of a network.
type TokenProvider interface {
	GetTokensByNetwork(activeNetworks []entity.NetworkConfig) (map[entity.NetworkID][]entity.TokenInfo, error)
}

// PriceResolver resolves a fiat unit price for an asset symbol.
type PriceResolver interface {
	// ResolvePrice never fails; an unknown price is zero.
	ResolvePrice(ctx context.Context, symbol string) decimal.Decimal
	// Lookup is ResolvePrice with the known/unknown distinction kept.
	Lookup(ctx context.Context, symbol string) (decimal.Decimal, bool)
}

// TickerClient queries an external market for the price of base quoted in quote.
type TickerClient interface {
	Name() string
	TickerPrice(ctx context.Context, base, quote string) (decimal.Decimal, error)
}
