package service

import (
	"context"
	"strings"

	"portfolio_aggregator/internal/app/port"

	"github.com/shopspring/decimal"
)

// DefaultStablecoins are priced at exactly 1.00 without asking the ticker.
var DefaultStablecoins = []string{"USDT", "USDC", "DAI", "FRAX", "LUSD"}

// DefaultPriceAliases maps wrapped and staked derivatives onto the symbol whose market
// price they borrow.
var DefaultPriceAliases = map[string]string{
	"WETH":    "ETH",
	"CBETH":   "ETH",
	"STETH":   "ETH",
	"WMATIC":  "MATIC",
	"STMATIC": "MATIC",
	"WBNB":    "BNB",
	"WAVAX":   "AVAX",
	"WBTC":    "BTC",
}

var stablePrice = decimal.NewFromInt(1)

// MergeAliases overlays network specific aliases on top of base. Keys are case-insensitive.
func MergeAliases(base, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	for k, v := range overrides {
		out[strings.ToUpper(k)] = strings.ToUpper(v)
	}
	return out
}

type priceResolverImpl struct {
	ticker      port.TickerClient
	quote       string
	stablecoins map[string]struct{}
	aliases     map[string]string
	logger      port.Logger
}

// NewPriceResolver creates a resolver for one network. quote is the fiat-like symbol
// prices are expressed in, e.g. "USDT".
func NewPriceResolver(ticker port.TickerClient, quote string, stablecoins []string, aliases map[string]string, logger port.Logger) port.PriceResolver {
	stable := make(map[string]struct{}, len(stablecoins))
	for _, s := range stablecoins {
		stable[strings.ToUpper(s)] = struct{}{}
	}
	return &priceResolverImpl{
		ticker:      ticker,
		quote:       strings.ToUpper(quote),
		stablecoins: stable,
		aliases:     MergeAliases(nil, aliases),
		logger:      logger,
	}
}

// ResolvePrice implements port.PriceResolver.
func (r *priceResolverImpl) ResolvePrice(ctx context.Context, symbol string) decimal.Decimal {
	price, _ := r.Lookup(ctx, symbol)
	return price
}

// Lookup implements port.PriceResolver.
func (r *priceResolverImpl) Lookup(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Zero, false
	}
	if _, ok := r.stablecoins[symbol]; ok {
		return stablePrice, true
	}

	reference := symbol
	if alias, ok := r.aliases[symbol]; ok {
		reference = alias
	}
	if reference == r.quote {
		return stablePrice, true
	}

	price, err := r.ticker.TickerPrice(ctx, reference, r.quote)
	if err != nil {
		r.logger.Debug("Price lookup failed, using zero", "symbol", symbol, "reference", reference, "ticker", r.ticker.Name(), "error", err)
		return decimal.Zero, false
	}
	if !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}
