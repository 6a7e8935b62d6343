package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// usdQuotes are the quote symbols a DEX Screener USD price can stand in for.
var usdQuotes = map[string]bool{"USD": true, "USDT": true, "USDC": true, "DAI": true, "BUSD": true} //nolint:gochecknoglobals

// DEXScreenerClient prices symbols through the DEX Screener pair search.
type DEXScreenerClient struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewDEXScreenerClient creates a DEXScreenerClient. baseURL is e.g. https://api.dexscreener.com.
func NewDEXScreenerClient(baseURL string, timeout time.Duration, logger *zap.Logger) *DEXScreenerClient {
	return &DEXScreenerClient{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("DEXScreenerClient"),
	}
}

// Name implements port.TickerClient.
func (c *DEXScreenerClient) Name() string { return "dexscreener" }

// SearchPairs returns every pair matching query.
func (c *DEXScreenerClient) SearchPairs(ctx context.Context, query string) ([]PairData, error) {
	requestURL := c.baseURL + "/latest/dex/search?q=" + url.QueryEscape(query)
	c.logger.Debug("Requesting pairs from DEX Screener", zap.String("url", requestURL))

	status, body, err := getJSON(ctx, c.client, requestURL, c.timeout, c.logger)
	if err != nil {
		return nil, err
	}
	if status != fasthttp.StatusOK {
		c.logger.Warn("DEX Screener API request failed", zap.String("url", requestURL), zap.Int("statusCode", status), zap.ByteString("responseBody", body))
		return nil, fmt.Errorf("%w: dexscreener search returned status %d", entity.ErrUpstream, status)
	}

	var resp dexSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: dexscreener search: %v", entity.ErrDecode, err)
	}
	return resp.Pairs, nil
}

// TickerPrice returns the USD price of base taken from the most liquid pair whose
// base token is base. Pairs quoted in a USD stablecoin win over other quotes. Only
// USD-like quote symbols are supported.
func (c *DEXScreenerClient) TickerPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	base, quote = strings.ToUpper(base), strings.ToUpper(quote)
	if !usdQuotes[quote] {
		return decimal.Zero, fmt.Errorf("%w: dexscreener only quotes USD, not %s", entity.ErrNotFound, quote)
	}

	pairs, err := c.SearchPairs(ctx, base+" "+quote)
	if err != nil {
		return decimal.Zero, err
	}

	var best *PairData
	bestStable := false
	for i := range pairs {
		p := &pairs[i]
		if !strings.EqualFold(p.BaseToken.Symbol, base) || p.PriceUsd == "" {
			continue
		}
		stable := usdQuotes[strings.ToUpper(p.QuoteToken.Symbol)]
		switch {
		case best == nil,
			stable && !bestStable,
			stable == bestStable && p.liquidityUSD() > best.liquidityUSD():
			best, bestStable = p, stable
		}
	}
	if best == nil {
		return decimal.Zero, fmt.Errorf("%w: no dexscreener pair for %s", entity.ErrNotFound, base)
	}

	price, err := decimal.NewFromString(best.PriceUsd)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: dexscreener priceUsd %q: %v", entity.ErrDecode, best.PriceUsd, err)
	}
	c.logger.Debug("Selected pair", zap.String("symbol", base), zap.String("pair", best.PairAddress), zap.String("dex", best.DexID), zap.Float64("liquidityUsd", best.liquidityUSD()))
	return price, nil
}
