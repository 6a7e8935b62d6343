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

// binanceInvalidSymbol is the error code Binance answers for a pair it does not list.
const binanceInvalidSymbol = -1121

type binanceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type binanceError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// BinanceClient quotes spot prices from the Binance public ticker endpoint.
type BinanceClient struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewBinanceClient creates a BinanceClient. baseURL is e.g. https://api.binance.com.
func NewBinanceClient(baseURL string, timeout time.Duration, logger *zap.Logger) *BinanceClient {
	return &BinanceClient{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("BinanceClient"),
	}
}

// Name implements port.TickerClient.
func (c *BinanceClient) Name() string { return "binance" }

// TickerPrice returns the last traded price of the base/quote pair, e.g. ETH/USDT.
// Unlisted pairs yield entity.ErrNotFound.
func (c *BinanceClient) TickerPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	symbol := strings.ToUpper(base) + strings.ToUpper(quote)
	requestURL := c.baseURL + "/api/v3/ticker/price?symbol=" + url.QueryEscape(symbol)

	c.logger.Debug("Requesting ticker price", zap.String("symbol", symbol))
	status, body, err := getJSON(ctx, c.client, requestURL, c.timeout, c.logger)
	if err != nil {
		return decimal.Zero, err
	}

	if status != fasthttp.StatusOK {
		var apiErr binanceError
		if jerr := json.Unmarshal(body, &apiErr); jerr == nil && apiErr.Code == binanceInvalidSymbol {
			return decimal.Zero, fmt.Errorf("%w: binance does not list %s", entity.ErrNotFound, symbol)
		}
		c.logger.Warn("Binance API request failed", zap.String("symbol", symbol), zap.Int("statusCode", status), zap.ByteString("responseBody", body))
		return decimal.Zero, fmt.Errorf("%w: binance ticker %s returned status %d", entity.ErrUpstream, symbol, status)
	}

	var ticker binanceTicker
	if err := json.Unmarshal(body, &ticker); err != nil {
		return decimal.Zero, fmt.Errorf("%w: binance ticker %s: %v", entity.ErrDecode, symbol, err)
	}
	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: binance price %q: %v", entity.ErrDecode, ticker.Price, err)
	}
	return price, nil
}
