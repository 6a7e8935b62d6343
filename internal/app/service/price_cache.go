package service

import (
	"context"
	"strings"
	"time"

	"portfolio_aggregator/internal/app/port"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// cachedTicker memoises successful ticker answers for a short TTL. Failures are not cached.
type cachedTicker struct {
	inner port.TickerClient
	cache *cache.Cache
}

// NewCachedTicker wraps inner with a process-wide TTL cache shared by every network.
func NewCachedTicker(inner port.TickerClient, ttl time.Duration) port.TickerClient {
	cleanup := ttl * 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &cachedTicker{inner: inner, cache: cache.New(ttl, cleanup)}
}

func (c *cachedTicker) Name() string { return c.inner.Name() }

func (c *cachedTicker) TickerPrice(ctx context.Context, base, quote string) (decimal.Decimal, error) {
	key := strings.ToUpper(base) + "/" + strings.ToUpper(quote)
	if v, ok := c.cache.Get(key); ok {
		return v.(decimal.Decimal), nil
	}
	price, err := c.inner.TickerPrice(ctx, base, quote)
	if err != nil {
		return decimal.Zero, err
	}
	c.cache.SetDefault(key, price)
	return price, nil
}
