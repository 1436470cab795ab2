package marketdata

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/metrics"
)

// PriceCache stores recent spot prices. Implementations must be safe for
// concurrent use. A miss is not an error.
type PriceCache interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, bool)
	SetPrice(ctx context.Context, symbol string, price decimal.Decimal)
}

// RedisCache is a PriceCache on Redis with per-entry TTL. Cache failures are
// treated as misses so a Redis outage degrades to uncached lookups.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func priceKey(symbol string) string { return "quantmesh:price:" + symbol }

// GetPrice implements PriceCache.
func (c *RedisCache) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	val, err := c.rdb.Get(ctx, priceKey(symbol)).Result()
	if err != nil {
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

// SetPrice implements PriceCache.
func (c *RedisCache) SetPrice(ctx context.Context, symbol string, price decimal.Decimal) {
	c.rdb.Set(ctx, priceKey(symbol), price.String(), c.ttl)
}

// CachedService wraps a Service, answering spot price lookups from the cache
// where possible. Series, signal and portfolio reads always go upstream;
// only spot prices are hot enough to justify caching.
type CachedService struct {
	inner Service
	cache PriceCache
}

// NewCachedService wraps inner with the given cache.
func NewCachedService(inner Service, cache PriceCache) *CachedService {
	return &CachedService{inner: inner, cache: cache}
}

// SpotPrices returns cached prices where fresh and fetches the remainder in
// one upstream call.
func (s *CachedService) SpotPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(symbols))
	var missing []string
	for _, sym := range symbols {
		if price, ok := s.cache.GetPrice(ctx, sym); ok {
			metrics.CacheHits.Inc()
			out[sym] = price
		} else {
			metrics.CacheMisses.Inc()
			missing = append(missing, sym)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := s.inner.SpotPrices(ctx, missing)
	if err != nil {
		return nil, err
	}
	for sym, price := range fetched {
		s.cache.SetPrice(ctx, sym, price)
		out[sym] = price
	}
	return out, nil
}

// PriceSeries delegates to the wrapped service.
func (s *CachedService) PriceSeries(ctx context.Context, symbol string, days int) ([]float64, error) {
	return s.inner.PriceSeries(ctx, symbol, days)
}

// Predictions delegates to the wrapped service.
func (s *CachedService) Predictions(ctx context.Context, address string) ([]core.Prediction, error) {
	return s.inner.Predictions(ctx, address)
}

// Portfolio delegates to the wrapped service.
func (s *CachedService) Portfolio(ctx context.Context, address string) (core.PortfolioData, error) {
	return s.inner.Portfolio(ctx, address)
}
