package sentiment

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ZanzyTHEbar/belief-engine/internal/cache"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
)

// CachedAnalyzer memoizes results of an inner analyzer by input text.
// Cache errors are logged and never fail an analysis.
type CachedAnalyzer struct {
	inner   Analyzer
	store   cache.Store
	metrics cache.Metrics
	logger  *monitoring.Logger
}

func NewCachedAnalyzer(inner Analyzer, store cache.Store, metrics cache.Metrics) *CachedAnalyzer {
	return &CachedAnalyzer{inner: inner, store: store, metrics: metrics}
}

// WithLogger enables debug logging of cache lookups.
func (c *CachedAnalyzer) WithLogger(l *monitoring.Logger) *CachedAnalyzer {
	c.logger = l
	return c
}

func (c *CachedAnalyzer) Name() string { return c.inner.Name() }

func (c *CachedAnalyzer) Analyze(ctx context.Context, in Input) (Result, error) {
	key := cache.Key("sentiment", c.inner.Name(), in.Title, in.Content)

	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.Warn("Sentiment cache read failed", "error", err)
	}
	if ok {
		var r Result
		if err := json.Unmarshal(data, &r); err == nil {
			c.hit(key)
			return r, nil
		}
	}
	c.miss(key)

	r, err := c.inner.Analyze(ctx, in)
	if err != nil {
		return r, err
	}
	if data, err := json.Marshal(r); err == nil {
		if err := c.store.Set(ctx, key, data); err != nil {
			slog.Warn("Sentiment cache write failed", "error", err)
		}
	}
	return r, nil
}

func (c *CachedAnalyzer) hit(key string) {
	if c.metrics != nil {
		c.metrics.IncrementCacheHit()
	}
	if c.logger != nil {
		c.logger.CacheLogger("get", key, true)
	}
}

func (c *CachedAnalyzer) miss(key string) {
	if c.metrics != nil {
		c.metrics.IncrementCacheMiss()
	}
	if c.logger != nil {
		c.logger.CacheLogger("get", key, false)
	}
}
