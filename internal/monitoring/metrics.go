package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxResponseSamples = 1000

// Metrics holds process-wide counters. Counters are updated atomically; the
// map-backed statistics are guarded by their own mutexes.
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	CacheHits           int64
	CacheMisses         int64
	ForecastUpdates     int64
	DegenerateUpdates   int64
	Predictions         int64
	ArticlesStored      int64
	ArticlesAnalyzed    int64
	AnalysisFailures    int64
	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	responseTimes      []time.Duration
	responseTimesMutex sync.RWMutex

	requestCountByStatus map[int]int64
	statusMutex          sync.RWMutex

	CircuitBreakerOpens  int64
	CircuitBreakerCloses int64

	externalAPIRequests   map[string]int64
	externalAPIErrorCount map[string]int64
	externalAPIMutex      sync.RWMutex

	RateLimitBlocks        int64
	RateLimitRedisErrors   int64
	RateLimitFallbackCount int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:             time.Now(),
		responseTimes:         make([]time.Duration, 0, maxResponseSamples),
		requestCountByStatus:  make(map[int]int64),
		externalAPIRequests:   make(map[string]int64),
		externalAPIErrorCount: make(map[string]int64),
	}
}

func (m *Metrics) IncrementRequest() { atomic.AddInt64(&m.RequestCount, 1) }

func (m *Metrics) IncrementError() { atomic.AddInt64(&m.ErrorCount, 1) }

func (m *Metrics) IncrementCacheHit() { atomic.AddInt64(&m.CacheHits, 1) }

func (m *Metrics) IncrementCacheMiss() { atomic.AddInt64(&m.CacheMisses, 1) }

func (m *Metrics) IncrementCircuitBreakerOpen() { atomic.AddInt64(&m.CircuitBreakerOpens, 1) }

func (m *Metrics) IncrementCircuitBreakerClose() { atomic.AddInt64(&m.CircuitBreakerCloses, 1) }

func (m *Metrics) IncrementRateLimitBlock() { atomic.AddInt64(&m.RateLimitBlocks, 1) }

func (m *Metrics) IncrementRateLimitRedisError() { atomic.AddInt64(&m.RateLimitRedisErrors, 1) }

func (m *Metrics) IncrementRateLimitFallback() { atomic.AddInt64(&m.RateLimitFallbackCount, 1) }

// RecordUpdate counts an evidence update; degenerate marks one rejected
// because the evidence left no probability mass.
func (m *Metrics) RecordUpdate(degenerate bool) {
	if degenerate {
		atomic.AddInt64(&m.DegenerateUpdates, 1)
		return
	}
	atomic.AddInt64(&m.ForecastUpdates, 1)
}

func (m *Metrics) RecordPrediction() { atomic.AddInt64(&m.Predictions, 1) }

func (m *Metrics) RecordArticlesStored(n int) { atomic.AddInt64(&m.ArticlesStored, int64(n)) }

func (m *Metrics) RecordAnalysis(success bool) {
	if success {
		atomic.AddInt64(&m.ArticlesAnalyzed, 1)
		return
	}
	atomic.AddInt64(&m.AnalysisFailures, 1)
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	current := atomic.LoadInt64(&m.AverageResponseTime)
	atomic.StoreInt64(&m.AverageResponseTime, (current+duration.Nanoseconds())/2)

	m.responseTimesMutex.Lock()
	m.responseTimes = append(m.responseTimes, duration)
	if len(m.responseTimes) > maxResponseSamples {
		m.responseTimes = m.responseTimes[1:]
	}
	m.responseTimesMutex.Unlock()
}

func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()
	m.requestCountByStatus[statusCode]++
}

// RecordExternalAPIRequest records a call to NewsAPI, Google News or the LLM.
func (m *Metrics) RecordExternalAPIRequest(apiName string, success bool) {
	m.externalAPIMutex.Lock()
	defer m.externalAPIMutex.Unlock()

	m.externalAPIRequests[apiName]++
	if !success {
		m.externalAPIErrorCount[apiName]++
	}
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.responseTimesMutex.RLock()
	times := append([]time.Duration(nil), m.responseTimes...)
	m.responseTimesMutex.RUnlock()

	if len(times) == 0 {
		return 0
	}
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.statusMutex.RLock()
	defer m.statusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.requestCountByStatus))
	for code, count := range m.requestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

func (m *Metrics) GetExternalAPIStats() map[string]interface{} {
	m.externalAPIMutex.RLock()
	defer m.externalAPIMutex.RUnlock()

	stats := make(map[string]interface{}, len(m.externalAPIRequests))
	for api, requests := range m.externalAPIRequests {
		failures := m.externalAPIErrorCount[api]
		stats[api] = map[string]interface{}{
			"requests":   requests,
			"errors":     failures,
			"error_rate": percent(failures, requests),
		}
	}
	return stats
}

// GetStats returns a snapshot for the health endpoint.
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	failures := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)

	return map[string]interface{}{
		"uptime_seconds":           time.Since(m.StartTime).Seconds(),
		"total_requests":           requests,
		"error_count":              failures,
		"error_rate_percent":       percent(failures, requests),
		"cache_hits":               cacheHits,
		"cache_misses":             cacheMisses,
		"cache_hit_rate_percent":   percent(cacheHits, cacheHits+cacheMisses),
		"forecast_updates":         atomic.LoadInt64(&m.ForecastUpdates),
		"degenerate_updates":       atomic.LoadInt64(&m.DegenerateUpdates),
		"predictions":              atomic.LoadInt64(&m.Predictions),
		"articles_stored":          atomic.LoadInt64(&m.ArticlesStored),
		"articles_analyzed":        atomic.LoadInt64(&m.ArticlesAnalyzed),
		"analysis_failures":        atomic.LoadInt64(&m.AnalysisFailures),
		"avg_response_time_ms":     float64(atomic.LoadInt64(&m.AverageResponseTime)) / 1e6,
		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1e6,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1e6,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1e6,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"external_api_stats":       m.GetExternalAPIStats(),
		"circuit_breaker_opens":    atomic.LoadInt64(&m.CircuitBreakerOpens),
		"circuit_breaker_closes":   atomic.LoadInt64(&m.CircuitBreakerCloses),
		"rate_limit_blocks":        atomic.LoadInt64(&m.RateLimitBlocks),
		"rate_limit_redis_errors":  atomic.LoadInt64(&m.RateLimitRedisErrors),
		"rate_limit_fallbacks":     atomic.LoadInt64(&m.RateLimitFallbackCount),
		"start_time":               m.StartTime.Format(time.RFC3339),
	}
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
