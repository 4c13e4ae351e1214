package monitoring

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"DEBUG", "DEBUG"},
		{"info", "INFO"},
		{"Warning", "WARN"},
		{"CRITICAL", "ERROR"},
		{"", "INFO"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in).String(), tt.in)
	}
}

func TestLoggerWritesTimestampedJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "INFO", "json")

	logger.UpdateLogger("f-1", "rain clouds", "Rainy", 0.58, 0.12)
	logger.CacheLogger("get", "abc", true)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "Evidence Applied", entry["msg"])
	assert.Equal(t, "Rainy", entry["most_likely"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, entry, "time")
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.IncrementRequest()
	m.IncrementRequest()
	m.IncrementError()
	m.IncrementCacheHit()
	m.IncrementCacheMiss()
	m.IncrementCacheMiss()
	m.RecordUpdate(false)
	m.RecordUpdate(true)
	m.RecordPrediction()
	m.RecordArticlesStored(3)
	m.RecordAnalysis(true)
	m.RecordAnalysis(false)
	m.RecordExternalAPIRequest("newsapi", true)
	m.RecordExternalAPIRequest("newsapi", false)
	for i := 1; i <= 100; i++ {
		m.RecordResponseTime(time.Duration(i) * time.Millisecond)
	}

	stats := m.GetStats()
	assert.Equal(t, int64(2), stats["total_requests"])
	assert.Equal(t, 50.0, stats["error_rate_percent"])
	assert.InDelta(t, 33.33, stats["cache_hit_rate_percent"], 0.01)
	assert.Equal(t, int64(1), stats["forecast_updates"])
	assert.Equal(t, int64(1), stats["degenerate_updates"])
	assert.Equal(t, int64(3), stats["articles_stored"])
	assert.Equal(t, 50*time.Millisecond, m.GetPercentileResponseTime(50))

	api := m.GetExternalAPIStats()["newsapi"].(map[string]interface{})
	assert.Equal(t, int64(2), api["requests"])
	assert.Equal(t, 50.0, api["error_rate"])
}

func TestMonitoringMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	metrics := NewMetrics()

	r := gin.New()
	r.Use(MonitoringMiddleware(metrics, NewLoggerTo(&buf, "INFO", "json")))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/ok", "/missing", "/ok"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, int64(3), metrics.RequestCount)
	assert.Equal(t, int64(1), metrics.ErrorCount)
	assert.Equal(t, map[int]int64{200: 2, 404: 1}, metrics.GetStatusCodeDistribution())
	assert.Contains(t, buf.String(), `"path":"/missing"`)
}
