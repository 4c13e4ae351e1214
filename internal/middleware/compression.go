// Package middleware holds gin middleware that does not belong to a single
// domain package.
package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // first write smaller than this is sent as is
	CompressionLevel int      // gzip level, 1-9
	ContentTypes     []string // compressible content type prefixes
	ExcludedPaths    []string // path prefixes never compressed
}

// DefaultCompressionConfig compresses JSON, markdown and plain text of 1KB
// and more.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/markdown",
			"text/plain",
			"text/html",
		},
		ExcludedPaths: []string{"/swagger/"},
	}
}

// Compression gzips responses for clients that accept it. The decision is
// made on the first write, once the handler has set the content type.
type Compression struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool
}

func NewCompression(config CompressionConfig) *Compression {
	if config.CompressionLevel < gzip.HuffmanOnly || config.CompressionLevel > gzip.BestCompression {
		config.CompressionLevel = gzip.DefaultCompression
	}
	cm := &Compression{config: config, stats: &CompressionStats{}}
	cm.pool.New = func() interface{} {
		gz, _ := gzip.NewWriterLevel(nil, cm.config.CompressionLevel)
		return gz
	}
	return cm
}

// Handler returns the gin middleware.
func (cm *Compression) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodHead || !acceptsGzip(c.Request) || cm.excluded(c.Request.URL.Path) {
			c.Next()
			return
		}

		w := &gzipResponseWriter{ResponseWriter: c.Writer, cm: cm}
		c.Writer = w
		defer w.finish()
		c.Next()
	}
}

// Stats returns a snapshot of the compression counters.
func (cm *Compression) Stats() map[string]interface{} {
	return cm.stats.GetStats()
}

func acceptsGzip(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if name == "gzip" || name == "*" {
			return true
		}
	}
	return false
}

func (cm *Compression) excluded(path string) bool {
	for _, p := range cm.config.ExcludedPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func (cm *Compression) shouldCompress(contentType string, size int) bool {
	if size < cm.config.MinSize {
		return false
	}
	for _, ct := range cm.config.ContentTypes {
		if strings.HasPrefix(contentType, ct) {
			return true
		}
	}
	return false
}

type gzipResponseWriter struct {
	gin.ResponseWriter
	cm       *Compression
	gz       *gzip.Writer
	decided  bool
	original int64
}

func (w *gzipResponseWriter) Write(data []byte) (int, error) {
	if !w.decided {
		w.decided = true
		h := w.Header()
		if h.Get("Content-Encoding") == "" && w.cm.shouldCompress(h.Get("Content-Type"), len(data)) {
			h.Set("Content-Encoding", "gzip")
			h.Add("Vary", "Accept-Encoding")
			h.Del("Content-Length")
			w.gz = w.cm.pool.Get().(*gzip.Writer)
			w.gz.Reset(w.ResponseWriter)
		}
	}
	w.original += int64(len(data))
	if w.gz == nil {
		return w.ResponseWriter.Write(data)
	}
	return w.gz.Write(data)
}

func (w *gzipResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *gzipResponseWriter) Flush() {
	if w.gz != nil {
		_ = w.gz.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *gzipResponseWriter) finish() {
	if w.gz == nil {
		if w.original > 0 {
			w.cm.stats.RecordRequest(w.original, w.original, false)
		}
		return
	}
	_ = w.gz.Close()
	w.gz.Reset(nil)
	w.cm.pool.Put(w.gz)
	w.cm.stats.RecordRequest(w.original, int64(w.ResponseWriter.Size()), true)
	w.gz = nil
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, writtenSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize
	if compressed {
		cs.CompressedRequests++
	}
	cs.CompressedBytes += writtenSize
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	ratio := float64(1)
	if cs.TotalBytes > 0 {
		ratio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}
	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"written_bytes":       cs.CompressedBytes,
		"compression_ratio":   ratio,
	}
}
