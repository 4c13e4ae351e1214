package security

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityConfig(t *testing.T) {
	config := DefaultSecurityConfig()

	assert.Equal(t, 20000, config.MaxTextLength)
	assert.Equal(t, int64(1<<20), config.MaxBodyBytes)
	assert.Contains(t, config.AllowedOrigins, "http://localhost:3000")
	assert.Equal(t, 30*time.Second, config.RequestTimeout)
}

func TestValidateText(t *testing.T) {
	config := DefaultSecurityConfig()
	config.MaxTextLength = 50
	sm := NewSecurityMiddleware(config)

	tests := []struct {
		name        string
		input       string
		expectError bool
		errorMsg    string
	}{
		{name: "valid text", input: "Markets rallied on strong earnings"},
		{name: "empty", input: "   ", expectError: true, errorMsg: "text is empty"},
		{name: "too long", input: strings.Repeat("a", 51), expectError: true, errorMsg: "exceeds maximum length"},
		{name: "null bytes", input: "test\x00input", expectError: true, errorMsg: "invalid characters"},
		{name: "invalid UTF-8", input: "test\xff\xfeinput", expectError: true, errorMsg: "invalid UTF-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sm.ValidateText(tt.input)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "trim whitespace", input: "  test input  ", expected: "test input"},
		{name: "remove script", input: "<script>alert('test')</script>Hello World", expected: "Hello World"},
		{name: "keep tag content", input: "<p>Stocks <b>soar</b></p>", expected: "Stocks soar"},
		{name: "decode entities", input: "AT&amp;T &lt;up&gt;", expected: "AT&T <up>"},
		{name: "collapse whitespace", input: "a \n\t b", expected: "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeText(tt.input))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(SecurityHeadersMiddleware(false))
	r.GET("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "test"}) })
	r.GET("/swagger/index.html", func(c *gin.Context) { c.String(http.StatusOK, "ui") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	headers := w.Header()
	assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", headers.Get("Referrer-Policy"))
	assert.Contains(t, headers.Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, headers.Get("Strict-Transport-Security"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	assert.Empty(t, w.Header().Get("Content-Security-Policy"))

	hsts := gin.New()
	hsts.Use(SecurityHeadersMiddleware(true))
	hsts.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	hsts.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestValidateContentType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.ValidateContentType)
	r.POST("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "success"}) })

	tests := []struct {
		name           string
		contentType    string
		expectedStatus int
	}{
		{name: "valid JSON", contentType: "application/json", expectedStatus: http.StatusOK},
		{name: "JSON with charset", contentType: "application/json; charset=utf-8", expectedStatus: http.StatusOK},
		{name: "form data", contentType: "application/x-www-form-urlencoded", expectedStatus: http.StatusUnsupportedMediaType},
		{name: "plain text", contentType: "text/plain", expectedStatus: http.StatusUnsupportedMediaType},
		{name: "no content type", contentType: "", expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"test": "data"}`))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestValidateTextBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.POST("/analyze", sm.ValidateTextBody, func(c *gin.Context) {
		text, ok := TextFromContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"text": text})
	})

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedText   string
	}{
		{name: "title and content", body: `{"title":"Rally","content":"<b>Stocks</b> up"}`, expectedStatus: http.StatusOK, expectedText: "Rally Stocks up"},
		{name: "text wins", body: `{"title":"ignored","text":"plain"}`, expectedStatus: http.StatusOK, expectedText: "plain"},
		{name: "invalid JSON", body: `{"title":`, expectedStatus: http.StatusBadRequest},
		{name: "empty", body: `{}`, expectedStatus: http.StatusBadRequest},
		{name: "only markup", body: `{"text":"<br/>"}`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedText != "" {
				assert.JSONEq(t, `{"text":"`+tt.expectedText+`"}`, w.Body.String())
			}
		})
	}
}

func TestLimitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config := DefaultSecurityConfig()
	config.MaxBodyBytes = 16
	sm := NewSecurityMiddleware(config)

	r := gin.New()
	r.Use(sm.LimitBody)
	r.POST("/test", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"a":1}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.CORS())
	r.GET("/test", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "test"}) })

	tests := []struct {
		name           string
		origin         string
		method         string
		expectedStatus int
		checkCORS      bool
	}{
		{name: "allowed origin", origin: "http://localhost:3000", method: http.MethodGet, expectedStatus: http.StatusOK, checkCORS: true},
		{name: "disallowed origin", origin: "http://evil.com", method: http.MethodGet, expectedStatus: http.StatusForbidden},
		{name: "OPTIONS preflight", origin: "http://localhost:5173", method: http.MethodOptions, expectedStatus: http.StatusNoContent, checkCORS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.checkCORS {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	config := DefaultSecurityConfig()
	config.RequestTimeout = 5 * time.Millisecond
	sm := NewSecurityMiddleware(config)

	r := gin.New()
	r.Use(sm.RequestTimeout)
	r.GET("/test", func(c *gin.Context) {
		select {
		case <-c.Request.Context().Done():
			c.Status(http.StatusGatewayTimeout)
		case <-time.After(time.Second):
			c.Status(http.StatusOK)
		}
	})

	w := httptest.NewRecorder()
	start := time.Now()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}
