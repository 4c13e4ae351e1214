package security

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SecurityConfig holds request hardening settings.
type SecurityConfig struct {
	MaxTextLength  int           `json:"max_text_length"`
	MaxBodyBytes   int64         `json:"max_body_bytes"`
	AllowedOrigins []string      `json:"allowed_origins"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxTextLength:  20000,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		RequestTimeout: 30 * time.Second,
	}
}

// SecurityMiddleware bundles the request validation middlewares.
type SecurityMiddleware struct {
	config SecurityConfig
}

func NewSecurityMiddleware(config SecurityConfig) *SecurityMiddleware {
	return &SecurityMiddleware{config: config}
}

var (
	scriptPattern     = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	htmlEntities      = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", "\"",
		"&#x27;", "'",
		"&#39;", "'",
		"&nbsp;", " ",
	)
)

// ValidateText checks free text submitted for sentiment analysis.
func (sm *SecurityMiddleware) ValidateText(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("text is empty")
	}
	if len(input) > sm.config.MaxTextLength {
		return fmt.Errorf("text exceeds maximum length of %d bytes", sm.config.MaxTextLength)
	}
	if strings.Contains(input, "\x00") {
		return fmt.Errorf("text contains invalid characters")
	}
	if !utf8.ValidString(input) {
		return fmt.Errorf("text contains invalid UTF-8 encoding")
	}
	return nil
}

// SanitizeText strips markup from text pasted from web pages.
func SanitizeText(input string) string {
	input = scriptPattern.ReplaceAllString(input, " ")
	input = htmlTagPattern.ReplaceAllString(input, " ")
	input = htmlEntities.Replace(input)
	input = whitespacePattern.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateContentType rejects request bodies that are not JSON.
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut {
		contentType := strings.ToLower(c.GetHeader("Content-Type"))
		if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, gin.H{
				"error": "unsupported content type",
			})
			return
		}
	}
	c.Next()
}

// LimitBody caps the request body size.
func (sm *SecurityMiddleware) LimitBody(c *gin.Context) {
	if c.Request.Body != nil && sm.config.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sm.config.MaxBodyBytes)
	}
	c.Next()
}

// RequestTimeout bounds the request context.
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Header("X-Timeout", strconv.Itoa(int(sm.config.RequestTimeout.Seconds())))

	c.Next()
}

// CORS returns the gin-contrib/cors handler for the configured origins.
func (sm *SecurityMiddleware) CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     sm.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// TextFromContext returns the sanitized text stored by ValidateTextBody.
func TextFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(sanitizedTextKey)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

const sanitizedTextKey = "sanitized_text"

// TextRequest is the body accepted by text-analysis routes.
type TextRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Text    string `json:"text"`
}

// Joined returns the text to analyze, preferring Text over Title+Content.
func (r TextRequest) Joined() string {
	if r.Text != "" {
		return r.Text
	}
	return strings.TrimSpace(r.Title + " " + r.Content)
}

// ValidateTextBody binds a TextRequest, sanitizes it and stores the result
// in the context for the handler.
func (sm *SecurityMiddleware) ValidateTextBody(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := apperrors.NewValidationError("invalid JSON format")
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
		return
	}

	text := req.Joined()
	if err := sm.ValidateText(text); err != nil {
		appErr := apperrors.NewValidationError(err.Error(), "text")
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
		return
	}

	text = SanitizeText(text)
	if text == "" {
		appErr := apperrors.NewValidationError("text is empty after removing markup", "text")
		c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
		return
	}

	c.Set(sanitizedTextKey, text)
	c.Next()
}
