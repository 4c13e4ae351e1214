package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
	"github.com/ZanzyTHEbar/belief-engine/internal/resilience"
)

const newsAPIName = "newsapi"

// Query selects articles from the NewsAPI "everything" endpoint.
type Query struct {
	Q        string
	PageSize int // 1..100
	DaysBack int
}

// NewsAPIConfig configures a NewsAPIClient.
type NewsAPIConfig struct {
	APIKey     string
	BaseURL    string
	Query      Query
	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
	Retry      resilience.RetryConfig
	Metrics    *monitoring.Metrics
	Logger     *monitoring.Logger
}

// NewsAPIClient talks to newsapi.org.
type NewsAPIClient struct {
	apiKey  string
	baseURL string
	query   Query
	client  *http.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
	now     func() time.Time
}

func NewNewsAPIClient(cfg NewsAPIConfig) *NewsAPIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://newsapi.org/v2/everything"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker(newsAPIName, resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
			SuccessThreshold: 1,
		})
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.StandardRetryPolicy
	}
	return &NewsAPIClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		query:   cfg.Query,
		client:  cfg.HTTPClient,
		breaker: cfg.Breaker,
		retry:   cfg.Retry,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

func (c *NewsAPIClient) Name() string { return newsAPIName }

// Articles fetches with the configured query.
func (c *NewsAPIClient) Articles(ctx context.Context) ([]Article, error) {
	return c.Fetch(ctx, c.query)
}

type newsAPIResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Fetch returns the newest articles matching q, published no earlier than
// q.DaysBack days ago.
func (c *NewsAPIClient) Fetch(ctx context.Context, q Query) ([]Article, error) {
	if c.apiKey == "" {
		return nil, apperrors.NewConfigurationError("NewsAPI key is not configured (set NEWSAPI_KEY)", nil)
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.DaysBack <= 0 {
		q.DaysBack = 1
	}

	params := url.Values{}
	params.Set("q", q.Q)
	params.Set("from", c.now().AddDate(0, 0, -q.DaysBack).Format("2006-01-02"))
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(q.PageSize))
	params.Set("apiKey", c.apiKey)
	endpoint := c.baseURL + "?" + params.Encode()

	slog.Info("Fetching news", "query", q.Q, "page_size", q.PageSize, "from", params.Get("from"))

	var body newsAPIResponse
	status := 0
	start := time.Now()
	err := c.breaker.Call(func() error {
		resp, err := resilience.RetryHTTP(ctx, c.retry, func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("Accept", "application/json")
			return c.client.Do(req)
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			var apiErr newsAPIResponse
			if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
				return fmt.Errorf("newsapi status %d: %s: %s", resp.StatusCode, apiErr.Code, apiErr.Message)
			}
			return fmt.Errorf("newsapi status %d: %s", resp.StatusCode, string(raw))
		}

		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("failed to decode newsapi response: %w", err)
		}
		if body.Status != "" && body.Status != "ok" {
			return fmt.Errorf("newsapi status %q: %s", body.Status, body.Message)
		}
		return nil
	})
	if c.metrics != nil {
		c.metrics.RecordExternalAPIRequest(newsAPIName, err == nil)
	}
	if c.logger != nil {
		c.logger.ExternalAPILogger(newsAPIName, http.MethodGet, c.baseURL, status, time.Since(start), err == nil)
	}
	if err != nil {
		slog.Error("NewsAPI request failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, apperrors.NewExternalAPIError("NewsAPI", err)
	}

	articles := make([]Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		article := Article{
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source.Name,
			Description: a.Description,
		}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			t = t.UTC()
			article.PublishedAt = &t
		}
		articles = append(articles, article)
	}

	slog.Info("Fetched articles from NewsAPI", "count", len(articles), "total_results", body.TotalResults)
	return articles, nil
}
