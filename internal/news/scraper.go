package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
	"github.com/ZanzyTHEbar/belief-engine/internal/resilience"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	googleNewsName = "google_news"
	googleNewsBase = "https://news.google.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ScraperConfig configures a GoogleNewsScraper.
type ScraperConfig struct {
	URL        string
	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
	Retry      resilience.RetryConfig
	Metrics    *monitoring.Metrics
	Logger     *monitoring.Logger
}

// GoogleNewsScraper reads headlines off the Google News HTML page.
type GoogleNewsScraper struct {
	pageURL string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	metrics *monitoring.Metrics
	logger  *monitoring.Logger
}

func NewGoogleNewsScraper(cfg ScraperConfig) *GoogleNewsScraper {
	if cfg.URL == "" {
		cfg.URL = googleNewsBase + "/topstories?hl=en-US&gl=US&ceid=US:en"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker(googleNewsName, resilience.CircuitBreakerConfig{})
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.StandardRetryPolicy
	}
	return &GoogleNewsScraper{
		pageURL: cfg.URL,
		client:  cfg.HTTPClient,
		breaker: cfg.Breaker,
		retry:   cfg.Retry,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

func (s *GoogleNewsScraper) Name() string { return googleNewsName }

func (s *GoogleNewsScraper) Articles(ctx context.Context) ([]Article, error) {
	return s.Scrape(ctx)
}

// Scrape downloads the page and parses its headlines.
func (s *GoogleNewsScraper) Scrape(ctx context.Context) ([]Article, error) {
	base, err := url.Parse(s.pageURL)
	if err != nil {
		return nil, apperrors.NewConfigurationError("invalid news page URL", err)
	}

	slog.Info("Scraping news page", "url", s.pageURL)

	var articles []Article
	status := 0
	start := time.Now()
	err = s.breaker.Call(func() error {
		resp, err := resilience.RetryHTTP(ctx, s.retry, func() (*http.Response, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.pageURL, nil)
			if err != nil {
				return nil, err
			}
			req.Header.Set("User-Agent", userAgent)
			req.Header.Set("Accept", "text/html")
			return s.client.Do(req)
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("news page status %d", resp.StatusCode)
		}

		articles, err = ParseHeadlines(resp.Body, base)
		return err
	})
	if s.metrics != nil {
		s.metrics.RecordExternalAPIRequest(googleNewsName, err == nil)
	}
	if s.logger != nil {
		s.logger.ExternalAPILogger(googleNewsName, http.MethodGet, s.pageURL, status, time.Since(start), err == nil)
	}
	if err != nil {
		return nil, apperrors.NewExternalAPIError("Google News", err)
	}

	slog.Info("Parsed articles from news page", "count", len(articles))
	return articles, nil
}

// ParseHeadlines extracts one article per <article> element: the text of its
// first <h3> and the href of its first <a>. Relative links are resolved
// against base. Elements missing either are skipped.
func ParseHeadlines(r io.Reader, base *url.URL) ([]Article, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if base == nil {
		base, _ = url.Parse(googleNewsBase)
	}

	var articles []Article
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Article {
			if a, ok := headline(n, base); ok {
				articles = append(articles, a)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return articles, nil
}

func headline(article *html.Node, base *url.URL) (Article, bool) {
	h3 := findFirst(article, atom.H3)
	link := findFirst(article, atom.A)
	if h3 == nil || link == nil {
		return Article{}, false
	}

	title := strings.Join(strings.Fields(textContent(h3)), " ")
	href := strings.TrimSpace(attr(link, "href"))
	if title == "" || href == "" {
		return Article{}, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return Article{}, false
	}
	return Article{
		Title:  title,
		URL:    base.ResolveReference(ref).String(),
		Source: "Google News",
	}, true
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
