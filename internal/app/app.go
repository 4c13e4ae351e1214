// Package app wires configuration, storage, analyzers and services into the
// components used by the server and the CLI.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/cache"
	"github.com/ZanzyTHEbar/belief-engine/internal/config"
	"github.com/ZanzyTHEbar/belief-engine/internal/database"
	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
	"github.com/ZanzyTHEbar/belief-engine/internal/news"
	"github.com/ZanzyTHEbar/belief-engine/internal/ratelimit"
	"github.com/ZanzyTHEbar/belief-engine/internal/report"
	"github.com/ZanzyTHEbar/belief-engine/internal/resilience"
	"github.com/ZanzyTHEbar/belief-engine/internal/sentiment"
	"github.com/ZanzyTHEbar/belief-engine/internal/service"
)

// App holds every long-lived component. Close releases them.
type App struct {
	Config  *config.Config
	Logger  *monitoring.Logger
	Metrics *monitoring.Metrics

	DB        *database.DB
	Forecasts *database.ForecastRepository
	Features  *database.FeatureRepository
	Articles  *database.ArticleRepository

	Redis    *ratelimit.RedisClient
	Cache    cache.Store
	Breakers *resilience.Registry

	Thresholds sentiment.Thresholds
	Analyzer   sentiment.Analyzer
	Pipeline   *sentiment.Pipeline

	ForecastService  *service.ForecastService
	PredictorService *service.PredictorService
	Reports          *report.Generator

	NewsAPI *news.NewsAPIClient
	Scraper *news.GoogleNewsScraper

	memory *cache.Memory
}

// New validates cfg and builds the application. The data directory is
// created if needed.
func New(cfg *config.Config, logger *monitoring.Logger) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = monitoring.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: monitoring.NewMetrics(),
		Thresholds: sentiment.Thresholds{
			Positive: cfg.Sentiment.PositiveThreshold,
			Negative: cfg.Sentiment.NegativeThreshold,
		},
	}

	if err := os.MkdirAll(cfg.Server.DataDir, 0o755); err != nil {
		return nil, apperrors.NewConfigurationError("cannot create data directory", err)
	}
	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.DB = db
	a.Forecasts = database.NewForecastRepository(db)
	a.Features = database.NewFeatureRepository(db)
	a.Articles = database.NewArticleRepository(db)

	// a failed ping leaves a disabled client; everything falls back to memory
	a.Redis, err = ratelimit.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable", "error", err)
	}
	if a.Redis.IsEnabled() {
		a.Cache = cache.NewRedis(a.Redis.GetClient(), "belief:", cfg.Sentiment.CacheTTL)
	} else {
		a.memory = cache.NewMemory(cfg.Sentiment.CacheTTL, 5*time.Minute)
		a.Cache = a.memory
	}

	a.Breakers = resilience.NewRegistry(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 1,
		OnStateChange:    a.breakerChanged,
	})

	a.Analyzer = a.buildAnalyzer()
	a.Pipeline = sentiment.NewPipeline(a.Articles, a.Analyzer, sentiment.PipelineConfig{
		Workers: cfg.Sentiment.Workers,
		Metrics: a.Metrics,
		Logger:  logger,
	})

	a.ForecastService = service.NewForecastService(service.ForecastServiceConfig{
		Store:    a.Forecasts,
		Analyzer: a.Analyzer,
		Metrics:  a.Metrics,
		Logger:   logger,
	})
	a.PredictorService, err = service.NewPredictorService(service.PredictorServiceConfig{
		Store:   a.Features,
		Prior:   cfg.Predictor.Prior,
		Metrics: a.Metrics,
		Logger:  logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Reports = report.NewGenerator(a.Articles, a.Forecasts, report.Options{Thresholds: &a.Thresholds})

	a.NewsAPI = news.NewNewsAPIClient(news.NewsAPIConfig{
		APIKey:  cfg.News.APIKey,
		BaseURL: cfg.News.APIURL,
		Query: news.Query{
			Q:        cfg.News.Query,
			PageSize: cfg.News.PageSize,
			DaysBack: cfg.News.DaysBack,
		},
		Breaker: a.Breakers.Get("newsapi"),
		Metrics: a.Metrics,
		Logger:  logger,
	})
	a.Scraper = news.NewGoogleNewsScraper(news.ScraperConfig{
		URL:     cfg.News.GoogleNewsURL,
		Breaker: a.Breakers.Get("google_news"),
		Metrics: a.Metrics,
		Logger:  logger,
	})

	logger.SystemLogger("startup", fmt.Sprintf("analyzer=%s db=%s redis=%t", a.Analyzer.Name(), cfg.DatabasePath(), a.Redis.IsEnabled()))
	return a, nil
}

// buildAnalyzer returns the configured analyzer behind the result cache. The
// LLM analyzer falls back to the lexicon when the model is unreachable.
func (a *App) buildAnalyzer() sentiment.Analyzer {
	var analyzer sentiment.Analyzer = sentiment.NewLexiconAnalyzer()
	if a.Config.Sentiment.Analyzer == "llm" {
		llm := sentiment.NewLLMAnalyzer(sentiment.LLMConfig{
			Host:        a.Config.LLM.Host,
			Model:       a.Config.LLM.Model,
			Temperature: a.Config.LLM.Temperature,
			Timeout:     a.Config.LLM.Timeout,
			Breaker:     a.Breakers.Get("ollama"),
			Metrics:     a.Metrics,
		})
		analyzer = sentiment.FallbackAnalyzer{Primary: llm, Secondary: analyzer}
	}
	return sentiment.NewCachedAnalyzer(analyzer, a.Cache, a.Metrics).WithLogger(a.Logger)
}

func (a *App) breakerChanged(name string, from, to resilience.CircuitBreakerState) {
	switch to {
	case resilience.StateOpen:
		a.Metrics.IncrementCircuitBreakerOpen()
	case resilience.StateClosed:
		a.Metrics.IncrementCircuitBreakerClose()
	}
	a.Logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
}

// Close releases the cache, Redis and the database.
func (a *App) Close() {
	if a.memory != nil {
		apperrors.SafeClose(a.memory, "sentiment cache")
	}
	if a.Redis != nil {
		apperrors.SafeClose(a.Redis, "redis")
	}
	if a.DB != nil {
		apperrors.SafeClose(a.DB, "database")
	}
	slog.Debug("Application resources released")
}
