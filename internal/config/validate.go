package config

import (
	"fmt"
	"strings"

	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
)

// Validate checks ranges and cross-field constraints. All problems are
// reported together, keyed by field.
func Validate(cfg *Config) error {
	if cfg == nil {
		return apperrors.NewConfigurationError("config is nil", nil)
	}

	problems := map[string]string{}

	if strings.TrimSpace(cfg.Server.Port) == "" {
		problems["server.port"] = "must be set"
	}
	if strings.TrimSpace(cfg.Database.Name) == "" {
		problems["database.name"] = "must be set"
	}
	if cfg.News.PageSize < 1 || cfg.News.PageSize > 100 {
		problems["news.page_size"] = fmt.Sprintf("%d outside 1..100", cfg.News.PageSize)
	}
	if cfg.News.DaysBack < 1 || cfg.News.DaysBack > 30 {
		problems["news.days_back"] = fmt.Sprintf("%d outside 1..30", cfg.News.DaysBack)
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 2 {
		problems["llm.temperature"] = fmt.Sprintf("%v outside 0..2", cfg.LLM.Temperature)
	}
	if cfg.Sentiment.PositiveThreshold <= cfg.Sentiment.NegativeThreshold {
		problems["sentiment.positive_threshold"] = "must be greater than negative_threshold"
	}
	switch cfg.Sentiment.Analyzer {
	case "lexicon", "llm":
	default:
		problems["sentiment.analyzer"] = fmt.Sprintf("unknown analyzer %q", cfg.Sentiment.Analyzer)
	}
	if cfg.Sentiment.Workers < 1 {
		problems["sentiment.workers"] = "must be at least 1"
	}
	if cfg.Predictor.Prior <= 0 || cfg.Predictor.Prior >= 1 {
		problems["predictor.prior"] = fmt.Sprintf("%v must lie strictly between 0 and 1", cfg.Predictor.Prior)
	}
	if cfg.RateLimit.RequestsPerMinute < 1 {
		problems["rate_limit.requests_per_minute"] = "must be at least 1"
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		problems["logging.format"] = fmt.Sprintf("unknown format %q", cfg.Logging.Format)
	}

	if len(problems) > 0 {
		return apperrors.NewValidationErrorWithMap(problems)
	}
	return nil
}
