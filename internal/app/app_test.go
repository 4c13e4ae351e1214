package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/belief-engine/internal/config"
	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
	"github.com/ZanzyTHEbar/belief-engine/internal/resilience"
	"github.com/ZanzyTHEbar/belief-engine/internal/sentiment"
	"github.com/ZanzyTHEbar/belief-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Redis.Addr = ""
	return cfg
}

func quietLogger() *monitoring.Logger {
	return monitoring.NewLoggerTo(io.Discard, "ERROR", "text")
}

func TestNew(t *testing.T) {
	a, err := New(testConfig(t), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "lexicon", a.Analyzer.Name())
	assert.False(t, a.Redis.IsEnabled())
	assert.NotNil(t, a.memory)
	assert.FileExists(t, a.Config.DatabasePath())

	ctx := context.Background()
	view, err := a.ForecastService.Create(ctx, service.CreateForecast{
		Name:      "weather",
		Scenarios: []string{"Sunny", "Rainy", "Cloudy"},
		Priors:    []float64{0.4, 0.3, 0.3},
	})
	require.NoError(t, err)
	assert.Equal(t, "weather", view.Name)

	res, err := a.Analyzer.Analyze(ctx, sentiment.Input{Title: "Great success for the team"})
	require.NoError(t, err)
	assert.Greater(t, res.Polarity, 0.0)

	// second call is served from the cache
	_, err = a.Analyzer.Analyze(ctx, sentiment.Input{Title: "Great success for the team"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Metrics.GetStats()["cache_hits"])
}

func TestNewLLMAnalyzer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sentiment.Analyzer = "llm"

	a, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "llm:"+cfg.LLM.Model, a.Analyzer.Name())
	_, ok := a.Breakers.Stats()["ollama"]
	assert.True(t, ok)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sentiment.Analyzer = "crystal-ball"
	cfg.Predictor.Prior = 1

	_, err := New(cfg, quietLogger())
	require.Error(t, err)
	assert.Equal(t, apperrors.CategoryValidation, apperrors.ToAppError(err).Category)
}

func TestBreakerChangedCountsTransitions(t *testing.T) {
	a, err := New(testConfig(t), quietLogger())
	require.NoError(t, err)
	defer a.Close()

	a.breakerChanged("newsapi", resilience.StateClosed, resilience.StateOpen)
	a.breakerChanged("newsapi", resilience.StateOpen, resilience.StateHalfOpen)
	a.breakerChanged("newsapi", resilience.StateHalfOpen, resilience.StateClosed)

	stats := a.Metrics.GetStats()
	assert.Equal(t, int64(1), stats["circuit_breaker_opens"])
	assert.Equal(t, int64(1), stats["circuit_breaker_closes"])
}
