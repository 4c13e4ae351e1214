package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
	"github.com/ZanzyTHEbar/belief-engine/internal/database"
	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
	"github.com/ZanzyTHEbar/belief-engine/internal/sentiment"
)

func openDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newForecastService(t *testing.T) (*ForecastService, *monitoring.Metrics) {
	t.Helper()
	metrics := monitoring.NewMetrics()
	return NewForecastService(ForecastServiceConfig{
		Store:    database.NewForecastRepository(openDB(t)),
		Analyzer: sentiment.NewLexiconAnalyzer(),
		Metrics:  metrics,
		Logger:   monitoring.NewLoggerTo(&strings.Builder{}, "debug", "json"),
	}), metrics
}

func assertCategory(t *testing.T, err error, want apperrors.ErrorCategory) {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, want, appErr.Category)
}

func TestForecastServiceWeather(t *testing.T) {
	ctx := context.Background()
	svc, metrics := newForecastService(t)

	created, err := svc.Create(ctx, CreateForecast{
		Name:      "weather",
		Scenarios: []string{"Sunny", "Rainy", "Cloudy"},
		Priors:    []float64{0.4, 0.3, 0.3},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sunny", created.MostLikely)

	res, err := svc.ApplyEvidence(ctx, created.ID, "dark clouds", []float64{0.1, 0.9, 0.5})
	require.NoError(t, err)
	assert.NotEmpty(t, res.EvidenceID)
	assert.Equal(t, "Rainy", res.Forecast.MostLikely)
	assert.InDelta(t, 0.27/0.46, res.Forecast.Probability, 1e-12)
	assert.Equal(t, 1, res.Forecast.UpdateCount)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.04 / 0.46, 0.27 / 0.46, 0.15 / 0.46}, got.Probabilities(), 1e-12)

	history, err := svc.History(ctx, created.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "dark clouds", history[0].Description)
	assert.Equal(t, []float64{0.4, 0.3, 0.3}, history[0].Prior)
	assert.Equal(t, int64(1), metrics.ForecastUpdates)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Rainy", list[0].MostLikely)
}

func TestForecastServiceRejectedUpdates(t *testing.T) {
	ctx := context.Background()
	svc, metrics := newForecastService(t)
	f, err := svc.Create(ctx, CreateForecast{Name: "w", Scenarios: []string{"a", "b", "c"}, Priors: []float64{0.4, 0.3, 0.3}})
	require.NoError(t, err)

	_, err = svc.ApplyEvidence(ctx, f.ID, "nothing fits", []float64{0, 0, 0})
	assert.ErrorIs(t, err, bayes.ErrDegenerateEvidence)
	assert.Equal(t, int64(1), metrics.DegenerateUpdates)

	_, err = svc.ApplyEvidence(ctx, f.ID, "short", []float64{1, 1})
	assert.ErrorIs(t, err, bayes.ErrInvalidInput)

	got, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0.3, 0.3}, got.Probabilities())
	assert.Equal(t, 0, got.UpdateCount)

	history, err := svc.History(ctx, f.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = svc.ApplyEvidence(ctx, "missing", "x", []float64{1})
	assertCategory(t, err, apperrors.CategoryNotFound)
	_, err = svc.History(ctx, "missing", 10)
	assertCategory(t, err, apperrors.CategoryNotFound)
}

func TestForecastServiceCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newForecastService(t)

	_, err := svc.Create(ctx, CreateForecast{Name: "w", Scenarios: []string{"a", "b"}, Priors: []float64{2, 1}})
	assert.ErrorIs(t, err, bayes.ErrInvalidInput)

	_, err = svc.Create(ctx, CreateForecast{Scenarios: []string{"a"}, Priors: []float64{1}})
	assertCategory(t, err, apperrors.CategoryValidation)

	f, err := svc.Create(ctx, CreateForecast{Name: "w", Scenarios: []string{"a", "b", "c"}, Priors: []float64{2, 1, 1}, Normalize: true})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25, 0.25}, f.Probabilities())
}

func TestForecastServiceSerializesUpdates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newForecastService(t)
	f, err := svc.Create(ctx, CreateForecast{Name: "coin", Scenarios: []string{"heads", "tails"}, Priors: []float64{0.5, 0.5}})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyEvidence(ctx, f.ID, "heads", []float64{1, 0.5})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.UpdateCount)
	assert.InDelta(t, float64(1<<n)/float64(1<<n+1), got.Probability, 1e-9)

	history, err := svc.History(ctx, f.ID, 100)
	require.NoError(t, err)
	assert.Len(t, history, n)

	assert.Equal(t, 0, svc.lockedIDs())
}

func TestForecastServiceApplySentiment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newForecastService(t)
	f, err := svc.Create(ctx, CreateForecast{Name: "mood", Scenarios: sentiment.Scenarios, Priors: []float64{1, 1, 1}, Normalize: true})
	require.NoError(t, err)

	res, err := svc.ApplySentiment(ctx, f.ID, sentiment.Input{Title: "Excellent wonderful success for the great team"})
	require.NoError(t, err)
	assert.Greater(t, res.Sentiment.Polarity, 0.1)
	assert.Len(t, res.Likelihoods, 3)
	assert.Equal(t, "Positive", res.Forecast.MostLikely)
	assert.NotEmpty(t, res.EvidenceID)

	weather, err := svc.Create(ctx, CreateForecast{Name: "w", Scenarios: []string{"Sunny", "Rainy"}, Priors: []float64{0.5, 0.5}})
	require.NoError(t, err)
	_, err = svc.ApplySentiment(ctx, weather.ID, sentiment.Input{Title: "good"})
	assert.ErrorIs(t, err, bayes.ErrInvalidInput)
}

func TestForecastServiceDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newForecastService(t)
	f, err := svc.Create(ctx, CreateForecast{Name: "w", Scenarios: []string{"a"}, Priors: []float64{1}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, f.ID))
	_, err = svc.Get(ctx, f.ID)
	assertCategory(t, err, apperrors.CategoryNotFound)
	assertCategory(t, svc.Delete(ctx, f.ID), apperrors.CategoryNotFound)
	assert.Equal(t, 0, svc.lockedIDs())
}

func newPredictorService(t *testing.T, db *database.DB) *PredictorService {
	t.Helper()
	svc, err := NewPredictorService(PredictorServiceConfig{
		Store:   database.NewFeatureRepository(db),
		Metrics: monitoring.NewMetrics(),
	})
	require.NoError(t, err)
	return svc
}

var datingProfile = []bayes.FeatureInput{
	{Name: "age", Value: bayes.String("20-25")},
	{Name: "interests", Value: bayes.String("sports")},
	{Name: "education", Value: bayes.String("bachelors")},
	{Name: "smoking", Value: bayes.String("no")},
}

func TestPredictorServiceTrainAndPredict(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	svc := newPredictorService(t, db)

	n, err := svc.Train(ctx, "dating", DefaultTrainingTable())
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	est, err := svc.Predict(ctx, "dating", datingProfile, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, est.Probability, 1e-12)
	assert.Equal(t, 1.0, est.Confidence)

	imp, err := svc.Importance(ctx, "dating", "age")
	require.NoError(t, err)
	require.Len(t, imp, 2)
	assert.InDelta(t, -20.0, imp[0].Score, 1e-9)

	// a fresh service rebuilds the same table from storage
	reloaded := newPredictorService(t, db)
	again, err := reloaded.Predict(ctx, "dating", datingProfile, nil)
	require.NoError(t, err)
	assert.InDelta(t, est.Probability, again.Probability, 1e-12)

	features, err := reloaded.Features(ctx, "dating")
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "interests", "education", "smoking"}, features)

	prior := 0.2
	low, err := reloaded.Predict(ctx, "dating", nil, &prior)
	require.NoError(t, err)
	assert.Equal(t, 0.2, low.Probability)
}

func TestPredictorServiceRecord(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	svc := newPredictorService(t, db)

	_, err := svc.Record(ctx, "pets", "dogs", bayes.Int(2), 5, 4)
	assert.ErrorIs(t, err, bayes.ErrInvalidInput)
	names, err := svc.Predictors(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	e, err := svc.Record(ctx, "pets", "dogs", bayes.Int(2), 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 0.25, e.Likelihood)
	_, err = svc.Record(ctx, "pets", "cat", bayes.Bool(true), 3, 4)
	require.NoError(t, err)

	reloaded := newPredictorService(t, db)
	entries, err := reloaded.Entries(ctx, "pets")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, bayes.Int(2), entries[0].Value)
	assert.Equal(t, bayes.Bool(true), entries[1].Value)

	_, err = reloaded.Predict(ctx, "unknown", nil, nil)
	assertCategory(t, err, apperrors.CategoryNotFound)

	bad := 1.0
	_, err = reloaded.Predict(ctx, "pets", nil, &bad)
	assert.ErrorIs(t, err, bayes.ErrInvalidInput)
}

func TestPredictorServiceTrainPriorMismatch(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	svc := newPredictorService(t, db)

	_, err := svc.Record(ctx, "pets", "dogs", bayes.Int(2), 1, 4)
	require.NoError(t, err)

	row := TrainingRecord{Feature: "cat", Value: bayes.Bool(true), Positive: 3, Total: 4}
	n, err := svc.Train(ctx, "pets", TrainingTable{Prior: 0.3, Records: []TrainingRecord{row}})
	assertCategory(t, err, apperrors.CategoryValidation)
	assert.Equal(t, 0, n)
	entries, err := svc.Entries(ctx, "pets")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// the stored prior is accepted again
	n, err = svc.Train(ctx, "pets", TrainingTable{Prior: 0.5, Records: []TrainingRecord{row}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a new predictor takes the table's prior, also after a reload
	_, err = svc.Train(ctx, "fish", TrainingTable{Prior: 0.3, Records: []TrainingRecord{row}})
	require.NoError(t, err)
	est, err := newPredictorService(t, db).Predict(ctx, "fish", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.3, est.Probability)

	_, err = svc.Train(ctx, "fish", TrainingTable{Prior: 0.4})
	assertCategory(t, err, apperrors.CategoryValidation)
}

func TestParseTrainingTable(t *testing.T) {
	table := DefaultTrainingTable()
	assert.Equal(t, "dating", table.Name)
	assert.Equal(t, 0.5, table.Prior)
	require.Len(t, table.Records, 6)
	assert.Equal(t, bayes.String("no"), table.Records[5].Value)

	typed, err := ParseTrainingTable([]byte("records:\n  - {feature: children, value: 2, positive: 1, total: 4}\n  - {feature: pets, value: true, positive: 1, total: 2}\n"))
	require.NoError(t, err)
	assert.Equal(t, bayes.Int(2), typed.Records[0].Value)
	assert.Equal(t, bayes.Bool(true), typed.Records[1].Value)

	_, err = ParseTrainingTable([]byte("records: []\n"))
	assert.ErrorIs(t, err, bayes.ErrInvalidInput)
	_, err = LoadTrainingTable(strings.NewReader("records: [\n"))
	assert.Error(t, err)
}
