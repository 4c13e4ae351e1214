package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
	"github.com/ZanzyTHEbar/belief-engine/internal/cache"
	"github.com/ZanzyTHEbar/belief-engine/internal/database"
	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
	"github.com/ZanzyTHEbar/belief-engine/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThresholdsLabel(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		polarity float64
		want     Label
	}{
		{0.5, Positive},
		{0.1, Neutral},
		{0, Neutral},
		{-0.1, Neutral},
		{-0.11, Negative},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.Label(tt.polarity), "polarity %v", tt.polarity)
	}
}

func TestLexiconAnalyzer(t *testing.T) {
	a := NewLexiconAnalyzer()
	tests := []struct {
		name     string
		title    string
		polarity float64
	}{
		{name: "plain", title: "good", polarity: 0.7},
		{name: "negated", title: "not good", polarity: -0.35},
		{name: "contraction", title: "this isn't good", polarity: -0.35},
		{name: "intensified", title: "very good", polarity: 0.91},
		{name: "negated intensified", title: "not very good", polarity: -0.455},
		{name: "modifier reset by other word", title: "not quite market good", polarity: 0.7},
		{name: "average", title: "good and bad", polarity: 0},
		{name: "no sentiment words", title: "council meets on tuesday", polarity: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := a.Analyze(context.Background(), Input{Title: tt.title})
			require.NoError(t, err)
			assert.InDelta(t, tt.polarity, r.Polarity, 1e-9)
			assert.Equal(t, "lexicon", r.Analyzer)
		})
	}
}

func TestLexiconAnalyzerClassification(t *testing.T) {
	r, err := NewLexiconAnalyzer().Analyze(context.Background(), Input{
		Title:   "Apple and Google unveil AI chips in Paris",
		Content: "Chip stocks surge to record gains as investors celebrate",
	})
	require.NoError(t, err)

	assert.Greater(t, r.Polarity, 0.1)
	assert.Equal(t, "joy", r.Emotion)
	assert.Equal(t, "Technology", r.Category)
	assert.Contains(t, r.Categories, "Business")
	assert.InDelta(t, 0.9, r.Confidence, 1e-9)
	assert.Equal(t, []string{"Google", "AI", "Paris"}, r.Entities)
	assert.LessOrEqual(t, len(r.Keywords), 10)
	assert.Contains(t, r.Keywords, "chips")

	empty, err := NewLexiconAnalyzer().Analyze(context.Background(), Input{Title: "Council meets"})
	require.NoError(t, err)
	assert.Equal(t, "Other", empty.Category)
	assert.Equal(t, 0.3, empty.CategoryConfidence)
	assert.Equal(t, "neutral", empty.Emotion)
	assert.Equal(t, 0.3, empty.Confidence)
}

func TestLikelihoods(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   []float64
	}{
		{name: "confident positive", result: Result{Polarity: 1, Confidence: 1}, want: []float64{1, 0.05, 0.05}},
		{name: "confident negative", result: Result{Polarity: -1, Confidence: 1}, want: []float64{0.05, 0.05, 1}},
		{name: "half positive", result: Result{Polarity: 0.5, Confidence: 1}, want: []float64{0.525, 0.525, 0.05}},
		{name: "no confidence is uninformative", result: Result{Polarity: 0.9, Confidence: 0}, want: []float64{1, 1, 1}},
		{name: "out of range scores clamp", result: Result{Polarity: 3, Confidence: 2}, want: []float64{1, 0.05, 0.05}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Likelihoods(tt.result, Scenarios)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}

	got, err := Likelihoods(Result{Polarity: -1, Confidence: 1}, []string{"negative", "POSITIVE"})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0.05}, got, 1e-12)

	_, err = Likelihoods(Result{}, []string{"Sunny"})
	assert.ErrorIs(t, err, bayes.ErrInvalidInput)
	_, err = Likelihoods(Result{}, nil)
	assert.ErrorIs(t, err, bayes.ErrInvalidInput)
}

func TestLikelihoodsDriveForecaster(t *testing.T) {
	f, err := bayes.NewForecaster(Scenarios, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3})
	require.NoError(t, err)

	l, err := Likelihoods(Result{Polarity: 0.8, Confidence: 0.9}, Scenarios)
	require.NoError(t, err)
	_, err = f.Update(l)
	require.NoError(t, err)

	label, _, err := f.MostLikely()
	require.NoError(t, err)
	assert.Equal(t, "Positive", label)
}

func TestParseReply(t *testing.T) {
	reply := "Sure! Here is the analysis:\n```json\n" + `{
  "sentiment": {"polarity": "0.6", "subjectivity": 1.4, "emotion": "Joy", "confidence": 0.8},
  "categorization": {"primary_category": "technology", "category_confidence": 0.7,
    "all_categories": "Technology, Science", "all_topics": ["chips"]},
  "keywords": {"primary_keywords": ["chips", " ", "AI"], "entities": ["Nvidia"]},
  "summary": " Chip makers rally. ",
  "reasoning": "Upbeat earnings"
}` + "\n```"

	r, err := ParseReply(reply)
	require.NoError(t, err)
	assert.Equal(t, 0.6, r.Polarity)
	assert.Equal(t, 1.0, r.Subjectivity)
	assert.Equal(t, "joy", r.Emotion)
	assert.Equal(t, "Technology", r.Category)
	assert.Equal(t, []string{"Technology", "Science"}, r.Categories)
	assert.Equal(t, []string{"chips", "AI"}, r.Keywords)
	assert.Equal(t, []string{"Nvidia"}, r.Entities)
	assert.Equal(t, "Chip makers rally.", r.Summary)

	r, err = ParseReply(`{"sentiment": {"polarity": -4, "emotion": "excited"}, "categorization": {"primary_category": "Gossip"}}`)
	require.NoError(t, err)
	assert.Equal(t, -1.0, r.Polarity)
	assert.Equal(t, "neutral", r.Emotion)
	assert.Equal(t, "Other", r.Category)
	assert.Equal(t, []string{"Other"}, r.Categories)
	assert.Equal(t, []string{}, r.Topics)

	_, err = ParseReply("no json here")
	assert.Error(t, err)
	_, err = ParseReply(`{"sentiment": {}}`)
	assert.Error(t, err)
}

func chatCompletion(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]string{"role": "assistant", "content": content},
		}},
	})
	return body
}

func llmServer(t *testing.T, handler func(call int32, w http.ResponseWriter)) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		handler(atomic.AddInt32(&calls, 1), w)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

var fastRetry = resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 1}

func TestLLMAnalyzer(t *testing.T) {
	srv, calls := llmServer(t, func(call int32, w http.ResponseWriter) {
		if call < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"message": "model loading", "type": "server_error"}}`))
			return
		}
		w.Write(chatCompletion(`{"sentiment": {"polarity": -0.7, "subjectivity": 0.2, "emotion": "fear", "confidence": 0.9},
			"categorization": {"primary_category": "Environment", "category_confidence": 0.8}}`))
	})

	metrics := monitoring.NewMetrics()
	a := NewLLMAnalyzer(LLMConfig{Host: srv.URL, Model: "test-model", Retry: fastRetry, Metrics: metrics})
	r, err := a.Analyze(context.Background(), Input{Title: "Storm floods coastal towns"})
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.Equal(t, -0.7, r.Polarity)
	assert.Equal(t, "fear", r.Emotion)
	assert.Equal(t, "Environment", r.Category)
	assert.Equal(t, "llm:test-model", r.Analyzer)
	assert.Equal(t, int64(1), metrics.GetExternalAPIStats()["ollama"].(map[string]interface{})["requests"])
}

func TestLLMAnalyzerClientErrorNotRetried(t *testing.T) {
	srv, calls := llmServer(t, func(call int32, w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "model not found", "type": "invalid_request_error"}}`))
	})

	a := NewLLMAnalyzer(LLMConfig{Host: srv.URL, Model: "missing", Retry: fastRetry})
	_, err := a.Analyze(context.Background(), Input{Title: "Anything"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.CategoryExternalAPI, appErr.Category)
}

func TestLLMAnalyzerUnparseableReply(t *testing.T) {
	srv, _ := llmServer(t, func(call int32, w http.ResponseWriter) {
		w.Write(chatCompletion("I am unable to produce JSON today."))
	})

	a := NewLLMAnalyzer(LLMConfig{Host: srv.URL, Model: "m", Retry: fastRetry})
	r, err := a.Analyze(context.Background(), Input{Title: "Markets open flat"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Polarity)
	assert.Equal(t, 0.5, r.Subjectivity)
	assert.Equal(t, 0.3, r.Confidence)
	assert.Equal(t, "Other", r.Category)
	assert.Equal(t, []string{"Unknown"}, r.Topics)
	assert.Equal(t, "Analysis of: Markets open flat...", r.Summary)
	assert.Contains(t, r.Reasoning, "Fallback analysis due to parsing error")
	assert.Equal(t, "llm:m", r.Analyzer)
}

func TestLLMAnalyzerRejectsEmptyInput(t *testing.T) {
	a := NewLLMAnalyzer(LLMConfig{Host: "http://127.0.0.1:1"})
	_, err := a.Analyze(context.Background(), Input{Title: "  "})
	assert.Error(t, err)
}

type stubAnalyzer struct {
	name  string
	calls int32
	fn    func(Input) (Result, error)
}

func (s *stubAnalyzer) Name() string { return s.name }

func (s *stubAnalyzer) Analyze(_ context.Context, in Input) (Result, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.fn(in)
}

func TestFallbackAnalyzer(t *testing.T) {
	primary := &stubAnalyzer{name: "llm", fn: func(Input) (Result, error) { return Result{}, errors.New("down") }}
	secondary := &stubAnalyzer{name: "lexicon", fn: func(Input) (Result, error) { return Result{Analyzer: "lexicon"}, nil }}

	r, err := FallbackAnalyzer{Primary: primary, Secondary: secondary}.Analyze(context.Background(), Input{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, "lexicon", r.Analyzer)

	_, err = FallbackAnalyzer{Primary: primary}.Analyze(context.Background(), Input{Title: "x"})
	assert.EqualError(t, err, "down")
}

func TestCachedAnalyzer(t *testing.T) {
	store := cache.NewMemory(time.Minute, time.Minute)
	defer store.Close()
	metrics := monitoring.NewMetrics()

	inner := &stubAnalyzer{name: "stub", fn: func(in Input) (Result, error) {
		return Result{Polarity: 0.4, Summary: in.Title}, nil
	}}
	a := NewCachedAnalyzer(inner, store, metrics)

	for i := 0; i < 2; i++ {
		r, err := a.Analyze(context.Background(), Input{Title: "same"})
		require.NoError(t, err)
		assert.Equal(t, 0.4, r.Polarity)
	}
	_, err := a.Analyze(context.Background(), Input{Title: "other"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&inner.calls))
	assert.Equal(t, int64(1), metrics.CacheHits)
	assert.Equal(t, int64(2), metrics.CacheMisses)
}

type memoryStore struct {
	mu       sync.Mutex
	pending  []database.Article
	saved    map[string]database.ArticleSentiment
	saveFail bool
}

func (m *memoryStore) Pending(_ context.Context, limit int) ([]database.Article, error) {
	if len(m.pending) > limit {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

func (m *memoryStore) SaveSentiment(_ context.Context, s database.ArticleSentiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveFail {
		return errors.New("disk full")
	}
	m.saved[s.ArticleID] = s
	return nil
}

func TestPipelineRun(t *testing.T) {
	store := &memoryStore{saved: map[string]database.ArticleSentiment{}}
	for i := 0; i < 6; i++ {
		title := fmt.Sprintf("headline %d", i)
		if i == 2 {
			title = "bad"
		}
		store.pending = append(store.pending, database.Article{ID: fmt.Sprintf("a%d", i), Title: title})
	}
	analyzer := &stubAnalyzer{name: "stub", fn: func(in Input) (Result, error) {
		if in.Title == "bad" {
			return Result{}, errors.New("cannot analyze")
		}
		return Result{Polarity: 0.2, Analyzer: "stub"}, nil
	}}
	metrics := monitoring.NewMetrics()

	p := NewPipeline(store, analyzer, PipelineConfig{Workers: 2, BatchSize: 5, Metrics: metrics})
	fixed := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Analyzed)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, store.saved, 4)
	assert.NotContains(t, store.saved, "a2")
	assert.Equal(t, fixed, store.saved["a0"].AnalyzedAt)
	assert.Equal(t, int64(4), metrics.ArticlesAnalyzed)
	assert.Equal(t, int64(1), metrics.AnalysisFailures)
}

func TestPipelineSaveFailureCounts(t *testing.T) {
	store := &memoryStore{
		saved:    map[string]database.ArticleSentiment{},
		pending:  []database.Article{{ID: "a", Title: "one"}},
		saveFail: true,
	}
	p := NewPipeline(store, NewLexiconAnalyzer(), PipelineConfig{})
	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Analyzed)
	assert.Equal(t, 1, stats.Failed)
}
