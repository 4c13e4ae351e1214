package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/belief-engine/internal/database"
	"github.com/ZanzyTHEbar/belief-engine/internal/sentiment"
)

func TestBasicStatistics(t *testing.T) {
	grades := []float64{90, 80, 85, 90, 93, 85, 78, 91, 82, 79}

	m, err := Mean(grades)
	require.NoError(t, err)
	assert.InDelta(t, 85.3, m, 1e-9)

	med, err := Median(grades)
	require.NoError(t, err)
	assert.Equal(t, 85.0, med)

	mode, err := Mode(grades)
	require.NoError(t, err)
	assert.Equal(t, 90.0, mode)

	sd, err := StdDev(grades)
	require.NoError(t, err)
	assert.InDelta(t, 5.457919831665622, sd, 1e-9)
}

func TestStatisticsEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		fn   func([]float64) (float64, error)
		in   []float64
		want float64
		err  bool
	}{
		{name: "mean empty", fn: Mean, in: nil, err: true},
		{name: "median empty", fn: Median, in: []float64{}, err: true},
		{name: "mode empty", fn: Mode, in: nil, err: true},
		{name: "stddev single", fn: StdDev, in: []float64{4}, err: true},
		{name: "median odd unsorted", fn: Median, in: []float64{9, 1, 7, 3, 5}, want: 5},
		{name: "median even", fn: Median, in: []float64{1, 2, 3, 4}, want: 2.5},
		{name: "mode first of tie", fn: Mode, in: []float64{3, 1, 1, 3, 2}, want: 3},
		{name: "mode all distinct", fn: Mode, in: []float64{7, 8, 9}, want: 7},
		{name: "stddev constant", fn: StdDev, in: []float64{2, 2, 2}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrEmptySample)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestRobustZ(t *testing.T) {
	sample := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 2.256290746035335, RobustZ(10, sample), 1e-9)
	assert.Equal(t, 0.0, RobustZ(3, sample))
	assert.Less(t, RobustZ(-10, sample), 0.0)

	// zero spread falls back to unit scale
	assert.InDelta(t, math.Asinh(1), RobustZ(6, []float64{5, 5, 5}), 1e-12)
	assert.InDelta(t, math.Asinh(-2), RobustZ(3, []float64{5}), 1e-12)
	assert.InDelta(t, math.Asinh(4), RobustZ(4, nil), 1e-12)
}

func TestMAD(t *testing.T) {
	assert.Equal(t, 1.0, mad([]float64{1, 2, 3, 4, 5}))
	assert.Equal(t, 0.0, mad([]float64{5, 5, 5}))
	assert.Equal(t, 0.0, mad(nil))
	assert.InDelta(t, 0.01, mad([]float64{0.1, 0.12, 0.08, 0.1}), 1e-12)
}

func TestDecayWeight(t *testing.T) {
	assert.Equal(t, 1.0, DecayWeight(0, 7))
	assert.InDelta(t, math.Exp(-1), DecayWeight(7, 7), 1e-12)
	assert.Equal(t, 1.0, DecayWeight(-3, 7))
	assert.Equal(t, 0.0, DecayWeight(1, 0))
}

func analyzed(id string, at time.Time, category, emotion string, polarity, confidence float64, keywords ...string) database.AnalyzedArticle {
	return database.AnalyzedArticle{
		Article: database.Article{ID: id, Title: id},
		Sentiment: database.ArticleSentiment{
			ArticleID:    id,
			Polarity:     polarity,
			Subjectivity: 0.5,
			Confidence:   confidence,
			Emotion:      emotion,
			Category:     category,
			Keywords:     keywords,
			AnalyzedAt:   at,
		},
	}
}

func day(d, h int) time.Time { return time.Date(2026, 10, d, h, 0, 0, 0, time.UTC) }

func TestSummarize(t *testing.T) {
	now := day(18, 0)
	articles := []database.AnalyzedArticle{
		analyzed("a", day(18, 0), "Technology", "joy", 1, 0.8),
		analyzed("b", day(11, 0), "Business", "fear", -1, 0.6),
	}

	s := Summarize(articles, sentiment.DefaultThresholds(), now)
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 0.0, s.MeanPolarity, 1e-12)
	assert.InDelta(t, 0.7, s.MeanConfidence, 1e-12)
	assert.InDelta(t, math.Tanh(0.5), s.RecentPolarity, 1e-12)
	assert.Equal(t, map[sentiment.Label]int{sentiment.Positive: 1, sentiment.Neutral: 0, sentiment.Negative: 1}, s.Labels)
	assert.Equal(t, map[string]int{"Technology": 1, "Business": 1}, s.Categories)
	require.NotNil(t, s.First)
	require.NotNil(t, s.Last)
	assert.Equal(t, day(11, 0), *s.First)
	assert.Equal(t, day(18, 0), *s.Last)

	empty := Summarize(nil, sentiment.DefaultThresholds(), now)
	assert.Equal(t, 0, empty.Count)
	assert.Nil(t, empty.First)
	assert.Equal(t, 0, empty.Labels[sentiment.Positive])
}

func TestTrends(t *testing.T) {
	articles := []database.AnalyzedArticle{
		analyzed("a1", day(14, 10), "Technology", "joy", 0.6, 1.0),
		analyzed("a2", day(14, 15), "Technology", "fear", -0.2, 0.5),
		analyzed("a3", day(14, 16), "Technology", "joy", 0.05, 0.5),
		analyzed("a4", day(13, 9), "Business", "anger", -0.5, 0.8),
	}

	daily := Trends(articles, Daily, sentiment.DefaultThresholds())
	require.Len(t, daily, 2)

	tech := daily[0]
	assert.Equal(t, "Technology", tech.Category)
	assert.Equal(t, day(14, 0), tech.Start)
	assert.Equal(t, day(15, 0), tech.End)
	assert.Equal(t, 3, tech.Articles)
	assert.InDelta(t, 0.15, tech.AvgPolarity, 1e-12)
	assert.InDelta(t, 0.2625, tech.WeightedPolarity, 1e-12)
	assert.Equal(t, 1, tech.Positive)
	assert.Equal(t, 1, tech.Negative)
	assert.Equal(t, 1, tech.Neutral)
	assert.Equal(t, "joy", tech.DominantEmotion)
	assert.Equal(t, "Business", daily[1].Category)

	weekly := Trends(articles, Weekly, sentiment.DefaultThresholds())
	require.Len(t, weekly, 2)
	for _, tr := range weekly {
		assert.Equal(t, day(12, 0), tr.Start, "weeks start on Monday")
		assert.Equal(t, day(19, 0), tr.End)
	}
	assert.Equal(t, "Technology", weekly[0].Category)
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("weekly")
	require.NoError(t, err)
	assert.Equal(t, Weekly, p)
	p, err = ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, Daily, p)
	_, err = ParsePeriod("hourly")
	assert.Error(t, err)

	start, end := Weekly.Bounds(day(18, 23))
	assert.Equal(t, day(12, 0), start)
	assert.Equal(t, day(19, 0), end)
}

func TestAnomalies(t *testing.T) {
	trend := func(category string, d int, polarity float64) Trend {
		return Trend{Period: Daily, Category: category, Start: day(d, 0), AvgPolarity: polarity}
	}
	trends := []Trend{
		trend("Technology", 14, 0.9),
		trend("Technology", 13, 0.1),
		trend("Technology", 12, 0.12),
		trend("Technology", 11, 0.08),
		trend("Technology", 10, 0.1),
		trend("Sports", 14, 0.3),
		trend("Sports", 13, 0.3),
		trend("Sports", 12, 0.31),
		trend("Sports", 11, 0.29),
		trend("Business", 14, -0.9),
	}

	got := Anomalies(trends, 3, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "Technology", got[0].Category)
	assert.Equal(t, day(14, 0), got[0].Start)
	assert.Greater(t, got[0].Z, 3.0)
}

func TestKeywordFrequencies(t *testing.T) {
	articles := []database.AnalyzedArticle{
		analyzed("a", day(14, 0), "Technology", "joy", 0.5, 1, "AI", "chips"),
		analyzed("b", day(14, 0), "Technology", "joy", -0.1, 1, "ai", "AI", "markets", " "),
	}

	got := KeywordFrequencies(articles, 0)
	require.Len(t, got, 3)
	assert.Equal(t, Frequency{Term: "AI", Count: 2, AvgPolarity: 0.2}, Frequency{Term: got[0].Term, Count: got[0].Count, AvgPolarity: math.Round(got[0].AvgPolarity*1e9) / 1e9})
	assert.Equal(t, "chips", got[1].Term)
	assert.Equal(t, "markets", got[2].Term)

	assert.Len(t, KeywordFrequencies(articles, 2), 2)
	assert.Empty(t, TopicFrequencies(articles, 5))
}
