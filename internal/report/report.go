// Package report renders analyzed news and forecast state as a markdown
// report.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/analysis"
	"github.com/ZanzyTHEbar/belief-engine/internal/database"
	"github.com/ZanzyTHEbar/belief-engine/internal/sentiment"
)

// ArticleSource lists analyzed articles, newest first.
type ArticleSource interface {
	Analyzed(ctx context.Context, since time.Time, limit int) ([]database.AnalyzedArticle, error)
}

// ForecastSource lists stored forecasts.
type ForecastSource interface {
	List(ctx context.Context) ([]database.Forecast, error)
}

// Options tune a Generator. Zero values pick the defaults.
type Options struct {
	Window     time.Duration
	Limit      int
	Thresholds *sentiment.Thresholds
}

// Generator builds reports. Forecasts may be nil.
type Generator struct {
	articles   ArticleSource
	forecasts  ForecastSource
	window     time.Duration
	limit      int
	thresholds sentiment.Thresholds
	now        func() time.Time
}

func NewGenerator(articles ArticleSource, forecasts ForecastSource, opts Options) *Generator {
	g := &Generator{
		articles:   articles,
		forecasts:  forecasts,
		window:     opts.Window,
		limit:      opts.Limit,
		thresholds: sentiment.DefaultThresholds(),
		now:        time.Now,
	}
	if g.window <= 0 {
		g.window = 30 * 24 * time.Hour
	}
	if g.limit <= 0 {
		g.limit = 5000
	}
	if opts.Thresholds != nil {
		g.thresholds = *opts.Thresholds
	}
	return g
}

// Generate renders the report for articles analyzed within the window.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	now := g.now().UTC()
	articles, err := g.articles.Analyzed(ctx, now.Add(-g.window), g.limit)
	if err != nil {
		return "", fmt.Errorf("load analyzed articles: %w", err)
	}
	var forecasts []database.Forecast
	if g.forecasts != nil {
		if forecasts, err = g.forecasts.List(ctx); err != nil {
			return "", fmt.Errorf("load forecasts: %w", err)
		}
	}

	summary := analysis.Summarize(articles, g.thresholds, now)

	var b strings.Builder
	fmt.Fprintf(&b, "# Sentiment Analysis Report\n\nGenerated: %s\n\n", now.Format("2006-01-02 15:04:05 MST"))
	writeOverall(&b, summary)
	if summary.Count > 0 {
		writeCategories(&b, articles, g.thresholds)
		writeFrequencies(&b, "3. Topic Analysis", "Topic", analysis.TopicFrequencies(articles, 10))
		writeFrequencies(&b, "4. Keyword Analysis", "Keyword", analysis.KeywordFrequencies(articles, 15))
		writeEmotions(&b, summary)
		writeTrends(&b, articles, g.thresholds)
	}
	writeForecasts(&b, forecasts)
	writeRecommendations(&b, summary)
	return b.String(), nil
}

func writeOverall(b *strings.Builder, s analysis.Summary) {
	b.WriteString("## 1. Overall Statistics\n\n")
	fmt.Fprintf(b, "Total articles analyzed: **%d**\n\n", s.Count)
	if s.Count == 0 {
		b.WriteString("No data available for analysis.\n\n")
		return
	}
	fmt.Fprintf(b, "- Average polarity: %.3f (range -1 to 1)\n", s.MeanPolarity)
	fmt.Fprintf(b, "- Recency weighted polarity: %.3f\n", s.RecentPolarity)
	fmt.Fprintf(b, "- Average subjectivity: %.3f (range 0 to 1)\n", s.MeanSubjectivity)
	fmt.Fprintf(b, "- Average confidence: %.3f (range 0 to 1)\n\n", s.MeanConfidence)

	b.WriteString("| Sentiment | Articles | Share |\n|---|---:|---:|\n")
	for _, l := range []sentiment.Label{sentiment.Positive, sentiment.Negative, sentiment.Neutral} {
		fmt.Fprintf(b, "| %s | %d | %.1f%% |\n", l, s.Labels[l], pct(s.Labels[l], s.Count))
	}
	if s.First != nil && s.Last != nil {
		fmt.Fprintf(b, "\nTimeframe: %s to %s\n", s.First.Format(time.RFC3339), s.Last.Format(time.RFC3339))
	}
	b.WriteString("\n")
}

func writeCategories(b *strings.Builder, articles []database.AnalyzedArticle, th sentiment.Thresholds) {
	b.WriteString("## 2. Category Analysis\n\n")
	byCategory := map[string][]database.AnalyzedArticle{}
	for _, a := range articles {
		byCategory[a.Sentiment.Category] = append(byCategory[a.Sentiment.Category], a)
	}
	type row struct {
		name string
		s    analysis.Summary
	}
	var rows []row
	for name, as := range byCategory {
		rows = append(rows, row{name: name, s: analysis.Summarize(as, th, time.Time{})})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].s.Count != rows[j].s.Count {
			return rows[i].s.Count > rows[j].s.Count
		}
		return rows[i].name < rows[j].name
	})

	b.WriteString("| Category | Articles | Avg polarity | Positive | Negative | Neutral |\n|---|---:|---:|---:|---:|---:|\n")
	for _, r := range rows {
		fmt.Fprintf(b, "| %s | %d | %.3f | %d | %d | %d |\n", r.name, r.s.Count, r.s.MeanPolarity,
			r.s.Labels[sentiment.Positive], r.s.Labels[sentiment.Negative], r.s.Labels[sentiment.Neutral])
	}
	b.WriteString("\n")
}

func writeFrequencies(b *strings.Builder, title, column string, freqs []analysis.Frequency) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(freqs) == 0 {
		b.WriteString("No data available.\n\n")
		return
	}
	fmt.Fprintf(b, "| %s | Mentions | Avg polarity |\n|---|---:|---:|\n", column)
	for _, f := range freqs {
		fmt.Fprintf(b, "| %s | %d | %.3f |\n", escape(f.Term), f.Count, f.AvgPolarity)
	}
	b.WriteString("\n")
}

func writeEmotions(b *strings.Builder, s analysis.Summary) {
	b.WriteString("## 5. Emotion Analysis\n\n")
	b.WriteString("| Emotion | Articles | Share |\n|---|---:|---:|\n")
	for _, e := range sortedKeys(s.Emotions) {
		fmt.Fprintf(b, "| %s | %d | %.1f%% |\n", e, s.Emotions[e], pct(s.Emotions[e], s.Count))
	}
	b.WriteString("\n")
}

func writeTrends(b *strings.Builder, articles []database.AnalyzedArticle, th sentiment.Thresholds) {
	b.WriteString("## 6. Trends\n\n")
	weekly := analysis.Trends(articles, analysis.Weekly, th)
	b.WriteString("| Week of | Category | Articles | Weighted polarity | Dominant emotion |\n|---|---|---:|---:|---|\n")
	for i, t := range weekly {
		if i == 20 {
			break
		}
		fmt.Fprintf(b, "| %s | %s | %d | %.3f | %s |\n", t.Start.Format("2006-01-02"), t.Category, t.Articles, t.WeightedPolarity, t.DominantEmotion)
	}
	b.WriteString("\n")

	anomalies := analysis.Anomalies(analysis.Trends(articles, analysis.Daily, th), 3, 4)
	if len(anomalies) == 0 {
		return
	}
	b.WriteString("Unusual daily sentiment:\n\n")
	for _, a := range anomalies {
		fmt.Fprintf(b, "- %s on %s: polarity %.3f (robust z %.2f)\n", a.Category, a.Start.Format("2006-01-02"), a.Polarity, a.Z)
	}
	b.WriteString("\n")
}

func writeForecasts(b *strings.Builder, forecasts []database.Forecast) {
	if len(forecasts) == 0 {
		return
	}
	b.WriteString("## 7. Forecasts\n\n")
	b.WriteString("| Forecast | Most likely | Probability | Updates |\n|---|---|---:|---:|\n")
	for _, f := range forecasts {
		label, p := mostLikely(f.Scenarios)
		fmt.Fprintf(b, "| %s | %s | %.1f%% | %d |\n", escape(f.Name), escape(label), p*100, f.UpdateCount)
	}
	b.WriteString("\n")
}

func writeRecommendations(b *strings.Builder, s analysis.Summary) {
	b.WriteString("## 8. Recommendations\n\n")
	if s.Count == 0 {
		b.WriteString("No data available for recommendations.\n")
		return
	}
	switch {
	case s.MeanPolarity < -0.2:
		b.WriteString("- Overall sentiment is quite negative. Watch for crisis coverage and look for root causes.\n")
	case s.MeanPolarity > 0.2:
		b.WriteString("- Overall sentiment is positive. The current coverage is favourable.\n")
	default:
		b.WriteString("- Overall sentiment is neutral. Monitor for emerging trends.\n")
	}
	if len(s.Categories) < 5 {
		fmt.Fprintf(b, "- Limited category diversity (%d categories). Consider adding news sources or queries.\n", len(s.Categories))
	}
	b.WriteString("- Collect news regularly and spot check analyzer output against the headlines.\n")
}

func mostLikely(scenarios []database.Scenario) (string, float64) {
	label, best := "", -1.0
	for _, s := range scenarios {
		if s.Probability > best {
			label, best = s.Label, s.Probability
		}
	}
	if best < 0 {
		return "-", 0
	}
	return label, best
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func escape(s string) string { return strings.ReplaceAll(s, "|", `\|`) }
