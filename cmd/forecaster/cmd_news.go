package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/analysis"
	"github.com/ZanzyTHEbar/belief-engine/internal/app"
	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
	"github.com/ZanzyTHEbar/belief-engine/internal/database"
	"github.com/ZanzyTHEbar/belief-engine/internal/news"
	"github.com/ZanzyTHEbar/belief-engine/internal/sentiment"
	"github.com/spf13/cobra"
)

var (
	reportOut   string
	trendPeriod string
	windowDays  int
	newsTimeout time.Duration

	retentionDays int
)

var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Collect news headlines and analyze their sentiment",
	Long: `Collect headlines from NewsAPI or the Google News page, store them,
analyze their sentiment and report on the results.

Subcommands:
  fetch    - Fetch articles from NewsAPI (needs NEWSAPI_KEY)
  scrape   - Scrape headlines from Google News
  analyze  - Analyze stored articles that have no sentiment yet
  report   - Render the markdown sentiment report
  trends   - Show sentiment trends per category
  summary  - Show overall sentiment figures`,
}

var newsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch articles from NewsAPI",
	RunE: func(cmd *cobra.Command, args []string) error {
		return collect(cmd, func(a *app.App) news.Source { return a.NewsAPI })
	},
}

var newsScrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape headlines from Google News",
	RunE: func(cmd *cobra.Command, args []string) error {
		return collect(cmd, func(a *app.App) news.Source { return a.Scraper })
	},
}

var newsAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze pending articles",
	RunE:  runNewsAnalyze,
}

var newsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the sentiment report",
	RunE:  runNewsReport,
}

var newsTrendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show sentiment trends per category",
	RunE:  runNewsTrends,
}

var newsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show overall sentiment figures",
	RunE:  runNewsSummary,
}

var newsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete stored articles older than --older-than days",
	RunE:  runNewsPrune,
}

func init() {
	newsCmd.PersistentFlags().DurationVar(&newsTimeout, "timeout", 5*time.Minute, "Operation timeout")
	newsReportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Write the markdown report to a file instead of the terminal")
	newsTrendsCmd.Flags().StringVarP(&trendPeriod, "period", "p", "daily", "Bucket size: daily or weekly")
	for _, c := range []*cobra.Command{newsTrendsCmd, newsSummaryCmd} {
		c.Flags().IntVarP(&windowDays, "days", "d", 30, "Window in days")
	}
	newsPruneCmd.Flags().IntVar(&retentionDays, "older-than", 90, "Retention in days")

	newsCmd.AddCommand(newsFetchCmd, newsScrapeCmd, newsAnalyzeCmd, newsReportCmd, newsTrendsCmd, newsSummaryCmd, newsPruneCmd)
}

func newsContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), newsTimeout)
}

func collect(cmd *cobra.Command, source func(*app.App) news.Source) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := newsContext()
	defer cancel()

	src := source(a)
	articles, err := src.Articles(ctx)
	if err != nil {
		return err
	}
	res, err := news.Store(ctx, a.Articles, articles)
	if err != nil {
		return err
	}
	a.Metrics.RecordArticlesStored(res.Inserted)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d new, %d already stored\n", successStyle.Render("✓"), src.Name(), res.Inserted, res.Skipped)
	return nil
}

func runNewsAnalyze(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := newsContext()
	defer cancel()

	out := cmd.OutOrStdout()
	var total analysisTotals
	// failed articles stay pending, so stop once a batch analyzes nothing
	for {
		stats, err := a.Pipeline.Run(ctx)
		if err != nil {
			return err
		}
		total.Analyzed += stats.Analyzed
		total.Failed = stats.Failed
		total.Duration += stats.Duration
		if stats.Analyzed == 0 {
			break
		}
	}
	if jsonOutput {
		return printJSON(out, total)
	}
	fmt.Fprintf(out, "%s analyzed %d articles with %s in %s\n",
		successStyle.Render("✓"), total.Analyzed, a.Analyzer.Name(), total.Duration.Round(time.Millisecond))
	if total.Failed > 0 {
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("%d articles could not be analyzed and remain pending", total.Failed)))
	}
	return nil
}

// analysisTotals sums pipeline runs. Failed is the count still pending
// after the last run.
type analysisTotals struct {
	Analyzed int           `json:"analyzed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

func runNewsReport(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	md, err := a.Reports.Generate(cmd.Context())
	if err != nil {
		return err
	}
	if reportOut != "" {
		if err := os.WriteFile(reportOut, []byte(md), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s report written to %s\n", successStyle.Render("✓"), reportOut)
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(md))
	return nil
}

func loadRecent(ctx context.Context, a *app.App) ([]database.AnalyzedArticle, error) {
	return a.Articles.Analyzed(ctx, time.Now().AddDate(0, 0, -windowDays), 5000)
}

func runNewsTrends(cmd *cobra.Command, args []string) error {
	period, err := analysis.ParsePeriod(trendPeriod)
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	articles, err := loadRecent(cmd.Context(), a)
	if err != nil {
		return err
	}
	trends := analysis.Trends(articles, period, a.Thresholds)
	anomalies := analysis.Anomalies(trends, 3, 4)

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, map[string]interface{}{"trends": trends, "anomalies": anomalies})
	}
	printTrends(out, trends, anomalies)
	return nil
}

func printTrends(out io.Writer, trends []analysis.Trend, anomalies []analysis.Anomaly) {
	if len(trends) == 0 {
		fmt.Fprintln(out, "No analyzed articles in the window.")
		return
	}
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%-12s %-16s %8s %10s %5s %5s %5s  %s", "Start", "Category", "Articles", "Polarity", "Pos", "Neu", "Neg", "Emotion")))
	for _, t := range trends {
		fmt.Fprintf(out, "%-12s %-16s %8d %+10.3f %5d %5d %5d  %s\n",
			t.Start.Format("2006-01-02"), t.Category, t.Articles, t.WeightedPolarity, t.Positive, t.Neutral, t.Negative, t.DominantEmotion)
	}
	for _, an := range anomalies {
		fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("unusual: %s on %s polarity %.3f (z %.2f)", an.Category, an.Start.Format("2006-01-02"), an.Polarity, an.Z)))
	}
}

func runNewsSummary(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	articles, err := loadRecent(cmd.Context(), a)
	if err != nil {
		return err
	}
	s := analysis.Summarize(articles, a.Thresholds, time.Now())

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, s)
	}
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%d analyzed articles in the last %d days", s.Count, windowDays)))
	if s.Count == 0 {
		return nil
	}
	fmt.Fprintf(out, "%s %+.3f\n", labelStyle.Render("Mean polarity"), s.MeanPolarity)
	fmt.Fprintf(out, "%s %+.3f\n", labelStyle.Render("Recent polarity"), s.RecentPolarity)
	fmt.Fprintf(out, "%s %.3f\n", labelStyle.Render("Mean subjectivity"), s.MeanSubjectivity)
	fmt.Fprintf(out, "%s %.3f\n", labelStyle.Render("Mean confidence"), s.MeanConfidence)
	for _, label := range []sentiment.Label{sentiment.Positive, sentiment.Neutral, sentiment.Negative} {
		share := float64(s.Labels[label]) / float64(s.Count)
		fmt.Fprintf(out, "%s %s %5.1f%%\n", labelStyle.Render(string(label)), bar(share), share*100)
	}
	return nil
}

func runNewsPrune(cmd *cobra.Command, args []string) error {
	if retentionDays < 1 {
		return fmt.Errorf("%w: --older-than must be at least 1", bayes.ErrInvalidInput)
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := newsContext()
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	n, err := a.Articles.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	a.Logger.Info("Pruned articles", "cutoff", cutoff, "deleted", n)
	fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %d articles scraped before %s\n", successStyle.Render("✓"), n, cutoff.Format("2006-01-02"))
	return nil
}
