package sentiment

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/belief-engine/internal/database"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
)

// PendingStore is the part of the article repository the pipeline needs.
type PendingStore interface {
	Pending(ctx context.Context, limit int) ([]database.Article, error)
	SaveSentiment(ctx context.Context, s database.ArticleSentiment) error
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Workers   int
	BatchSize int
	Metrics   *monitoring.Metrics
	Logger    *monitoring.Logger
}

// RunStats summarizes one pipeline run.
type RunStats struct {
	Analyzed int           `json:"analyzed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Pipeline analyzes stored articles that have no sentiment yet.
type Pipeline struct {
	store    PendingStore
	analyzer Analyzer
	workers  int
	batch    int
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger
	now      func() time.Time
}

func NewPipeline(store PendingStore, analyzer Analyzer, cfg PipelineConfig) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Pipeline{
		store:    store,
		analyzer: analyzer,
		workers:  cfg.Workers,
		batch:    cfg.BatchSize,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      time.Now,
	}
}

// Run analyzes one batch of pending articles. A failed article is counted
// and left pending; only store and context errors abort the run.
func (p *Pipeline) Run(ctx context.Context) (RunStats, error) {
	start := time.Now()
	articles, err := p.store.Pending(ctx, p.batch)
	if err != nil {
		return RunStats{}, err
	}

	var (
		mu    sync.Mutex
		stats RunStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, a := range articles {
		a := a
		g.Go(func() error {
			r, err := p.analyzer.Analyze(gctx, Input{Title: a.Title, Content: a.Description})
			if err == nil {
				err = p.store.SaveSentiment(gctx, ToRecord(a.ID, r, p.now()))
			}
			if p.metrics != nil {
				p.metrics.RecordAnalysis(err == nil)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				stats.Failed++
				slog.Warn("Article analysis failed", "article_id", a.ID, "error", err)
				return nil
			}
			stats.Analyzed++
			return nil
		})
	}
	err = g.Wait()
	stats.Duration = time.Since(start)
	if p.logger != nil {
		p.logger.PipelineLogger(p.analyzer.Name(), stats.Analyzed, stats.Failed, stats.Duration)
	}
	return stats, err
}
