package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
	"github.com/ZanzyTHEbar/belief-engine/internal/database"
	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
)

// FeatureStore persists predictors and their feature counts.
type FeatureStore interface {
	EnsurePredictor(ctx context.Context, name string, prior float64) (float64, error)
	Prior(ctx context.Context, name string) (float64, error)
	Upsert(ctx context.Context, s database.FeatureStat) error
	List(ctx context.Context, predictor string) ([]database.FeatureStat, error)
	Predictors(ctx context.Context) ([]string, error)
}

type PredictorServiceConfig struct {
	Store   FeatureStore
	Prior   float64
	Metrics *monitoring.Metrics
	Logger  *monitoring.Logger
}

type namedPredictor struct {
	mu sync.RWMutex
	p  *bayes.Predictor
}

// PredictorService keeps named predictors in memory, loading each from
// storage on first use. Records are written to storage before the in-memory
// table.
type PredictorService struct {
	store   FeatureStore
	prior   float64
	metrics *monitoring.Metrics
	logger  *monitoring.Logger

	mu     sync.Mutex
	loaded map[string]*namedPredictor
}

func NewPredictorService(cfg PredictorServiceConfig) (*PredictorService, error) {
	if cfg.Prior == 0 {
		cfg.Prior = 0.5
	}
	if _, err := bayes.NewPredictor(cfg.Prior); err != nil {
		return nil, err
	}
	return &PredictorService{
		store:   cfg.Store,
		prior:   cfg.Prior,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		loaded:  make(map[string]*namedPredictor),
	}, nil
}

// get returns the in-memory predictor for name. With create set, a missing
// predictor is created with the default prior.
func (s *PredictorService) get(ctx context.Context, name string, create bool) (*namedPredictor, error) {
	if name == "" {
		return nil, apperrors.NewValidationError("predictor name is required", "name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if np, ok := s.loaded[name]; ok {
		return np, nil
	}

	prior, err := s.store.Prior(ctx, name)
	switch {
	case errors.Is(err, database.ErrNotFound) && create:
		if prior, err = s.store.EnsurePredictor(ctx, name, s.prior); err != nil {
			return nil, err
		}
	case errors.Is(err, database.ErrNotFound):
		return nil, apperrors.NewNotFoundError("predictor", name)
	case err != nil:
		return nil, err
	}

	p, err := bayes.NewPredictor(prior)
	if err != nil {
		return nil, fmt.Errorf("stored predictor %s: %w", name, err)
	}
	stats, err := s.store.List(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, st := range stats {
		v, err := bayes.ParseValue(bayes.Kind(st.ValueKind), st.Value)
		if err != nil {
			return nil, fmt.Errorf("stored predictor %s: %w", name, err)
		}
		if err := p.Record(st.Feature, v, st.Positive, st.Total); err != nil {
			return nil, fmt.Errorf("stored predictor %s: %w", name, err)
		}
	}

	np := &namedPredictor{p: p}
	s.loaded[name] = np
	return np, nil
}

// Record stores positive/total for (feature, value) under predictor name,
// creating the predictor if needed.
func (s *PredictorService) Record(ctx context.Context, name, feature string, value bayes.Value, positive, total int) (bayes.Entry, error) {
	scratch, _ := bayes.NewPredictor(s.prior)
	if err := scratch.Record(feature, value, positive, total); err != nil {
		return bayes.Entry{}, err
	}

	np, err := s.get(ctx, name, true)
	if err != nil {
		return bayes.Entry{}, err
	}
	np.mu.Lock()
	defer np.mu.Unlock()

	err = s.store.Upsert(ctx, database.FeatureStat{
		Predictor: name,
		Feature:   feature,
		ValueKind: int(value.Kind()),
		Value:     value.String(),
		Positive:  positive,
		Total:     total,
	})
	if err != nil {
		return bayes.Entry{}, err
	}
	if err := np.p.Record(feature, value, positive, total); err != nil {
		return bayes.Entry{}, err
	}
	e, _ := np.p.Lookup(feature, value)
	return e, nil
}

// Train records every row of table under name. A new predictor takes the
// table's prior when it has one; an existing predictor with a different
// prior is rejected before any row is recorded.
func (s *PredictorService) Train(ctx context.Context, name string, table TrainingTable) (int, error) {
	if table.Prior != 0 {
		if name == "" {
			return 0, apperrors.NewValidationError("predictor name is required", "name")
		}
		if _, err := bayes.NewPredictor(table.Prior); err != nil {
			return 0, err
		}
		stored, err := s.store.EnsurePredictor(ctx, name, table.Prior)
		if err != nil {
			return 0, err
		}
		if stored != table.Prior {
			return 0, apperrors.NewValidationError(
				fmt.Sprintf("predictor %s already has prior %g, table asks for %g", name, stored, table.Prior), "prior")
		}
	}
	for i, r := range table.Records {
		if _, err := s.Record(ctx, name, r.Feature, r.Value, r.Positive, r.Total); err != nil {
			return i, fmt.Errorf("record %d (%s=%s): %w", i, r.Feature, r.Value, err)
		}
	}
	return len(table.Records), nil
}

// Predict uses the predictor's stored prior unless prior is given.
func (s *PredictorService) Predict(ctx context.Context, name string, features []bayes.FeatureInput, prior *float64) (bayes.Estimate, error) {
	np, err := s.get(ctx, name, false)
	if err != nil {
		return bayes.Estimate{}, err
	}
	np.mu.RLock()
	p := np.p.Prior()
	if prior != nil {
		p = *prior
	}
	est, err := np.p.PredictWithPrior(features, p)
	np.mu.RUnlock()
	if err != nil {
		return bayes.Estimate{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordPrediction()
	}
	if s.logger != nil {
		s.logger.PredictionLogger(name, est.Probability, est.Confidence, len(est.Used), len(est.Ignored))
	}
	return est, nil
}

func (s *PredictorService) Importance(ctx context.Context, name, feature string) ([]bayes.Importance, error) {
	np, err := s.get(ctx, name, false)
	if err != nil {
		return nil, err
	}
	np.mu.RLock()
	defer np.mu.RUnlock()
	return np.p.FeatureImportance(feature), nil
}

// Features lists the recorded feature names of a predictor.
func (s *PredictorService) Features(ctx context.Context, name string) ([]string, error) {
	np, err := s.get(ctx, name, false)
	if err != nil {
		return nil, err
	}
	np.mu.RLock()
	defer np.mu.RUnlock()
	return np.p.Features(), nil
}

// Entries returns a predictor's whole likelihood table.
func (s *PredictorService) Entries(ctx context.Context, name string) ([]bayes.Entry, error) {
	np, err := s.get(ctx, name, false)
	if err != nil {
		return nil, err
	}
	np.mu.RLock()
	defer np.mu.RUnlock()
	return np.p.Entries(), nil
}

func (s *PredictorService) Predictors(ctx context.Context) ([]string, error) {
	names, err := s.store.Predictors(ctx)
	if names == nil && err == nil {
		names = []string{}
	}
	return names, err
}
