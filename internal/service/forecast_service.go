// Package service coordinates the belief core with storage, sentiment
// analysis and observability.
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
	"github.com/ZanzyTHEbar/belief-engine/internal/sentiment"
)

// ForecastStore persists forecasts and their evidence log.
type ForecastStore interface {
	Create(ctx context.Context, f *database.Forecast) error
	Get(ctx context.Context, id string) (*database.Forecast, error)
	List(ctx context.Context) ([]database.Forecast, error)
	ApplyUpdate(ctx context.Context, update *database.EvidenceUpdate) error
	History(ctx context.Context, forecastID string, limit int) ([]database.EvidenceUpdate, error)
	Delete(ctx context.Context, id string) error
}

// CreateForecast describes a new forecast. With Normalize set, Priors may be
// any non-negative weights.
type CreateForecast struct {
	Name      string    `json:"name"`
	Scenarios []string  `json:"scenarios"`
	Priors    []float64 `json:"priors"`
	Normalize bool      `json:"normalize,omitempty"`
}

// ForecastView is a stored forecast with its leading scenario.
type ForecastView struct {
	*database.Forecast
	MostLikely  string  `json:"most_likely"`
	Probability float64 `json:"probability"`
}

// UpdateResult is the outcome of one piece of evidence.
type UpdateResult struct {
	EvidenceID string             `json:"evidence_id"`
	Record     bayes.UpdateRecord `json:"record"`
	Forecast   *ForecastView      `json:"forecast"`
}

// SentimentUpdate is an UpdateResult driven by analyzed text.
type SentimentUpdate struct {
	Sentiment   sentiment.Result `json:"sentiment"`
	Likelihoods []float64        `json:"likelihoods"`
	*UpdateResult
}

type ForecastServiceConfig struct {
	Store    ForecastStore
	Analyzer sentiment.Analyzer
	Metrics  *monitoring.Metrics
	Logger   *monitoring.Logger
}

// ForecastService applies evidence to stored forecasts. Updates to the same
// forecast are serialized.
type ForecastService struct {
	store    ForecastStore
	analyzer sentiment.Analyzer
	metrics  *monitoring.Metrics
	logger   *monitoring.Logger

	mu    sync.Mutex
	locks map[string]*idLock
}

// idLock is released from the map once no caller holds or waits for it.
type idLock struct {
	mu   sync.Mutex
	refs int
}

func NewForecastService(cfg ForecastServiceConfig) *ForecastService {
	return &ForecastService{
		store:    cfg.Store,
		analyzer: cfg.Analyzer,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		locks:    make(map[string]*idLock),
	}
}

func (s *ForecastService) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &idLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

// lockedIDs reports how many forecast IDs currently have a lock entry.
func (s *ForecastService) lockedIDs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

// Create validates the scenarios and priors with the core and stores them.
func (s *ForecastService) Create(ctx context.Context, req CreateForecast) (*ForecastView, error) {
	if req.Name == "" {
		return nil, apperrors.NewValidationError("forecast name is required", "name")
	}
	var f bayes.Forecaster
	var err error
	if req.Normalize {
		err = f.InitializeNormalized(req.Scenarios, req.Priors)
	} else {
		err = f.Initialize(req.Scenarios, req.Priors)
	}
	if err != nil {
		return nil, err
	}

	stored := database.NewForecast(req.Name, f.Scenarios(), f.Probabilities())
	if err := s.store.Create(ctx, stored); err != nil {
		return nil, fmt.Errorf("failed to store forecast: %w", err)
	}
	return view(stored)
}

func (s *ForecastService) Get(ctx context.Context, id string) (*ForecastView, error) {
	stored, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return view(stored)
}

func (s *ForecastService) List(ctx context.Context) ([]ForecastView, error) {
	forecasts, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list forecasts: %w", err)
	}
	out := make([]ForecastView, 0, len(forecasts))
	for i := range forecasts {
		v, err := view(&forecasts[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// ApplyEvidence runs one Bayesian update against the stored distribution and
// persists the posterior together with an evidence log entry. A rejected
// update leaves the stored forecast unchanged.
func (s *ForecastService) ApplyEvidence(ctx context.Context, id, description string, likelihoods []float64) (*UpdateResult, error) {
	unlock := s.lock(id)
	defer unlock()

	stored, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := bayes.NewForecaster(stored.Labels(), stored.Probabilities())
	if err != nil {
		return nil, fmt.Errorf("stored forecast %s is invalid: %w", id, err)
	}

	rec, err := f.Update(likelihoods)
	if err != nil {
		if s.metrics != nil && errors.Is(err, bayes.ErrDegenerateEvidence) {
			s.metrics.RecordUpdate(true)
		}
		return nil, err
	}

	update := database.NewEvidenceUpdate(id, description, rec.Likelihoods, rec.Prior, rec.Posterior, rec.KLDivergence)
	if err := s.store.ApplyUpdate(ctx, update); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("forecast", id)
		}
		return nil, fmt.Errorf("failed to store update: %w", err)
	}

	for i := range stored.Scenarios {
		stored.Scenarios[i].Probability = rec.Posterior[i]
	}
	stored.UpdateCount++
	stored.UpdatedAt = update.CreatedAt

	v, err := view(stored)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordUpdate(false)
	}
	if s.logger != nil {
		s.logger.UpdateLogger(id, description, v.MostLikely, v.Probability, rec.KLDivergence)
	}
	return &UpdateResult{EvidenceID: update.ID, Record: rec, Forecast: v}, nil
}

// ApplySentiment analyzes in and feeds the result to ApplyEvidence. The
// forecast's scenarios must be sentiment labels.
func (s *ForecastService) ApplySentiment(ctx context.Context, id string, in sentiment.Input) (*SentimentUpdate, error) {
	if s.analyzer == nil {
		return nil, apperrors.NewConfigurationError("no sentiment analyzer configured", nil)
	}
	stored, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	result, err := s.analyzer.Analyze(ctx, in)
	if err != nil {
		return nil, err
	}
	likelihoods, err := sentiment.Likelihoods(result, stored.Labels())
	if err != nil {
		return nil, err
	}

	description := "sentiment: " + in.Title
	if in.Title == "" {
		description = "sentiment: " + in.Content
	}
	if r := []rune(description); len(r) > 120 {
		description = string(r[:120])
	}
	upd, err := s.ApplyEvidence(ctx, id, description, likelihoods)
	if err != nil {
		return nil, err
	}
	return &SentimentUpdate{Sentiment: result, Likelihoods: likelihoods, UpdateResult: upd}, nil
}

func (s *ForecastService) History(ctx context.Context, id string, limit int) ([]database.EvidenceUpdate, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	updates, err := s.store.History(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if updates == nil {
		updates = []database.EvidenceUpdate{}
	}
	return updates, nil
}

func (s *ForecastService) Delete(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	err := s.store.Delete(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return apperrors.NewNotFoundError("forecast", id)
	}
	return err
}

func (s *ForecastService) load(ctx context.Context, id string) (*database.Forecast, error) {
	stored, err := s.store.Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("forecast", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast: %w", err)
	}
	return stored, nil
}

func view(f *database.Forecast) (*ForecastView, error) {
	label, p := "", -1.0
	for _, s := range f.Scenarios {
		if s.Probability > p {
			label, p = s.Label, s.Probability
		}
	}
	if label == "" {
		return nil, fmt.Errorf("forecast %s: %w", f.ID, bayes.ErrEmptyState)
	}
	return &ForecastView{Forecast: f, MostLikely: label, Probability: p}, nil
}
