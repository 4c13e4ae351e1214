package database

import (
	"time"

	"github.com/google/uuid"
)

// Forecast is a stored multi-scenario belief distribution.
type Forecast struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Scenarios   []Scenario `json:"scenarios"`
	UpdateCount int        `json:"update_count" db:"update_count"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Scenario is one row of a forecast's distribution, ordered by Position.
type Scenario struct {
	Position    int     `json:"position" db:"position"`
	Label       string  `json:"label" db:"label"`
	Probability float64 `json:"probability" db:"probability"`
}

// EvidenceUpdate is the audit record of one applied likelihood vector.
type EvidenceUpdate struct {
	ID           string    `json:"id" db:"id"`
	ForecastID   string    `json:"forecast_id" db:"forecast_id"`
	Description  string    `json:"description" db:"description"`
	Likelihoods  []float64 `json:"likelihoods" db:"likelihoods"`
	Prior        []float64 `json:"prior" db:"prior"`
	Posterior    []float64 `json:"posterior" db:"posterior"`
	KLDivergence float64   `json:"kl_divergence" db:"kl_divergence"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// FeatureStat is a persisted (feature, value) count pair of a predictor.
type FeatureStat struct {
	Predictor string    `json:"predictor" db:"predictor"`
	Feature   string    `json:"feature" db:"feature"`
	ValueKind int       `json:"value_kind" db:"value_kind"`
	Value     string    `json:"value" db:"value"`
	Positive  int       `json:"positive" db:"positive"`
	Total     int       `json:"total" db:"total"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Article is a scraped or fetched news headline.
type Article struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Link        string     `json:"link" db:"link"`
	Source      string     `json:"source" db:"source"`
	Description string     `json:"description,omitempty" db:"description"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`
	ScrapedAt   time.Time  `json:"scraped_at" db:"scraped_at"`
}

// ArticleSentiment is the stored analysis of one article.
type ArticleSentiment struct {
	ArticleID          string    `json:"article_id" db:"article_id"`
	Polarity           float64   `json:"polarity" db:"polarity"`
	Subjectivity       float64   `json:"subjectivity" db:"subjectivity"`
	Emotion            string    `json:"emotion" db:"emotion"`
	Confidence         float64   `json:"confidence" db:"confidence"`
	Category           string    `json:"category" db:"category"`
	CategoryConfidence float64   `json:"category_confidence" db:"category_confidence"`
	Topics             []string  `json:"topics" db:"topics"`
	Keywords           []string  `json:"keywords" db:"keywords"`
	Entities           []string  `json:"entities" db:"entities"`
	Summary            string    `json:"summary" db:"summary"`
	Reasoning          string    `json:"reasoning" db:"reasoning"`
	Analyzer           string    `json:"analyzer" db:"analyzer"`
	AnalyzedAt         time.Time `json:"analyzed_at" db:"analyzed_at"`
}

// AnalyzedArticle joins an article with its sentiment.
type AnalyzedArticle struct {
	Article
	Sentiment ArticleSentiment `json:"sentiment"`
}

// InsertResult counts the outcome of a batch article insert.
type InsertResult struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

func NewForecast(name string, labels []string, probabilities []float64) *Forecast {
	now := time.Now().UTC()
	f := &Forecast{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, label := range labels {
		f.Scenarios = append(f.Scenarios, Scenario{Position: i, Label: label, Probability: probabilities[i]})
	}
	return f
}

func (f *Forecast) Labels() []string {
	out := make([]string, len(f.Scenarios))
	for i, s := range f.Scenarios {
		out[i] = s.Label
	}
	return out
}

func (f *Forecast) Probabilities() []float64 {
	out := make([]float64, len(f.Scenarios))
	for i, s := range f.Scenarios {
		out[i] = s.Probability
	}
	return out
}

func NewEvidenceUpdate(forecastID, description string, likelihoods, prior, posterior []float64, kl float64) *EvidenceUpdate {
	return &EvidenceUpdate{
		ID:           uuid.New().String(),
		ForecastID:   forecastID,
		Description:  description,
		Likelihoods:  likelihoods,
		Prior:        prior,
		Posterior:    posterior,
		KLDivergence: kl,
		CreatedAt:    time.Now().UTC(),
	}
}

func NewArticle(title, link, source string) *Article {
	return &Article{
		ID:        uuid.New().String(),
		Title:     title,
		Link:      link,
		Source:    source,
		ScrapedAt: time.Now().UTC(),
	}
}
