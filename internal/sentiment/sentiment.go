// Package sentiment scores news text and turns the scores into evidence for
// a belief forecaster.
package sentiment

import (
	"context"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/database"
)

// Emotions and Categories are the closed vocabularies an analysis may use.
var (
	Emotions   = []string{"joy", "sadness", "anger", "fear", "surprise", "disgust", "neutral"}
	Categories = []string{
		"Technology", "Business", "Politics", "Health", "Sports", "Entertainment",
		"Science", "Environment", "Education", "Travel", "Other",
	}
)

// Input is the text handed to an Analyzer.
type Input struct {
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

func (in Input) Text() string {
	return strings.TrimSpace(in.Title + " " + in.Content)
}

// Result is one analysis. Polarity is in [-1,1]; every other score is in [0,1].
type Result struct {
	Polarity           float64  `json:"polarity"`
	Subjectivity       float64  `json:"subjectivity"`
	Emotion            string   `json:"emotion"`
	Confidence         float64  `json:"confidence"`
	Category           string   `json:"category"`
	CategoryConfidence float64  `json:"category_confidence"`
	Categories         []string `json:"categories"`
	Topics             []string `json:"topics"`
	Keywords           []string `json:"keywords"`
	Entities           []string `json:"entities"`
	Summary            string   `json:"summary"`
	Reasoning          string   `json:"reasoning"`
	Analyzer           string   `json:"analyzer"`
}

// Analyzer scores a piece of text.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, in Input) (Result, error)
}

// Label is the coarse sentiment class of a polarity.
type Label string

const (
	Positive Label = "Positive"
	Neutral  Label = "Neutral"
	Negative Label = "Negative"
)

// Thresholds split polarity into labels: above Positive is positive, below
// Negative is negative.
type Thresholds struct {
	Positive float64
	Negative float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{Positive: 0.1, Negative: -0.1}
}

func (t Thresholds) Label(polarity float64) Label {
	switch {
	case polarity > t.Positive:
		return Positive
	case polarity < t.Negative:
		return Negative
	default:
		return Neutral
	}
}

// ToRecord converts r into the stored form for articleID.
func ToRecord(articleID string, r Result, at time.Time) database.ArticleSentiment {
	return database.ArticleSentiment{
		ArticleID:          articleID,
		Polarity:           r.Polarity,
		Subjectivity:       r.Subjectivity,
		Emotion:            r.Emotion,
		Confidence:         r.Confidence,
		Category:           r.Category,
		CategoryConfidence: r.CategoryConfidence,
		Topics:             r.Topics,
		Keywords:           r.Keywords,
		Entities:           r.Entities,
		Summary:            r.Summary,
		Reasoning:          r.Reasoning,
		Analyzer:           r.Analyzer,
		AnalyzedAt:         at.UTC(),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
