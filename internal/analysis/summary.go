package analysis

import (
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/database"
	"github.com/ZanzyTHEbar/belief-engine/internal/sentiment"
)

// RecencyTau is the decay constant, in days, for recency weighted polarity.
const RecencyTau = 7.0

// Summary describes a set of analyzed articles.
type Summary struct {
	Count            int                     `json:"count"`
	MeanPolarity     float64                 `json:"mean_polarity"`
	MeanSubjectivity float64                 `json:"mean_subjectivity"`
	MeanConfidence   float64                 `json:"mean_confidence"`
	RecentPolarity   float64                 `json:"recent_polarity"`
	Labels           map[sentiment.Label]int `json:"labels"`
	Emotions         map[string]int          `json:"emotions"`
	Categories       map[string]int          `json:"categories"`
	First            *time.Time              `json:"first,omitempty"`
	Last             *time.Time              `json:"last,omitempty"`
}

// Summarize aggregates articles. RecentPolarity weights each polarity by
// DecayWeight of its age at now.
func Summarize(articles []database.AnalyzedArticle, th sentiment.Thresholds, now time.Time) Summary {
	s := Summary{
		Count: len(articles),
		Labels: map[sentiment.Label]int{
			sentiment.Positive: 0,
			sentiment.Neutral:  0,
			sentiment.Negative: 0,
		},
		Emotions:   map[string]int{},
		Categories: map[string]int{},
	}
	if len(articles) == 0 {
		return s
	}

	pol := make([]float64, 0, len(articles))
	subj := make([]float64, 0, len(articles))
	conf := make([]float64, 0, len(articles))
	var weighted, weights float64
	for _, a := range articles {
		st := a.Sentiment
		pol = append(pol, st.Polarity)
		subj = append(subj, st.Subjectivity)
		conf = append(conf, st.Confidence)
		s.Labels[th.Label(st.Polarity)]++
		s.Emotions[st.Emotion]++
		s.Categories[st.Category]++

		w := DecayWeight(ageDays(now, st.AnalyzedAt), RecencyTau)
		weighted += w * st.Polarity
		weights += w

		at := st.AnalyzedAt
		if s.First == nil || at.Before(*s.First) {
			s.First = &at
		}
		if s.Last == nil || at.After(*s.Last) {
			s.Last = &at
		}
	}
	s.MeanPolarity = mean(pol)
	s.MeanSubjectivity = mean(subj)
	s.MeanConfidence = mean(conf)
	if weights > 0 {
		s.RecentPolarity = weighted / weights
	}
	return s
}
