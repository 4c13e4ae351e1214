package analysis

import (
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/belief-engine/internal/database"
)

// Frequency counts how often a term occurs and the mean polarity of the
// articles it occurs in.
type Frequency struct {
	Term        string  `json:"term"`
	Count       int     `json:"count"`
	AvgPolarity float64 `json:"avg_polarity"`
}

// KeywordFrequencies ranks keywords across articles, case-insensitively.
func KeywordFrequencies(articles []database.AnalyzedArticle, limit int) []Frequency {
	return frequencies(articles, limit, func(s database.ArticleSentiment) []string { return s.Keywords })
}

// TopicFrequencies ranks topics across articles, case-insensitively.
func TopicFrequencies(articles []database.AnalyzedArticle, limit int) []Frequency {
	return frequencies(articles, limit, func(s database.ArticleSentiment) []string { return s.Topics })
}

func frequencies(articles []database.AnalyzedArticle, limit int, terms func(database.ArticleSentiment) []string) []Frequency {
	type acc struct {
		display string
		count   int
		polSum  float64
	}
	byTerm := map[string]*acc{}
	var order []string
	for _, a := range articles {
		seen := map[string]bool{}
		for _, term := range terms(a.Sentiment) {
			term = strings.TrimSpace(term)
			key := strings.ToLower(term)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			c, ok := byTerm[key]
			if !ok {
				c = &acc{display: term}
				byTerm[key] = c
				order = append(order, key)
			}
			c.count++
			c.polSum += a.Sentiment.Polarity
		}
	}

	out := make([]Frequency, 0, len(order))
	for _, key := range order {
		c := byTerm[key]
		out = append(out, Frequency{Term: c.display, Count: c.count, AvgPolarity: c.polSum / float64(c.count)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
