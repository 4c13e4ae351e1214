package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/database"
	"github.com/ZanzyTHEbar/belief-engine/internal/sentiment"
)

// Period is a trend bucket size.
type Period string

const (
	Daily  Period = "daily"
	Weekly Period = "weekly"
)

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case Daily, Weekly:
		return Period(s), nil
	case "":
		return Daily, nil
	}
	return "", fmt.Errorf("unknown period %q (want daily or weekly)", s)
}

// Bounds returns the UTC bucket [start, end) containing t. Weeks start on
// Monday.
func (p Period) Bounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if p == Weekly {
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	}
	return day, day.AddDate(0, 0, 1)
}

// Trend aggregates one category over one period.
type Trend struct {
	Period           Period    `json:"period"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Category         string    `json:"category"`
	Articles         int       `json:"articles"`
	AvgPolarity      float64   `json:"avg_polarity"`
	AvgSubjectivity  float64   `json:"avg_subjectivity"`
	WeightedPolarity float64   `json:"weighted_polarity"`
	Positive         int       `json:"positive"`
	Negative         int       `json:"negative"`
	Neutral          int       `json:"neutral"`
	DominantEmotion  string    `json:"dominant_emotion"`
}

type trendKey struct {
	start    time.Time
	category string
}

type trendAcc struct {
	Trend
	polSum, subjSum  float64
	confPol, confSum float64
	emotions         map[string]int
	emotionOrder     []string
}

// Trends buckets articles by period and category. WeightedPolarity weights
// polarity by analysis confidence. Results are newest period first, then by
// article count.
func Trends(articles []database.AnalyzedArticle, period Period, th sentiment.Thresholds) []Trend {
	accs := map[trendKey]*trendAcc{}
	for _, a := range articles {
		st := a.Sentiment
		start, end := period.Bounds(st.AnalyzedAt)
		category := st.Category
		if category == "" {
			category = "Other"
		}
		k := trendKey{start: start, category: category}
		acc, ok := accs[k]
		if !ok {
			acc = &trendAcc{
				Trend:    Trend{Period: period, Start: start, End: end, Category: category},
				emotions: map[string]int{},
			}
			accs[k] = acc
		}

		acc.Articles++
		acc.polSum += st.Polarity
		acc.subjSum += st.Subjectivity
		acc.confPol += st.Confidence * st.Polarity
		acc.confSum += st.Confidence
		switch th.Label(st.Polarity) {
		case sentiment.Positive:
			acc.Positive++
		case sentiment.Negative:
			acc.Negative++
		default:
			acc.Neutral++
		}
		if _, seen := acc.emotions[st.Emotion]; !seen {
			acc.emotionOrder = append(acc.emotionOrder, st.Emotion)
		}
		acc.emotions[st.Emotion]++
	}

	out := make([]Trend, 0, len(accs))
	for _, acc := range accs {
		t := acc.Trend
		n := float64(t.Articles)
		t.AvgPolarity = acc.polSum / n
		t.AvgSubjectivity = acc.subjSum / n
		if acc.confSum > 0 {
			t.WeightedPolarity = acc.confPol / acc.confSum
		} else {
			t.WeightedPolarity = t.AvgPolarity
		}
		top := 0
		for _, e := range acc.emotionOrder {
			if acc.emotions[e] > top {
				t.DominantEmotion, top = e, acc.emotions[e]
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.After(out[j].Start)
		}
		if out[i].Articles != out[j].Articles {
			return out[i].Articles > out[j].Articles
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Anomaly flags a category whose latest period polarity is far from its
// own history.
type Anomaly struct {
	Category string    `json:"category"`
	Start    time.Time `json:"start"`
	Polarity float64   `json:"polarity"`
	Z        float64   `json:"z"`
}

// Anomalies scores the newest trend of each category against the category's
// earlier trends with RobustZ and returns those with |z| >= threshold.
// Categories with fewer than minHistory earlier periods are skipped.
func Anomalies(trends []Trend, threshold float64, minHistory int) []Anomaly {
	history := map[string][]Trend{}
	var order []string
	for _, t := range trends {
		if _, ok := history[t.Category]; !ok {
			order = append(order, t.Category)
		}
		history[t.Category] = append(history[t.Category], t)
	}

	out := []Anomaly{}
	for _, category := range order {
		ts := history[category]
		sort.Slice(ts, func(i, j int) bool { return ts[i].Start.After(ts[j].Start) })
		if len(ts)-1 < minHistory || len(ts) < 2 {
			continue
		}
		sample := make([]float64, 0, len(ts)-1)
		for _, t := range ts[1:] {
			sample = append(sample, t.AvgPolarity)
		}
		z := RobustZ(ts[0].AvgPolarity, sample)
		if z >= threshold || z <= -threshold {
			out = append(out, Anomaly{Category: category, Start: ts[0].Start, Polarity: ts[0].AvgPolarity, Z: z})
		}
	}
	return out
}
