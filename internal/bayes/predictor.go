package bayes

import (
	"fmt"
	"math"
)

// Entry is one row of the feature likelihood table.
type Entry struct {
	Feature    string  `json:"feature"`
	Value      Value   `json:"value"`
	Positive   int     `json:"positive"`
	Total      int     `json:"total"`
	Likelihood float64 `json:"likelihood"`
}

// FeatureInput is one observed (feature, value) pair passed to Predict.
type FeatureInput struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

type UsedFeature struct {
	Feature    string  `json:"feature"`
	Value      Value   `json:"value"`
	Likelihood float64 `json:"likelihood"`
}

type FeatureRef struct {
	Feature string `json:"feature"`
	Value   Value  `json:"value"`
}

// TraceStep records how a single supplied feature moved the posterior.
type TraceStep struct {
	Feature    string  `json:"feature"`
	Value      Value   `json:"value"`
	Known      bool    `json:"known"`
	Likelihood float64 `json:"likelihood"`
	Before     float64 `json:"before"`
	After      float64 `json:"after"`
	Absorbed   bool    `json:"absorbed,omitempty"`
}

// Estimate is the result of a prediction.
type Estimate struct {
	Prior       float64       `json:"prior"`
	Probability float64       `json:"probability"`
	Confidence  float64       `json:"confidence"`
	Used        []UsedFeature `json:"used"`
	Ignored     []FeatureRef  `json:"ignored"`
	Trace       []TraceStep   `json:"trace"`
}

// Importance is the descriptive weight of one recorded value.
type Importance struct {
	Value      Value   `json:"value"`
	Likelihood float64 `json:"likelihood"`
	Total      int     `json:"total"`
	Score      float64 `json:"score"`
}

type featureTable struct {
	order   []Value
	entries map[Value]Entry
}

// Predictor combines per-feature empirical likelihoods into a posterior for
// a binary outcome. It is not safe for concurrent use.
//
// The zero value records features but has no default prior, so it only
// predicts through PredictWithPrior.
type Predictor struct {
	prior    float64
	order    []string
	features map[string]*featureTable
}

// NewPredictor returns an empty predictor whose default prior is prior.
func NewPredictor(prior float64) (*Predictor, error) {
	if err := checkPrior(prior); err != nil {
		return nil, err
	}
	return &Predictor{
		prior:    prior,
		features: make(map[string]*featureTable),
	}, nil
}

func (p *Predictor) Prior() float64 { return p.prior }

// Record stores positive/total for (feature, value), replacing any earlier
// entry for the same pair.
func (p *Predictor) Record(feature string, value Value, positive, total int) error {
	if feature == "" {
		return invalidInput("empty feature name")
	}
	if total <= 0 {
		return invalidInput("total count %d for %s=%s must be positive", total, feature, value)
	}
	if positive < 0 || positive > total {
		return invalidInput("positive count %d for %s=%s outside [0,%d]", positive, feature, value, total)
	}

	if p.features == nil {
		p.features = make(map[string]*featureTable)
	}
	ft, ok := p.features[feature]
	if !ok {
		ft = &featureTable{entries: make(map[Value]Entry)}
		p.features[feature] = ft
		p.order = append(p.order, feature)
	}
	if _, exists := ft.entries[value]; !exists {
		ft.order = append(ft.order, value)
	}
	ft.entries[value] = Entry{
		Feature:    feature,
		Value:      value,
		Positive:   positive,
		Total:      total,
		Likelihood: float64(positive) / float64(total),
	}
	return nil
}

// Lookup returns the entry for (feature, value), if recorded.
func (p *Predictor) Lookup(feature string, value Value) (Entry, bool) {
	ft, ok := p.features[feature]
	if !ok {
		return Entry{}, false
	}
	e, ok := ft.entries[value]
	return e, ok
}

// Predict runs PredictWithPrior with the configured prior. It fails with
// ErrEmptyState when the predictor was not built by NewPredictor.
func (p *Predictor) Predict(features []FeatureInput) (Estimate, error) {
	if p.prior == 0 {
		return Estimate{}, fmt.Errorf("%w: predictor has no prior", ErrEmptyState)
	}
	return p.PredictWithPrior(features, p.prior)
}

// PredictWithPrior chains the odds-form update over features in the order
// given. Pairs without a recorded likelihood are ignored. Once the posterior
// reaches exactly 0 or 1 it stays there.
func (p *Predictor) PredictWithPrior(features []FeatureInput, prior float64) (Estimate, error) {
	if err := checkPrior(prior); err != nil {
		return Estimate{}, err
	}

	est := Estimate{
		Prior:   prior,
		Used:    []UsedFeature{},
		Ignored: []FeatureRef{},
		Trace:   make([]TraceStep, 0, len(features)),
	}
	posterior := prior
	for _, in := range features {
		step := TraceStep{Feature: in.Name, Value: in.Value, Before: posterior}
		e, ok := p.Lookup(in.Name, in.Value)
		if !ok {
			est.Ignored = append(est.Ignored, FeatureRef{Feature: in.Name, Value: in.Value})
			step.After = posterior
			est.Trace = append(est.Trace, step)
			continue
		}

		step.Known = true
		step.Likelihood = e.Likelihood
		if posterior == 0 || posterior == 1 {
			step.Absorbed = true
		} else {
			posterior = oddsUpdate(e.Likelihood, posterior)
		}
		step.After = posterior
		est.Used = append(est.Used, UsedFeature{Feature: in.Name, Value: in.Value, Likelihood: e.Likelihood})
		est.Trace = append(est.Trace, step)
	}

	est.Probability = posterior
	if len(features) > 0 {
		est.Confidence = float64(len(est.Used)) / float64(len(features))
	}
	return est, nil
}

// FeatureImportance scores every recorded value of feature as
// (likelihood - prior) * total, in recording order.
func (p *Predictor) FeatureImportance(feature string) []Importance {
	ft, ok := p.features[feature]
	if !ok {
		return []Importance{}
	}
	out := make([]Importance, 0, len(ft.order))
	for _, v := range ft.order {
		e := ft.entries[v]
		out = append(out, Importance{
			Value:      v,
			Likelihood: e.Likelihood,
			Total:      e.Total,
			Score:      (e.Likelihood - p.prior) * float64(e.Total),
		})
	}
	return out
}

// Features lists recorded feature names in first-recorded order.
func (p *Predictor) Features() []string { return append([]string(nil), p.order...) }

// Entries returns the whole table in recording order.
func (p *Predictor) Entries() []Entry {
	var out []Entry
	for _, name := range p.order {
		ft := p.features[name]
		for _, v := range ft.order {
			out = append(out, ft.entries[v])
		}
	}
	return out
}

func checkPrior(prior float64) error {
	if math.IsNaN(prior) || prior <= 0 || prior >= 1 {
		return invalidInput("prior %v must lie strictly between 0 and 1", prior)
	}
	return nil
}

// oddsUpdate returns L*p / (L*p + (1-L)*(1-p)). The explicit conversions
// keep each product rounded separately.
func oddsUpdate(l, p float64) float64 {
	num := float64(l * p)
	den := num + float64((1-l)*(1-p))
	if den == 0 {
		return p
	}
	return num / den
}
