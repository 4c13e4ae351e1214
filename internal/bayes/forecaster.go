package bayes

import (
	"fmt"
	"math"
)

const (
	// Tolerance is the allowed deviation of a distribution's sum from 1.
	Tolerance = 1e-9
	// Epsilon is the smallest evidence mass accepted by Update.
	Epsilon = 1e-300
)

// ScenarioProbability pairs a scenario label with its current probability.
type ScenarioProbability struct {
	Scenario    string  `json:"scenario"`
	Probability float64 `json:"probability"`
}

// UpdateRecord describes one successful evidence update.
type UpdateRecord struct {
	Likelihoods  []float64 `json:"likelihoods"`
	Prior        []float64 `json:"prior"`
	Posterior    []float64 `json:"posterior"`
	KLDivergence float64   `json:"kl_divergence"`
}

// Forecaster maintains a categorical belief distribution over a fixed set
// of named scenarios. It is not safe for concurrent use.
type Forecaster struct {
	scenarios []string
	probs     []float64
}

// NewForecaster returns a Forecaster initialized with scenarios and priors.
func NewForecaster(scenarios []string, priors []float64) (*Forecaster, error) {
	f := &Forecaster{}
	if err := f.Initialize(scenarios, priors); err != nil {
		return nil, err
	}
	return f, nil
}

// Initialize replaces the distribution. Priors must be non-negative and sum
// to 1 within Tolerance; labels must be non-empty and unique. On failure the
// previous state is kept.
func (f *Forecaster) Initialize(scenarios []string, priors []float64) error {
	if len(scenarios) == 0 {
		return invalidInput("no scenarios supplied")
	}
	if len(scenarios) != len(priors) {
		return invalidInput("%d scenarios but %d priors", len(scenarios), len(priors))
	}

	seen := make(map[string]struct{}, len(scenarios))
	for _, s := range scenarios {
		if s == "" {
			return invalidInput("empty scenario label")
		}
		if _, dup := seen[s]; dup {
			return invalidInput("duplicate scenario %q", s)
		}
		seen[s] = struct{}{}
	}

	sum := 0.0
	for i, p := range priors {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return invalidInput("prior for %q is %v", scenarios[i], p)
		}
		sum += p
	}
	if math.Abs(sum-1) > Tolerance {
		return invalidInput("priors sum to %v, want 1", sum)
	}

	f.scenarios = append([]string(nil), scenarios...)
	f.probs = append([]float64(nil), priors...)
	return nil
}

// InitializeNormalized scales non-negative weights to a distribution and
// initializes with it.
func (f *Forecaster) InitializeNormalized(scenarios []string, weights []float64) error {
	priors, err := Normalize(weights)
	if err != nil {
		return err
	}
	return f.Initialize(scenarios, priors)
}

// Normalize returns weights scaled to sum to 1.
func Normalize(weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, invalidInput("no weights supplied")
	}
	sum := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, invalidInput("weight %d is %v", i, w)
		}
		sum += w
	}
	if sum <= Epsilon || math.IsInf(sum, 0) {
		return nil, invalidInput("weights sum to %v", sum)
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / sum
	}
	return out, nil
}

// Update applies one piece of evidence: posterior_i = l_i * p_i / Σ l_j * p_j.
// The distribution is replaced only when the whole computation succeeds.
func (f *Forecaster) Update(likelihoods []float64) (UpdateRecord, error) {
	if len(f.probs) == 0 {
		return UpdateRecord{}, fmt.Errorf("%w: forecaster has no scenarios", ErrEmptyState)
	}
	if len(likelihoods) != len(f.probs) {
		return UpdateRecord{}, invalidInput("%d likelihoods for %d scenarios", len(likelihoods), len(f.probs))
	}

	weights := make([]float64, len(f.probs))
	sum := 0.0
	for i, l := range likelihoods {
		if math.IsNaN(l) || math.IsInf(l, 0) || l < 0 {
			return UpdateRecord{}, invalidInput("likelihood for %q is %v", f.scenarios[i], l)
		}
		weights[i] = l * f.probs[i]
		sum += weights[i]
	}
	if sum < Epsilon || math.IsInf(sum, 0) || math.IsNaN(sum) {
		return UpdateRecord{}, degenerate("evidence mass %v", sum)
	}

	for i := range weights {
		weights[i] /= sum
		if math.IsNaN(weights[i]) || math.IsInf(weights[i], 0) {
			return UpdateRecord{}, degenerate("posterior for %q is %v", f.scenarios[i], weights[i])
		}
	}

	rec := UpdateRecord{
		Likelihoods:  append([]float64(nil), likelihoods...),
		Prior:        f.probs,
		Posterior:    append([]float64(nil), weights...),
		KLDivergence: klDivergence(weights, f.probs),
	}
	f.probs = weights
	return rec, nil
}

// MostLikely returns the scenario with the highest probability. Ties go to
// the scenario that was supplied first.
func (f *Forecaster) MostLikely() (string, float64, error) {
	if len(f.probs) == 0 {
		return "", 0, fmt.Errorf("%w: forecaster has no scenarios", ErrEmptyState)
	}
	best := 0
	for i := 1; i < len(f.probs); i++ {
		if f.probs[i] > f.probs[best] {
			best = i
		}
	}
	return f.scenarios[best], f.probs[best], nil
}

// Distribution returns the scenarios and probabilities in insertion order.
func (f *Forecaster) Distribution() []ScenarioProbability {
	out := make([]ScenarioProbability, len(f.probs))
	for i := range f.probs {
		out[i] = ScenarioProbability{Scenario: f.scenarios[i], Probability: f.probs[i]}
	}
	return out
}

func (f *Forecaster) Scenarios() []string { return append([]string(nil), f.scenarios...) }

func (f *Forecaster) Probabilities() []float64 { return append([]float64(nil), f.probs...) }

func (f *Forecaster) Len() int { return len(f.scenarios) }

// klDivergence computes D(q || p). Terms with q_i == 0 contribute nothing,
// and q_i > 0 implies p_i > 0 for a Bayes posterior.
func klDivergence(q, p []float64) float64 {
	d := 0.0
	for i := range q {
		if q[i] > 0 && p[i] > 0 {
			d += q[i] * math.Log(q[i]/p[i])
		}
	}
	if d < 0 {
		return 0
	}
	return d
}
