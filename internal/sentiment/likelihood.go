package sentiment

import (
	"fmt"
	"math"
	"strings"

	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
)

// Scenarios is the default scenario set for sentiment forecasts.
var Scenarios = []string{string(Positive), string(Neutral), string(Negative)}

var labelCentres = map[Label]float64{
	Positive: 1,
	Neutral:  0,
	Negative: -1,
}

// likelihoodFloor is the smallest likelihood a fully confident analysis gives
// any scenario.
const likelihoodFloor = 0.05

// Likelihoods maps r onto a likelihood vector over scenarios, which must be
// sentiment labels (case-insensitive). Each scenario scores a triangular
// kernel of the distance between r.Polarity and its centre, lifted by
// likelihoodFloor and blended towards 1 as confidence drops.
func Likelihoods(r Result, scenarios []string) ([]float64, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("%w: no scenarios", bayes.ErrInvalidInput)
	}
	if math.IsNaN(r.Polarity) || math.IsNaN(r.Confidence) {
		return nil, fmt.Errorf("%w: sentiment scores must be numbers", bayes.ErrInvalidInput)
	}

	polarity := clamp(r.Polarity, -1, 1)
	confidence := clamp(r.Confidence, 0, 1)

	out := make([]float64, len(scenarios))
	for i, s := range scenarios {
		centre, ok := labelCentres[parseLabel(s)]
		if !ok {
			return nil, fmt.Errorf("%w: scenario %q is not a sentiment label", bayes.ErrInvalidInput, s)
		}
		kernel := math.Max(0, 1-math.Abs(polarity-centre))
		l := likelihoodFloor + (1-likelihoodFloor)*kernel
		out[i] = confidence*l + (1 - confidence)
	}
	return out, nil
}

func parseLabel(s string) Label {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return Positive
	case "neutral":
		return Neutral
	case "negative":
		return Negative
	}
	return ""
}
