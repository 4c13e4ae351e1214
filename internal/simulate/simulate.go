// Package simulate runs coin flip experiments and tracks whether the coin
// looks fair.
package simulate

import (
	"fmt"
	"math"

	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
)

type Side string

const (
	Heads Side = "Heads"
	Tails Side = "Tails"
)

// Rand is satisfied by *rand.Rand from math/rand and math/rand/v2.
type Rand interface {
	Float64() float64
}

// Flips is the outcome of a run.
type Flips struct {
	Sides []Side `json:"sides"`
	Heads int    `json:"heads"`
	Tails int    `json:"tails"`
}

// CoinFlip flips a coin that lands heads with probability bias n times.
func CoinFlip(rng Rand, n int, bias float64) (Flips, error) {
	if n < 0 {
		return Flips{}, fmt.Errorf("%w: flip count %d is negative", bayes.ErrInvalidInput, n)
	}
	if err := checkBias(bias); err != nil {
		return Flips{}, err
	}
	f := Flips{Sides: make([]Side, 0, n)}
	for i := 0; i < n; i++ {
		if rng.Float64() < bias {
			f.Sides = append(f.Sides, Heads)
			f.Heads++
		} else {
			f.Sides = append(f.Sides, Tails)
			f.Tails++
		}
	}
	return f, nil
}

// Fairness scenario labels.
const (
	Fair   = "Fair"
	Biased = "Biased"
)

// FairnessResult is the belief that a coin is fair after each flip.
type FairnessResult struct {
	Distribution []bayes.ScenarioProbability `json:"distribution"`
	FairHistory  []float64                   `json:"fair_history"`
}

// FairnessForecast starts from even odds between a fair coin and one with
// the given heads bias, and updates once per flip.
func FairnessForecast(sides []Side, bias float64) (FairnessResult, error) {
	if err := checkBias(bias); err != nil {
		return FairnessResult{}, err
	}
	f, err := bayes.NewForecaster([]string{Fair, Biased}, []float64{0.5, 0.5})
	if err != nil {
		return FairnessResult{}, err
	}

	res := FairnessResult{FairHistory: make([]float64, 0, len(sides))}
	for i, s := range sides {
		var l []float64
		switch s {
		case Heads:
			l = []float64{0.5, bias}
		case Tails:
			l = []float64{0.5, 1 - bias}
		default:
			return FairnessResult{}, fmt.Errorf("%w: flip %d has unknown side %q", bayes.ErrInvalidInput, i, s)
		}
		if _, err := f.Update(l); err != nil {
			return FairnessResult{}, fmt.Errorf("flip %d: %w", i, err)
		}
		res.FairHistory = append(res.FairHistory, f.Probabilities()[0])
	}
	res.Distribution = f.Distribution()
	return res, nil
}

func checkBias(bias float64) error {
	if math.IsNaN(bias) || bias < 0 || bias > 1 {
		return fmt.Errorf("%w: bias %v outside [0,1]", bayes.ErrInvalidInput, bias)
	}
	return nil
}
