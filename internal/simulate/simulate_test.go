package simulate

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
)

type fixedRand []float64

func (f *fixedRand) Float64() float64 {
	v := (*f)[0]
	*f = (*f)[1:]
	return v
}

func TestCoinFlip(t *testing.T) {
	rng := fixedRand{0.1, 0.9, 0.49, 0.5}
	f, err := CoinFlip(&rng, 4, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []Side{Heads, Tails, Heads, Tails}, f.Sides)
	assert.Equal(t, 2, f.Heads)
	assert.Equal(t, 2, f.Tails)
}

func TestCoinFlipSeeded(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	f, err := CoinFlip(rng, 1000, 0.8)
	require.NoError(t, err)
	assert.Equal(t, 1000, f.Heads+f.Tails)
	assert.InDelta(t, 800, f.Heads, 60)

	none, err := CoinFlip(rng, 0, 0.5)
	require.NoError(t, err)
	assert.Empty(t, none.Sides)
}

func TestCoinFlipValidation(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, tc := range []struct {
		n    int
		bias float64
	}{{-1, 0.5}, {10, -0.1}, {10, 1.1}} {
		_, err := CoinFlip(rng, tc.n, tc.bias)
		assert.ErrorIs(t, err, bayes.ErrInvalidInput)
	}
}

func TestFairnessForecast(t *testing.T) {
	res, err := FairnessForecast([]Side{Heads, Heads}, 0.75)
	require.NoError(t, err)

	// after one head: 0.25 / (0.25 + 0.375) = 0.4
	// after two heads: 0.125 / (0.125 + 0.28125) = 4/13
	require.Len(t, res.FairHistory, 2)
	assert.InDelta(t, 0.4, res.FairHistory[0], 1e-12)
	assert.InDelta(t, 4.0/13, res.FairHistory[1], 1e-12)
	assert.Equal(t, Fair, res.Distribution[0].Scenario)
	assert.InDelta(t, 9.0/13, res.Distribution[1].Probability, 1e-12)

	// a tail rules out an always-heads coin
	res, err = FairnessForecast([]Side{Heads, Tails}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Distribution[0].Probability)

	_, err = FairnessForecast([]Side{"Edge"}, 0.5)
	assert.ErrorIs(t, err, bayes.ErrInvalidInput)
}
