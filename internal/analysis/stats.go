// Package analysis computes descriptive statistics and sentiment trends over
// analyzed articles.
package analysis

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptySample is returned when a statistic needs more data points.
var ErrEmptySample = errors.New("not enough data points")

func Mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptySample
	}
	return mean(xs), nil
}

func Median(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptySample
	}
	return median(xs), nil
}

// Mode returns the most common value. Ties go to the value seen first.
func Mode(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrEmptySample
	}
	counts := make(map[float64]int, len(xs))
	top := 0
	for _, x := range xs {
		counts[x]++
		if counts[x] > top {
			top = counts[x]
		}
	}
	for _, x := range xs {
		if counts[x] == top {
			return x, nil
		}
	}
	return xs[0], nil
}

// StdDev is the sample standard deviation; it needs at least two values.
func StdDev(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, ErrEmptySample
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1)), nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var s float64
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	cp := append([]float64(nil), xs...)
	sort.Float64s(cp)
	mid := len(cp) / 2
	if len(cp)%2 == 1 {
		return cp[mid]
	}
	return 0.5 * (cp[mid-1] + cp[mid])
}

// mad is the median absolute deviation from the median. It is 0 for an
// empty sample or one without spread.
func mad(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := median(xs)
	dev := make([]float64, len(xs))
	for i, v := range xs {
		dev[i] = math.Abs(v - m)
	}
	return median(dev)
}

// madScale makes MAD a consistent estimator of the standard deviation for
// normally distributed samples.
const madScale = 1.4826

// RobustZ scores x against sample as asinh((x - median) / (1.4826 * MAD)).
// A sample without spread is scored on unit scale.
func RobustZ(x float64, sample []float64) float64 {
	scale := madScale * mad(sample)
	if scale == 0 {
		scale = 1
	}
	return math.Asinh((x - median(sample)) / scale)
}
