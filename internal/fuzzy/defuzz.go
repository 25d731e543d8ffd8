package fuzzy

import (
	"math"
	"strings"
)

// Method selects a defuzzification strategy.
type Method int

const (
	Centroid Method = iota
	Bisector
	SmallestOfMaximum
	MeanOfMaximum
	LargestOfMaximum
)

func (m Method) String() string {
	switch m {
	case Bisector:
		return "bisector"
	case SmallestOfMaximum:
		return "som"
	case MeanOfMaximum:
		return "mom"
	case LargestOfMaximum:
		return "lom"
	default:
		return "centroid"
	}
}

// ParseMethod accepts short and long method names.
func ParseMethod(s string) (Method, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "centroid":
		return Centroid, true
	case "bisector":
		return Bisector, true
	case "som", "smallest_of_maximum":
		return SmallestOfMaximum, true
	case "mom", "mean_of_maximum":
		return MeanOfMaximum, true
	case "lom", "largest_of_maximum":
		return LargestOfMaximum, true
	}
	return 0, false
}

// plateauTolerance is how close to the maximum a sample must be to count as
// part of the maximum plateau.
const plateauTolerance = 1e-9

// Defuzzify reduces a sampled distribution (mu at positions xs) to one
// value. It reports false when the distribution is empty or all zero.
func Defuzzify(m Method, xs, mu []float64) (float64, bool) {
	if len(xs) == 0 || len(xs) != len(mu) {
		return NoData, false
	}
	switch m {
	case Bisector:
		return bisector(xs, mu)
	case SmallestOfMaximum, MeanOfMaximum, LargestOfMaximum:
		lo, hi, ok := maxPlateau(mu)
		if !ok {
			return NoData, false
		}
		switch m {
		case SmallestOfMaximum:
			return xs[lo], true
		case LargestOfMaximum:
			return xs[hi], true
		}
		return (xs[lo] + xs[hi]) / 2, true
	default:
		return centroid(xs, mu)
	}
}

// centroid integrates x*mu and mu with composite Simpson weights
// (1,4,2,...,4,1). An odd number of intervals falls back to trapezoid
// weights on the final interval.
func centroid(xs, mu []float64) (float64, bool) {
	n := len(xs) - 1
	if n == 0 {
		if mu[0] > 0 {
			return xs[0], true
		}
		return NoData, false
	}
	var num, den float64
	for j := range xs {
		w := simpsonWeight(j, n)
		num += w * xs[j] * mu[j]
		den += w * mu[j]
	}
	if den <= 0 {
		return NoData, false
	}
	return num / den, true
}

func simpsonWeight(j, n int) float64 {
	if n%2 == 1 {
		// Simpson over [0, n-1], trapezoid over the last interval.
		switch {
		case n == 1:
			return 1.5
		case j == n:
			return 1.5
		case j == n-1:
			return simpsonWeight(j, n-1) + 1.5
		}
		return simpsonWeight(j, n-1)
	}
	switch {
	case j == 0 || j == n:
		return 1
	case j%2 == 1:
		return 4
	}
	return 2
}

// bisector finds the sample where the cumulative area from the left best
// matches the cumulative area from the right. When two neighbouring samples
// tie, the midpoint between them is returned.
func bisector(xs, mu []float64) (float64, bool) {
	n := len(mu)
	fwd := make([]float64, n)
	var total float64
	for j, y := range mu {
		total += y
		fwd[j] = total
	}
	if total <= 0 {
		return NoData, false
	}
	best, bestDiff := 0, math.Inf(1)
	tie := false
	for j := range mu {
		bwd := total - fwd[j] + mu[j]
		d := math.Abs(fwd[j] - bwd)
		switch {
		case d < bestDiff:
			best, bestDiff, tie = j, d, false
		case d == bestDiff && j == best+1:
			tie = true
		}
	}
	if tie {
		return (xs[best] + xs[best+1]) / 2, true
	}
	return xs[best], true
}

// maxPlateau returns the first and last sample index at the maximum.
func maxPlateau(mu []float64) (int, int, bool) {
	peak := 0.0
	for _, y := range mu {
		if y > peak {
			peak = y
		}
	}
	if peak <= 0 {
		return 0, 0, false
	}
	lo, hi := -1, -1
	for j, y := range mu {
		if y >= peak-plateauTolerance {
			if lo < 0 {
				lo = j
			}
			hi = j
		}
	}
	return lo, hi, true
}
