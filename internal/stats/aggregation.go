// Package stats summarizes report weight distributions
package stats

import (
	"math"
	"sort"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sorted(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

// Median calculates the median value
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// Quantile calculates the q-th quantile (0 <= q <= 1) with linear
// interpolation between closest ranks
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return quantileSorted(sorted(values), q)
}

func quantileSorted(s []float64, q float64) float64 {
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}
	index := q * float64(len(s)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return s[lower]
	}
	weight := index - float64(lower)
	return s[lower]*(1-weight) + s[upper]*weight
}

// Summary describes a weight distribution
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	// Ceiling is the IQR outlier fence, Q3 + 1.5*IQR, clamped to the
	// observed range. Heat overlays use it as their intensity maximum so
	// one heavily upvoted report does not wash out the rest.
	Ceiling float64 `json:"ceiling"`
}

// Summarize computes the summary of values; the zero Summary for none
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	s := sorted(values)
	q1, q3 := quantileSorted(s, 0.25), quantileSorted(s, 0.75)
	ceiling := q3 + 1.5*(q3-q1)
	if maxV := s[len(s)-1]; ceiling > maxV {
		ceiling = maxV
	}
	if minV := s[0]; ceiling < minV {
		ceiling = minV
	}
	return Summary{
		Mean:    Mean(s),
		Median:  quantileSorted(s, 0.5),
		P95:     quantileSorted(s, 0.95),
		Ceiling: ceiling,
	}
}
