package core

import (
	"math"
	"sort"
)

// -----------------------------------------------------------------------------

// CalculateMeanStd computes mean and standard deviation.
func CalculateMeanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))

	if len(data) == 1 {
		return mean, 0
	}

	// Population std (N denominator)
	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	std := math.Sqrt(varianceSum / float64(len(data)))
	return mean, std
}

// -----------------------------------------------------------------------------

// SortedCopy returns an ascending copy of data. The input is not modified.
func SortedCopy(data []float64) []float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return sorted
}

// -----------------------------------------------------------------------------

// Median of an already sorted slice. Odd length returns the middle element,
// even length the mean of the two central ones. An empty slice yields NaN.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	mid := n / 2
	if n%2 != 0 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// -----------------------------------------------------------------------------

// Quartiles computes (q1, q3) of a sorted slice with the exclusive-median
// split: for odd n the middle element belongs to neither half.
// ok is false when sorted is empty.
func Quartiles(sorted []float64) (q1, q3 float64, ok bool) {
	n := len(sorted)
	if n == 0 {
		return 0, 0, false
	}

	lowerHalf := sorted[:n/2]
	var upperHalf []float64
	if n%2 == 0 {
		upperHalf = sorted[n/2:]
	} else {
		upperHalf = sorted[n/2+1:]
	}

	return Median(lowerHalf), Median(upperHalf), true
}

// -----------------------------------------------------------------------------

// PercentileAt returns sorted[floor(len*p)] without interpolation.
// The index is clamped to the slice bounds.
func PercentileAt(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// -----------------------------------------------------------------------------

// MinMax returns the smallest and largest element of data.
func MinMax(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// -----------------------------------------------------------------------------

// AllFinite reports whether data holds no NaN or infinite values.
func AllFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
