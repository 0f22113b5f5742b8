package core

import "math"

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates fractional change from previous to current.
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous
}

// -----------------------------------------------------------------------------

// RoundTo rounds v to the given number of decimals (half away from zero).
func RoundTo(v float64, decimals int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

// -----------------------------------------------------------------------------

// Round2 keeps two decimals, the precision Deribit volatility readings are shown at.
func Round2(v float64) float64 {
	return RoundTo(v, 2)
}
