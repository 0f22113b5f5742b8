package core

import (
	"fmt"
	"math"
)

const (
	// DefaultKFactor is the Tukey fence multiplier.
	DefaultKFactor = 1.5
	// DefaultPercentile picks the 5th/95th percentile clamp values.
	DefaultPercentile = 0.05

	// dampeningThreshold is the outlier ratio above which the fence is tightened.
	dampeningThreshold = 0.1
	// minAdjustedKFactor is the floor for the tightened multiplier.
	minAdjustedKFactor = 1.0
)

// -----------------------------------------------------------------------------

// NormalizeOptions tunes ComputeRatioWithOutlierHandling.
type NormalizeOptions struct {
	KFactor    float64 `json:"k_factor" yaml:"k_factor"`
	Percentile float64 `json:"percentile" yaml:"percentile"`
}

// DefaultNormalizeOptions returns {KFactor: 1.5, Percentile: 0.05}.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		KFactor:    DefaultKFactor,
		Percentile: DefaultPercentile,
	}
}

// Validate checks KFactor >= 0 and 0 < Percentile < 0.5.
func (o NormalizeOptions) Validate() error {
	if math.IsNaN(o.KFactor) || math.IsInf(o.KFactor, 0) || o.KFactor < 0 {
		return fmt.Errorf("k_factor must be a finite non-negative number, got %v", o.KFactor)
	}
	if math.IsNaN(o.Percentile) || o.Percentile <= 0 || o.Percentile >= 0.5 {
		return fmt.Errorf("percentile must be in (0, 0.5), got %v", o.Percentile)
	}
	return nil
}

// -----------------------------------------------------------------------------

// RangeStats describes one pass of the outlier-aware range computation.
type RangeStats struct {
	Count           int     `json:"count"`
	Q1              float64 `json:"q1"`
	Q3              float64 `json:"q3"`
	IQR             float64 `json:"iqr"`
	LowerBound      float64 `json:"lower_bound"`
	UpperBound      float64 `json:"upper_bound"`
	OutlierRatio    float64 `json:"outlier_ratio"`
	AdjustedKFactor float64 `json:"adjusted_k_factor"`
	AdjustedLower   float64 `json:"adjusted_lower_bound"`
	AdjustedUpper   float64 `json:"adjusted_upper_bound"`
	LowClamp        float64 `json:"low_clamp"`
	HighClamp       float64 `json:"high_clamp"`
	Min             float64 `json:"min"`
	Max             float64 `json:"max"`
}

// Degenerate reports whether the winsorized range collapsed to one point.
func (s RangeStats) Degenerate() bool {
	return s.Min == s.Max
}

// Ratio positions value inside [Min, Max]. A collapsed range yields 0.
func (s RangeStats) Ratio(value float64) float64 {
	if s.Degenerate() {
		return 0
	}
	return (value - s.Min) / (s.Max - s.Min)
}

// -----------------------------------------------------------------------------

// AnalyzeRange computes the winsorized min/max of data. When more than 10% of
// the samples fall outside the Tukey fence, the fence multiplier shrinks to
// max(1, k*(1-ratio)). Values outside the adjusted fence are replaced by the
// low/high percentile elements of the sorted sample.
//
// ok is false for empty data, non-finite samples or invalid options.
// data is never modified.
func AnalyzeRange(data []float64, opts NormalizeOptions) (RangeStats, bool) {
	if len(data) == 0 || !AllFinite(data) || opts.Validate() != nil {
		return RangeStats{}, false
	}

	sorted := SortedCopy(data)
	q1, q3, ok := Quartiles(sorted)
	if !ok {
		return RangeStats{}, false
	}

	stats := RangeStats{Count: len(data), Q1: q1, Q3: q3}
	stats.IQR = q3 - q1
	stats.LowerBound = q1 - opts.KFactor*stats.IQR
	stats.UpperBound = q3 + opts.KFactor*stats.IQR

	outliers := 0
	for _, x := range data {
		if x < stats.LowerBound || x > stats.UpperBound {
			outliers++
		}
	}
	stats.OutlierRatio = float64(outliers) / float64(len(data))

	stats.AdjustedKFactor = opts.KFactor
	if stats.OutlierRatio > dampeningThreshold {
		stats.AdjustedKFactor = math.Max(minAdjustedKFactor, opts.KFactor*(1-stats.OutlierRatio))
	}
	stats.AdjustedLower = q1 - stats.AdjustedKFactor*stats.IQR
	stats.AdjustedUpper = q3 + stats.AdjustedKFactor*stats.IQR

	stats.LowClamp = PercentileAt(sorted, opts.Percentile)
	stats.HighClamp = PercentileAt(sorted, 1-opts.Percentile)

	winsorized := make([]float64, len(data))
	for i, x := range data {
		switch {
		case x < stats.AdjustedLower:
			winsorized[i] = stats.LowClamp
		case x > stats.AdjustedUpper:
			winsorized[i] = stats.HighClamp
		default:
			winsorized[i] = x
		}
	}
	stats.Min, stats.Max = MinMax(winsorized)

	return stats, true
}

// -----------------------------------------------------------------------------

// ComputeRatioWithOutlierHandling maps value onto the robust range of data.
// It returns (0, false) when the ratio is undefined for the sample and
// (0, true) when the winsorized range collapsed to a single value.
// The result is not clamped to [0, 1].
func ComputeRatioWithOutlierHandling(data []float64, value float64, opts NormalizeOptions) (float64, bool) {
	stats, ok := AnalyzeRange(data, opts)
	if !ok {
		return 0, false
	}
	return stats.Ratio(value), true
}

// ComputeRatio is ComputeRatioWithOutlierHandling with default options.
func ComputeRatio(data []float64, value float64) (float64, bool) {
	return ComputeRatioWithOutlierHandling(data, value, DefaultNormalizeOptions())
}
