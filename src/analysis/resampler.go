package analysis

import (
	"sort"

	"volatility-observer/src/analysis/core"
	"volatility-observer/src/models"
)

// SecondsPerDay is the daily window used to align HV with DVOL delivery dates.
const SecondsPerDay int64 = 86400

// TimeSeriesResampler handles time-based resampling calculations.
type TimeSeriesResampler struct{}

// Window is a group of sample indices falling in [StartTime, EndTime).
type Window struct {
	Indices   []int
	StartTime int64
	EndTime   int64
}

// -----------------------------------------------------------------------------

// ResampleIndices groups ascending timestamps into windows aligned on
// multiples of windowSeconds. Empty windows are skipped.
func (r *TimeSeriesResampler) ResampleIndices(timestamps []int64, windowSeconds int64) []Window {
	if len(timestamps) == 0 || windowSeconds <= 0 {
		return []Window{}
	}

	minTs := timestamps[0]
	maxTs := timestamps[len(timestamps)-1]
	firstStart, _ := CalculateWindowBoundaries(minTs, windowSeconds)

	var results []Window
	for windowStart := firstStart; windowStart <= maxTs; windowStart += windowSeconds {
		windowEnd := windowStart + windowSeconds

		startIdx := SearchSorted(timestamps, windowStart, "left")
		endIdx := SearchSorted(timestamps, windowEnd, "left")

		if startIdx < endIdx {
			indices := make([]int, endIdx-startIdx)
			for idx := startIdx; idx < endIdx; idx++ {
				indices[idx-startIdx] = idx
			}
			results = append(results, Window{
				Indices:   indices,
				StartTime: windowStart,
				EndTime:   windowEnd,
			})
		}
	}

	return results
}

// -----------------------------------------------------------------------------

// DailyMeans averages a series per UTC day. Each output point is stamped at
// 00:00 UTC with a YYYY-MM-DD date so it joins with DVOL delivery dates.
func (r *TimeSeriesResampler) DailyMeans(points []models.MVolatilityPoint) []models.MVolatilityPoint {
	if len(points) == 0 {
		return []models.MVolatilityPoint{}
	}

	sorted := make([]models.MVolatilityPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	timestamps := make([]int64, len(sorted))
	for i, p := range sorted {
		timestamps[i] = p.Timestamp
	}

	windows := r.ResampleIndices(timestamps, SecondsPerDay)
	out := make([]models.MVolatilityPoint, 0, len(windows))
	for _, w := range windows {
		values := make([]float64, len(w.Indices))
		for i, idx := range w.Indices {
			values[i] = sorted[idx].Value
		}
		mean, _ := core.CalculateMeanStd(values)

		first := sorted[w.Indices[0]]
		out = append(out, models.MVolatilityPoint{
			Currency:  first.Currency,
			Series:    first.Series,
			Timestamp: w.StartTime,
			Date:      models.PointDate(models.SeriesDvol, w.StartTime),
			Value:     core.Round2(mean),
		})
	}
	return out
}

// -----------------------------------------------------------------------------

// SearchSorted mirrors numpy's searchsorted on an ascending slice.
func SearchSorted(arr []int64, value int64, side string) int {
	if side == "left" {
		return sort.Search(len(arr), func(i int) bool {
			return arr[i] >= value
		})
	}
	return sort.Search(len(arr), func(i int) bool {
		return arr[i] > value
	})
}

// -----------------------------------------------------------------------------

// CalculateWindowBoundaries returns the aligned window containing ts.
func CalculateWindowBoundaries(ts int64, window int64) (int64, int64) {
	start := ts - (ts % window)
	if ts < 0 && ts%window != 0 {
		start -= window
	}
	return start, start + window
}
