package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeRatio_EmptyInput(t *testing.T) {
	for _, v := range []float64{0, 1, -5, 1e9} {
		_, ok := ComputeRatio(nil, v)
		assert.False(t, ok, "nil data must be invalid for value %v", v)

		_, ok = ComputeRatio([]float64{}, v)
		assert.False(t, ok, "empty data must be invalid for value %v", v)
	}
}

func TestComputeRatio_NonFiniteInput(t *testing.T) {
	_, ok := ComputeRatio([]float64{1, 2, math.NaN()}, 1)
	assert.False(t, ok)

	_, ok = ComputeRatio([]float64{1, math.Inf(1), 3}, 1)
	assert.False(t, ok)
}

func TestComputeRatio_InvalidOptions(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}

	_, ok := ComputeRatioWithOutlierHandling(data, 3, NormalizeOptions{KFactor: -1, Percentile: 0.05})
	assert.False(t, ok)

	_, ok = ComputeRatioWithOutlierHandling(data, 3, NormalizeOptions{KFactor: 1.5, Percentile: 0})
	assert.False(t, ok)

	_, ok = ComputeRatioWithOutlierHandling(data, 3, NormalizeOptions{KFactor: 1.5, Percentile: 0.5})
	assert.False(t, ok)
}

func TestComputeRatio_DegenerateCollapse(t *testing.T) {
	for _, v := range []float64{5, 0, -3, 100} {
		ratio, ok := ComputeRatio([]float64{5, 5, 5, 5}, v)
		require.True(t, ok)
		assert.Equal(t, 0.0, ratio)
	}
}

func TestComputeRatio_SingleElement(t *testing.T) {
	ratio, ok := ComputeRatio([]float64{42}, 50)
	require.True(t, ok)
	assert.Equal(t, 0.0, ratio)
}

func TestComputeRatio_ShiftInvariance(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	const shift = 250.0

	shifted := make([]float64, len(data))
	for i, v := range data {
		shifted[i] = v + shift
	}

	for _, v := range []float64{1, 3.5, 5, 9, 12} {
		base, ok := ComputeRatio(data, v)
		require.True(t, ok)
		moved, ok := ComputeRatio(shifted, v+shift)
		require.True(t, ok)
		assert.InDelta(t, base, moved, 1e-9, "value %v", v)
	}
}

func TestComputeRatio_Monotonic(t *testing.T) {
	data := []float64{3, 8, 1, 9, 4, 120, 7, 2, 6, 5, -80}

	prev, ok := ComputeRatio(data, -10)
	require.True(t, ok)
	for v := -9.0; v <= 20; v += 0.5 {
		cur, ok := ComputeRatio(data, v)
		require.True(t, ok)
		assert.Greater(t, cur, prev, "ratio must increase at value %v", v)
		prev = cur
	}
}

func TestComputeRatio_HeavyTailReference(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 100, 100, 100, 100, 100}

	stats, ok := AnalyzeRange(data, DefaultNormalizeOptions())
	require.True(t, ok)

	// The five 100s form the upper half, so q3 = 100 and nothing lies outside the fence.
	assert.Equal(t, 4.0, stats.Q1)
	assert.Equal(t, 100.0, stats.Q3)
	assert.Equal(t, 0.0, stats.OutlierRatio)
	assert.Equal(t, DefaultKFactor, stats.AdjustedKFactor)

	ratio, ok := ComputeRatio(data, 5)
	require.True(t, ok)
	assert.Greater(t, ratio, 0.0)
	assert.Less(t, ratio, 1.0)
	assert.InDelta(t, 4.0/99.0, ratio, 1e-12)
}

func TestAnalyzeRange_OutlierDampening(t *testing.T) {
	data := make([]float64, 0, 20)
	for i := 1; i <= 17; i++ {
		data = append(data, float64(i))
	}
	data = append(data, 1000, 1000, 1000)

	opts := NormalizeOptions{KFactor: 1.5, Percentile: 0.2}
	stats, ok := AnalyzeRange(data, opts)
	require.True(t, ok)

	assert.Equal(t, 5.5, stats.Q1)
	assert.Equal(t, 15.5, stats.Q3)
	assert.InDelta(t, 0.15, stats.OutlierRatio, 1e-12)
	assert.Less(t, stats.AdjustedKFactor, opts.KFactor)
	assert.GreaterOrEqual(t, stats.AdjustedKFactor, 1.0)
	assert.InDelta(t, 1.275, stats.AdjustedKFactor, 1e-12)

	// The three 1000s are clamped to sorted[16] = 17.
	assert.Equal(t, 5.0, stats.LowClamp)
	assert.Equal(t, 17.0, stats.HighClamp)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 17.0, stats.Max)

	ratio, ok := ComputeRatioWithOutlierHandling(data, 9, opts)
	require.True(t, ok)
	assert.InDelta(t, 0.5, ratio, 1e-12)
}

func TestAnalyzeRange_DampeningFloor(t *testing.T) {
	data := []float64{-1000, -1000, -1000, -1000}
	for i := 1; i <= 12; i++ {
		data = append(data, float64(i))
	}
	data = append(data, 1000, 1000, 1000, 1000)

	stats, ok := AnalyzeRange(data, DefaultNormalizeOptions())
	require.True(t, ok)

	// 1.5 * (1 - 0.4) = 0.9 is floored at 1.
	assert.Equal(t, 1.5, stats.Q1)
	assert.Equal(t, 11.5, stats.Q3)
	assert.InDelta(t, 0.4, stats.OutlierRatio, 1e-12)
	assert.Equal(t, 1.0, stats.AdjustedKFactor)
	assert.Equal(t, -8.5, stats.AdjustedLower)
	assert.Equal(t, 21.5, stats.AdjustedUpper)
}

func TestQuartiles_ExclusiveMedian(t *testing.T) {
	q1, q3, ok := Quartiles([]float64{1, 2, 3, 4, 5})
	require.True(t, ok)
	assert.Equal(t, 1.5, q1)
	assert.Equal(t, 4.5, q3)

	q1, q3, ok = Quartiles([]float64{1, 2, 3, 4, 5, 6})
	require.True(t, ok)
	assert.Equal(t, 2.0, q1)
	assert.Equal(t, 5.0, q3)

	_, _, ok = Quartiles(nil)
	assert.False(t, ok)
}

func TestPercentileAt_IndexLookup(t *testing.T) {
	sorted := make([]float64, 20)
	for i := range sorted {
		sorted[i] = float64(i * 10)
	}

	assert.Equal(t, sorted[1], PercentileAt(sorted, 0.05))
	assert.Equal(t, sorted[19], PercentileAt(sorted, 1-0.05))

	stats, ok := AnalyzeRange(sorted, DefaultNormalizeOptions())
	require.True(t, ok)
	assert.Equal(t, sorted[1], stats.LowClamp)
	assert.Equal(t, sorted[19], stats.HighClamp)
}

func TestComputeRatio_Purity(t *testing.T) {
	data := []float64{9, 1, 8, 2, 7, 3, 400, 4, -300, 5}
	original := append([]float64(nil), data...)

	first, ok1 := ComputeRatio(data, 4.2)
	second, ok2 := ComputeRatio(data, 4.2)

	assert.Equal(t, ok1, ok2)
	assert.Equal(t, first, second)
	assert.Equal(t, original, data)
}

func TestComputeRatio_NotClamped(t *testing.T) {
	data := []float64{10, 20, 30, 40, 50}

	below, ok := ComputeRatio(data, 0)
	require.True(t, ok)
	assert.Less(t, below, 0.0)

	above, ok := ComputeRatio(data, 90)
	require.True(t, ok)
	assert.Greater(t, above, 1.0)
}
