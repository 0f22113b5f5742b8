package analysis

import (
	"time"

	"volatility-observer/src/analysis/core"
	"volatility-observer/src/interfaces"
	"volatility-observer/src/logger"
	"volatility-observer/src/models"
)

type AnalysisFacade struct {
	Options   core.NormalizeOptions
	Resampler *TimeSeriesResampler
	Logger    *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAnalysisFacade(opts core.NormalizeOptions, log *logger.Logger) *AnalysisFacade {
	return &AnalysisFacade{
		Options:   opts,
		Resampler: &TimeSeriesResampler{},
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

// Ratio positions value within the robust range of values.
func (a *AnalysisFacade) Ratio(values []float64, value float64) models.MRatio {
	stats, ok := core.AnalyzeRange(values, a.Options)
	if !ok {
		return models.MRatio{}
	}

	ratio := stats.Ratio(value)
	a.Logger.Debug("range n=%d q1=%.2f q3=%.2f iqr=%.2f outliers=%.3f k=%.3f min=%.2f max=%.2f value=%.2f ratio=%.4f",
		stats.Count, stats.Q1, stats.Q3, stats.IQR, stats.OutlierRatio, stats.AdjustedKFactor,
		stats.Min, stats.Max, value, ratio)
	return models.NewRatio(ratio, true)
}

// -----------------------------------------------------------------------------

// NormalizeSeries returns the ratio of every element within its own series.
// The range is computed once and reused for all elements.
func (a *AnalysisFacade) NormalizeSeries(values []float64) []models.MRatio {
	out := make([]models.MRatio, len(values))
	stats, ok := core.AnalyzeRange(values, a.Options)
	if !ok {
		return out
	}
	for i, v := range values {
		out[i] = models.NewRatio(stats.Ratio(v), true)
	}
	return out
}

// -----------------------------------------------------------------------------

func seriesValues(points []models.MVolatilityPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}

// -----------------------------------------------------------------------------

// BuildSnapshot summarizes a currency. current overrides the latest DVOL
// history value when the live index is known.
func (a *AnalysisFacade) BuildSnapshot(
	currency string,
	dvol, hv []models.MVolatilityPoint,
	current *float64,
) models.MVolatilitySnapshot {
	snap := models.MVolatilitySnapshot{
		Currency:      currency,
		HistoryPoints: len(dvol),
		UpdatedAt:     time.Now().Unix(),
	}

	dvolValues := seriesValues(dvol)
	snap.DvolMean, snap.DvolStd = core.CalculateMeanStd(dvolValues)
	snap.DvolMean = core.Round2(snap.DvolMean)
	snap.DvolStd = core.Round2(snap.DvolStd)

	var previous float64
	switch {
	case current != nil:
		snap.CurrentDvol = *current
		if n := len(dvolValues); n > 0 {
			previous = dvolValues[n-1]
		}
	case len(dvolValues) > 0:
		n := len(dvolValues)
		snap.CurrentDvol = dvolValues[n-1]
		if n > 1 {
			previous = dvolValues[n-2]
		}
	}

	if current != nil || len(dvolValues) > 0 {
		snap.DvolRatio = a.Ratio(dvolValues, snap.CurrentDvol)
	}
	snap.DvolChangePercent = core.CalculateChangePercent(snap.CurrentDvol, previous)

	if n := len(hv); n > 0 {
		hvValues := seriesValues(hv)
		snap.LatestHV = hvValues[n-1]
		snap.HVRatio = a.Ratio(hvValues, snap.LatestHV)
	}

	return snap
}

// -----------------------------------------------------------------------------

// BuildChartSeries returns one row per DVOL delivery date. HV is resampled to
// daily means and joined by date; days without HV keep an undefined HVRatio.
func (a *AnalysisFacade) BuildChartSeries(dvol, hv []models.MVolatilityPoint) []models.MChartPoint {
	dailyHV := a.Resampler.DailyMeans(hv)
	hvByDate := make(map[string]float64, len(dailyHV))
	for _, p := range dailyHV {
		hvByDate[p.Date] = p.Value
	}

	dvolStats, dvolOK := core.AnalyzeRange(seriesValues(dvol), a.Options)
	hvStats, hvOK := core.AnalyzeRange(seriesValues(dailyHV), a.Options)

	rows := make([]models.MChartPoint, 0, len(dvol))
	for _, p := range dvol {
		row := models.MChartPoint{
			Date:      p.Date,
			Timestamp: p.Timestamp,
			Dvol:      p.Value,
			DvolRatio: models.NewRatio(dvolStats.Ratio(p.Value), dvolOK),
		}
		if v, ok := hvByDate[p.Date]; ok {
			row.HV = v
			row.HVRatio = models.NewRatio(hvStats.Ratio(v), hvOK)
		}
		rows = append(rows, row)
	}
	return rows
}

// -----------------------------------------------------------------------------

// BuildSnapshots summarizes every currency held by the store. The newest live
// index reading, when present, is used as the current DVOL.
func (a *AnalysisFacade) BuildSnapshots(store interfaces.ISeriesStore, currencies []string) map[string]models.MVolatilitySnapshot {
	if len(currencies) == 0 {
		currencies = store.Currencies()
	}

	out := make(map[string]models.MVolatilitySnapshot, len(currencies))
	for _, currency := range currencies {
		dvol := store.Series(currency, models.SeriesDvol)
		hv := store.Series(currency, models.SeriesHistoricalVolatility)
		if len(dvol) == 0 && len(hv) == 0 {
			continue
		}

		var current *float64
		if live := store.Series(currency, models.SeriesDvolIndex); len(live) > 0 {
			v := live[len(live)-1].Value
			current = &v
		}
		out[currency] = a.BuildSnapshot(currency, dvol, hv, current)
	}
	return out
}
