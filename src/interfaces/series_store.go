package interfaces

import "volatility-observer/src/models"

// -----------------------------------------------------------------------------
// ISeriesStore gives read access to in-memory volatility series.
// -----------------------------------------------------------------------------

type ISeriesStore interface {

	// Series returns the points of one (currency, series) stream, oldest first.
	Series(currency, series string) []models.MVolatilityPoint

	// -----------------------------------------------------------------------------

	// Currencies returns every currency with at least one stored point.
	Currencies() []string
}
