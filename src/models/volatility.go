package models

import "time"

// Series identifiers for MVolatilityPoint.Series.
const (
	SeriesHistoricalVolatility = "hv"
	SeriesDvol                 = "dvol"

	// SeriesDvolIndex holds intraday readings of the live DVOL index.
	SeriesDvolIndex = "dvol_index"
)

const dvolDateLayout = "2006-01-02"

// MVolatilityPoint is one reading of a volatility time series.
type MVolatilityPoint struct {
	Currency  string    `json:"currency"`
	Series    string    `json:"series"`
	Timestamp int64     `json:"timestamp"` // unix seconds
	Date      string    `json:"date"`      // YYYY-MM-DD for dvol, RFC3339 otherwise
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// SeriesKey identifies a (currency, series) stream in memory.
func SeriesKey(currency, series string) string {
	return currency + ":" + series
}

// PointDate renders a timestamp the way the series reports its dates.
func PointDate(series string, unix int64) string {
	t := time.Unix(unix, 0).UTC()
	if series == SeriesDvol {
		return t.Format(dvolDateLayout)
	}
	return t.Format(time.RFC3339)
}

// ParseDvolDate parses a delivery date (YYYY-MM-DD) into unix seconds at 00:00 UTC.
func ParseDvolDate(date string) (int64, error) {
	t, err := time.Parse(dvolDateLayout, date)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}
