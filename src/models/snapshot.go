package models

// MVolatilitySnapshot summarizes where a currency's volatility currently sits.
type MVolatilitySnapshot struct {
	Currency          string  `json:"currency"`
	CurrentDvol       float64 `json:"current_dvol"`
	DvolRatio         MRatio  `json:"dvol_ratio"`
	DvolMean          float64 `json:"dvol_mean"`
	DvolStd           float64 `json:"dvol_std"`
	DvolChangePercent float64 `json:"dvol_change_percent"`
	LatestHV          float64 `json:"latest_hv"`
	HVRatio           MRatio  `json:"hv_ratio"`
	HistoryPoints     int     `json:"history_points"`
	UpdatedAt         int64   `json:"updated_at"`
}

// MChartPoint is one row of the calendar-call chart.
type MChartPoint struct {
	Date      string  `json:"date"`
	Timestamp int64   `json:"timestamp"`
	Dvol      float64 `json:"dvol"`
	HV        float64 `json:"hv"`
	DvolRatio MRatio  `json:"dvol_ratio"`
	HVRatio   MRatio  `json:"hv_ratio"`
}
