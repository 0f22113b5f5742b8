package models

// MProcessingMetrics represents the performance metrics for the data processing pipeline.
type MProcessingMetrics struct {
	AnalysisTimeSeconds float64 `json:"analysis_time_seconds"`
	ValidCurrencies     int     `json:"valid_currencies"`
	PointsReceived      int     `json:"points_received"`
}
