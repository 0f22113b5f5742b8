package utils

// -----------------------------------------------------------------------------

// Deribit publishes one DVOL delivery price per day and historical volatility
// at hourly resolution. Buffers hold at least a full year of daily points.
const (
	DefaultRetentionDays = 7
	DvolHistoryDays      = 365
	HourlyPointsPerDay   = 24
)

// -----------------------------------------------------------------------------

// CalculateMaxDataPoints calculates buffer capacity from the retention days.
// The retention never drops below the DVOL year.
func CalculateMaxDataPoints(days int) int {
	if days < DvolHistoryDays+1 {
		days = DvolHistoryDays + 1
	}
	return days * HourlyPointsPerDay
}
