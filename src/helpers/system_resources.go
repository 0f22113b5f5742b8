package helpers

import "volatility-observer/src/logger"

// GetRecommendedMemoryLimit returns the memory budget in MB for in-memory
// series: 75% of physical RAM, at least 512MB when the host has that much.
func GetRecommendedMemoryLimit(log *logger.Logger) int {
	totalMB := GetTotalSystemMemoryMB()
	if totalMB == 0 {
		if log != nil {
			log.Warning("Could not determine system memory. Defaulting to 512MB.")
		}
		return 512
	}

	limit := int(float64(totalMB) * 0.75)
	if limit < 512 {
		if totalMB < 512 {
			return totalMB
		}
		return 512
	}

	return limit
}
