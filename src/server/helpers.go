package server

import (
	"strings"

	"volatility-observer/src/models"
)

// -----------------------------------------------------------------------------

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

func normalizeCurrency(param string) string {
	return strings.ToUpper(strings.TrimSpace(param))
}

// -----------------------------------------------------------------------------

// filterSnapshots keeps the requested currencies; an empty filter keeps all.
func filterSnapshots(all map[string]models.MVolatilitySnapshot, currencies []string) map[string]models.MVolatilitySnapshot {
	out := make(map[string]models.MVolatilitySnapshot, len(all))
	for cur, snap := range all {
		if len(currencies) == 0 || contains(currencies, cur) {
			out[cur] = snap
		}
	}
	return out
}
