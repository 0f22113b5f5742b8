package utils

import (
	"sync"
	"time"

	"volatility-observer/src/logger"
)

// SettlementHourUTC is when Deribit fixes the daily delivery prices.
const SettlementHourUTC = 8

// -----------------------------------------------------------------------------
// SettlementScheduler tracks Deribit's daily 08:00 UTC settlement. The market
// itself never closes, so the only schedule that matters is when a new DVOL
// delivery price becomes available.
// -----------------------------------------------------------------------------

type SettlementScheduler struct {
	Logger      *logger.Logger
	now         func() time.Time
	lastRefresh time.Time
	mu          sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewSettlementScheduler(l *logger.Logger) *SettlementScheduler {
	return &SettlementScheduler{
		Logger: l,
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------

// LastSettlement returns the most recent settlement at or before t.
func LastSettlement(t time.Time) time.Time {
	t = t.UTC()
	s := time.Date(t.Year(), t.Month(), t.Day(), SettlementHourUTC, 0, 0, 0, time.UTC)
	if t.Before(s) {
		s = s.AddDate(0, 0, -1)
	}
	return s
}

// NextSettlement returns the first settlement strictly after t.
func NextSettlement(t time.Time) time.Time {
	return LastSettlement(t).AddDate(0, 0, 1)
}

// -----------------------------------------------------------------------------

// RefreshDue reports whether a settlement happened since the last refresh.
func (ss *SettlementScheduler) RefreshDue() bool {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	if ss.lastRefresh.IsZero() {
		return true
	}
	return ss.lastRefresh.Before(LastSettlement(ss.now()))
}

// -----------------------------------------------------------------------------

// MarkRefreshed records that history was fetched now.
func (ss *SettlementScheduler) MarkRefreshed() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.lastRefresh = ss.now().UTC()
	if ss.Logger != nil {
		ss.Logger.Debug("History refreshed; next settlement at %s",
			NextSettlement(ss.lastRefresh).Format(time.RFC3339))
	}
}

// -----------------------------------------------------------------------------

// UntilNextSettlement is the wait from now until the next settlement.
func (ss *SettlementScheduler) UntilNextSettlement() time.Duration {
	now := ss.now()
	return NextSettlement(now).Sub(now)
}
