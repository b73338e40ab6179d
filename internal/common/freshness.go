package common

import "time"

// FreshnessTradeRecords is the default TTL for fetched disclosure records
const FreshnessTradeRecords = 30 * time.Minute

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	return IsFreshAt(updated, ttl, time.Now())
}

// IsFreshAt is IsFresh evaluated against an explicit clock reading. Data goes
// stale only once its age exceeds ttl.
func IsFreshAt(updated time.Time, ttl time.Duration, now time.Time) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) <= ttl
}
