package models

import (
	"fmt"
	"strings"
	"time"
)

// NoSourceLabel tags the empty RecordSet returned when every source was
// unavailable or returned nothing.
const NoSourceLabel = "No source available"

// labelTimeLayout formats timestamps inside cache labels
const labelTimeLayout = "2006-01-02 15:04:05"

// RecordSet is the output of one successful fetch: the records plus the label
// of the source that produced them. A RecordSet is replaced wholesale by the
// next fetch and never mutated in place once published.
type RecordSet struct {
	Records   []TradeRecord `json:"records"`
	Source    string        `json:"source"`
	FetchID   string        `json:"fetch_id,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Len returns the number of records
func (s RecordSet) Len() int {
	return len(s.Records)
}

// IsEmpty reports whether the set carries no records
func (s RecordSet) IsEmpty() bool {
	return len(s.Records) == 0
}

// Clone returns a copy whose Records slice is not shared with s.
func (s RecordSet) Clone() RecordSet {
	out := s
	if s.Records != nil {
		out.Records = make([]TradeRecord, len(s.Records))
		copy(out.Records, s.Records)
	}
	return out
}

// Filter returns a new RecordSet holding the records for which keep returns
// true. Provenance metadata is carried over unchanged.
func (s RecordSet) Filter(keep func(TradeRecord) bool) RecordSet {
	out := s
	if s.Records == nil {
		return out
	}
	out.Records = make([]TradeRecord, 0, len(s.Records))
	for _, r := range s.Records {
		if keep(r) {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// Tickers returns the distinct tickers in first-seen order.
func (s RecordSet) Tickers() []string {
	seen := make(map[string]bool, len(s.Records))
	var tickers []string
	for _, r := range s.Records {
		if r.Ticker == "" || seen[r.Ticker] {
			continue
		}
		seen[r.Ticker] = true
		tickers = append(tickers, r.Ticker)
	}
	return tickers
}

// Rows returns every record in Columns order.
func (s RecordSet) Rows() [][]string {
	rows := make([][]string, len(s.Records))
	for i, r := range s.Records {
		rows[i] = r.Row()
	}
	return rows
}

// CacheEntry holds the most recent successfully fetched RecordSet.
type CacheEntry struct {
	Data      RecordSet
	FetchedAt time.Time
	TTL       time.Duration
}

// Age returns how long ago the entry was fetched
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Remaining returns the TTL left, which is negative once expired
func (e *CacheEntry) Remaining(now time.Time) time.Duration {
	return e.TTL - e.Age(now)
}

// CacheStatus summarises the cache for the presentation layer
type CacheStatus struct {
	HasData               bool       `json:"has_data"`
	LastUpdated           *time.Time `json:"last_updated,omitempty"`
	CacheAgeMinutes       int        `json:"cache_age_minutes"`
	CacheValid            bool       `json:"cache_valid"`
	CacheRemainingMinutes int        `json:"cache_remaining_minutes"`
	TotalRecords          int        `json:"total_records"`
	Source                string     `json:"source,omitempty"`
}

// CachedLabel labels a response served from a fresh cache entry.
func CachedLabel(fetchedAt time.Time) string {
	return fmt.Sprintf("Cached data (last updated: %s)", fetchedAt.Format(labelTimeLayout))
}

// StaleLabel labels a response served from an expired cache entry because
// the refresh attempt failed.
func StaleLabel(fetchedAt time.Time) string {
	return fmt.Sprintf("Stale cached data (last updated: %s)", fetchedAt.Format(labelTimeLayout))
}

// IsCachedLabel reports whether a label marks cached (fresh or stale) data.
func IsCachedLabel(label string) bool {
	return strings.HasPrefix(label, "Cached data") || strings.HasPrefix(label, "Stale cached data")
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
