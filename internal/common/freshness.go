// Package common provides shared utilities for folio
package common

import "time"

// Freshness TTLs for cached market data
const (
	FreshnessQuote        = 300 * time.Second
	FreshnessFundamentals = 7 * 24 * time.Hour // 7 days
	FreshnessHistory      = 1 * time.Hour
)

// IsFresh returns true if updated is within ttl of now
func IsFresh(now, updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return now.Sub(updated) < ttl
}

// Today returns the calendar day of t at midnight in t's location.
func Today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateKey formats a calendar day as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
