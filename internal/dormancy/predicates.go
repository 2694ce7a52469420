// Package dormancy provides the dormancy rule predicates, the detection
// policy registry, and the classification engine.
package dormancy

import (
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Regulatory window arithmetic uses a 365-day year; inactivity duration
// reporting uses the 365.25 divisor. Both conventions come from the
// governing dormancy guidelines and must not be unified.
const (
	windowDaysPerYear = 365
	yearsDivisor      = 365.25
)

// windowDuration converts a window in years to a duration of whole
// regulatory days.
func windowDuration(years float64) time.Duration {
	return time.Duration(years * windowDaysPerYear * 24 * float64(time.Hour))
}

// TimeInactive reports whether the record's last transaction lies at least
// thresholdYears regulatory years before now. An absent date defaults to
// inactive; callers surface that fallback as a diagnostic rather than
// dropping the record.
func TimeInactive(rec *domain.AccountRecord, now time.Time, thresholdYears float64) bool {
	if rec.LastTransactionDate == nil {
		return true
	}
	return now.Sub(*rec.LastTransactionDate) >= windowDuration(thresholdYears)
}

// NoContactAttempts reports whether none of the three contact channels was
// tried for the record.
func NoContactAttempts(rec *domain.AccountRecord) bool {
	return rec.ContactAttempts() == 0
}

// MatchMode selects how MatchesAccountType compares type names.
type MatchMode int

const (
	// MatchExact requires case-insensitive equality with an allowed type.
	MatchExact MatchMode = iota

	// MatchContains accepts the record when its type contains an allowed
	// type as a case-insensitive substring, so "Safe Deposit Box" matches
	// "Safe Deposit".
	MatchContains
)

// MatchesAccountType tests the record's account type against an allowed set.
// A missing account type never matches.
func MatchesAccountType(rec *domain.AccountRecord, allowed []string, mode MatchMode) bool {
	got := strings.TrimSpace(strings.ToLower(rec.AccountType))
	if got == "" {
		return false
	}
	for _, want := range allowed {
		want = strings.TrimSpace(strings.ToLower(want))
		switch mode {
		case MatchContains:
			if strings.Contains(got, want) {
				return true
			}
		default:
			if got == want {
				return true
			}
		}
	}
	return false
}

// HasStatus tests the account status for case-insensitive equality.
// A missing status never matches.
func HasStatus(rec *domain.AccountRecord, status string) bool {
	got := strings.TrimSpace(rec.AccountStatus)
	if got == "" {
		return false
	}
	return strings.EqualFold(got, status)
}
