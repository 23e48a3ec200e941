// Package eligibility decides whether an ATS application should receive an interview call now.
package eligibility

import (
	"time"
)

// Rules are the per-organization gates taken from the call configuration.
type Rules struct {
	StatusID    int64
	WaitMinutes int
}

// Candidate is the subset of an ATS application the filter looks at.
// UpdatedAt is the raw ISO-8601 string from the ATS; Phone is already normalized.
type Candidate struct {
	StatusID  int64
	UpdatedAt string
	Phone     string
}

// IsEligible reports whether c should be called at now.
// A timestamp that cannot be parsed is treated as not yet eligible.
func IsEligible(c Candidate, r Rules, now time.Time) bool {
	if c.StatusID != r.StatusID {
		return false
	}
	if c.Phone == "" {
		return false
	}
	return WaitElapsed(c.UpdatedAt, r.WaitMinutes, now)
}

// WaitElapsed reports whether at least waitMinutes have passed since updatedAt.
func WaitElapsed(updatedAt string, waitMinutes int, now time.Time) bool {
	t, err := ParseTimestamp(updatedAt)
	if err != nil {
		return false
	}
	return now.Sub(t) >= time.Duration(waitMinutes)*time.Minute
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds; a
// missing zone designator is read as UTC.
func ParseTimestamp(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04:05.999999999", v, time.UTC)
}
