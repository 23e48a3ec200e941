// Package phone turns the free-form numbers stored in the ATS into dialable E.164-ish strings.
package phone

import "strings"

// Policy normalizes a raw phone number. An empty result means "not dialable".
type Policy interface {
	Normalize(raw string) string
}

// CountryPolicy applies a single default country to national-format numbers.
// DialCode is the country calling code without the plus sign, e.g. "44".
type CountryPolicy struct {
	DialCode string
}

// UK is the policy used when no dial code is configured.
var UK = CountryPolicy{DialCode: "44"}

// Normalize rules, checked in order after trimming:
//
//	""        -> ""
//	"+0..."   -> "+<dial>..."
//	"+..."    -> unchanged
//	"0..."    -> "+<dial>..."
//	other     -> "+" prefixed
func (p CountryPolicy) Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	dial := p.DialCode
	if dial == "" {
		dial = UK.DialCode
	}
	switch {
	case strings.HasPrefix(s, "+0"):
		return "+" + dial + s[2:]
	case strings.HasPrefix(s, "+"):
		return s
	case strings.HasPrefix(s, "0"):
		return "+" + dial + s[1:]
	default:
		return "+" + s
	}
}

// Pick returns mobile when set, otherwise the landline.
func Pick(mobile, landline string) string {
	if strings.TrimSpace(mobile) != "" {
		return mobile
	}
	return landline
}
