package browser

import (
	"time"

	"github.com/shopspring/decimal"
)

// mustDecimal parses a numeric string from the upstream API into a
// decimal.Decimal, defaulting to zero on a malformed value rather than
// failing the whole extraction over one bad field.
func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseOptionalTime parses an RFC3339 timestamp, returning nil if s is nil,
// empty, or malformed.
func parseOptionalTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}
