package transformer

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Rejection reasons.
const (
	ReasonMissing     = "missing required value"
	ReasonBadTime     = "unparseable timestamp"
	ReasonNoLocation  = "neither pickup nor dropoff location present"
	ReasonNegative    = "negative value"
	ReasonRowTooShort = "row shorter than header"
)

// ErrMissingColumn is returned by NewNormalizer when the header cannot
// produce valid trips.
var ErrMissingColumn = errors.New("transformer: required column missing from header")

// NormalizationError describes one rejected row.
type NormalizationError struct {
	Line   int
	Field  string
	Value  string
	Reason string
}

func (e *NormalizationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Reason)
	}
	return fmt.Sprintf("line %d: %s=%q: %s", e.Line, e.Field, e.Value, e.Reason)
}

// clip keeps rejected values short enough for a log line.
func clip(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
