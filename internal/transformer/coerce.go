package transformer

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayouts are tried in order when parsing timestamps.
var TimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006 03:04:05 PM",
	"2006-01-02 15:04",
}

// toIntFast parses integers and only falls back to float parsing when the
// field contains a '.' (supporting inputs like "42.0").
func toIntFast(s string) (int64, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	if strings.IndexByte(s, '.') >= 0 {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
				return int64(f), true
			}
		}
	}
	return 0, false
}

// toFloat parses a finite decimal.
func toFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toTime tries each layout in loc. Layouts that carry a zone keep it; the
// result is always returned in UTC.
func toTime(s string, layouts []string, loc *time.Location) (time.Time, bool) {
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
