package csv

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// DefaultAliases maps normalized TLC header names to the canonical trip
// column names. It covers the yellow (tpep_), green (lpep_) and pre-2015
// layouts.
var DefaultAliases = map[string]string{
	"vendorid":              "vendor_id",
	"vendor_name":           "vendor_id",
	"tpep_pickup_datetime":  "pickup_datetime",
	"lpep_pickup_datetime":  "pickup_datetime",
	"trip_pickup_datetime":  "pickup_datetime",
	"tpep_dropoff_datetime": "dropoff_datetime",
	"lpep_dropoff_datetime": "dropoff_datetime",
	"trip_dropoff_datetime": "dropoff_datetime",
	"ratecodeid":            "rate_code",
	"rate_code_id":          "rate_code",
	"store_and_forward":     "store_and_fwd_flag",
	"pulocationid":          "PULocationID",
	"dolocationid":          "DOLocationID",
	"fare_amt":              "fare_amount",
	"surcharge":             "extra",
	"tip_amt":               "tip_amount",
	"tolls_amt":             "tolls_amount",
	"total_amt":             "total_amount",
}

// NormalizeHeaderName folds s to lower-case ASCII snake_case: accents are
// removed, separators collapse to a single '_', and anything else is
// dropped. An empty result becomes "col".
func NormalizeHeaderName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	ascii, _, err := transform.String(t, s)
	if err != nil {
		ascii = s
	}

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "col"
	}
	return name
}

// canonicalHeader strips the BOM, normalizes every cell and applies aliases.
// Names that are not aliased keep their normalized form.
func canonicalHeader(raw []string, aliases map[string]string) []string {
	out := make([]string, len(raw))
	for i, col := range raw {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		n := NormalizeHeaderName(col)
		if a, ok := aliases[n]; ok {
			n = a
		}
		out[i] = n
	}
	return out
}
