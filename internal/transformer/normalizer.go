// Package transformer turns raw CSV rows into typed trip records.
//
// A Normalizer compiles a per-column plan from the canonical header once per
// run, so the per-row work is index lookups and strconv calls. Empty fields
// become NULL. Optional fields that fail to parse are also stored as NULL and
// counted as coerced. A row is rejected only when the pickup timestamp is
// missing or unparseable, when it has no pickup or dropoff location, or (unless
// KeepNegative) when fare, distance or passenger count is negative.
package transformer

import (
	"fmt"
	"strings"
	"time"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/parser/csv"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/schema"
)

// Options configures a Normalizer.
type Options struct {
	// KeepNegative accepts rows with negative fare_amount, trip_distance or
	// passenger_count.
	KeepNegative bool

	// Location interprets timestamps without a zone. Defaults to UTC.
	Location *time.Location

	// Layouts overrides TimeLayouts.
	Layouts []string
}

// plan holds the source index of every trip column, -1 when absent.
type plan struct {
	vendor, pickup, dropoff, passengers, distance, rate, flag int
	pu, do, payment                                           int
	fare, extra, mta, tip, tolls, total                       int
}

// Normalizer converts rows of one header layout.
type Normalizer struct {
	p       plan
	width   int
	opt     Options
	layouts []string
}

// Result is the outcome of NormalizeBatch.
type Result struct {
	Trips        []schema.Trip
	Rejects      []*NormalizationError
	CoercedNulls int
}

// NewNormalizer compiles a plan for header (canonical names as produced by
// the csv package). It fails with ErrMissingColumn when the header lacks
// pickup_datetime or both location columns.
func NewNormalizer(header []string, opt Options) (*Normalizer, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	at := func(name string) int {
		if i, ok := pos[name]; ok {
			return i
		}
		return -1
	}

	p := plan{
		vendor:     at("vendor_id"),
		pickup:     at("pickup_datetime"),
		dropoff:    at("dropoff_datetime"),
		passengers: at("passenger_count"),
		distance:   at("trip_distance"),
		rate:       at("rate_code"),
		flag:       at("store_and_fwd_flag"),
		pu:         at("PULocationID"),
		do:         at("DOLocationID"),
		payment:    at("payment_type"),
		fare:       at("fare_amount"),
		extra:      at("extra"),
		mta:        at("mta_tax"),
		tip:        at("tip_amount"),
		tolls:      at("tolls_amount"),
		total:      at("total_amount"),
	}
	if p.pickup < 0 {
		return nil, fmt.Errorf("%w: pickup_datetime", ErrMissingColumn)
	}
	if p.pu < 0 && p.do < 0 {
		return nil, fmt.Errorf("%w: PULocationID or DOLocationID", ErrMissingColumn)
	}

	if opt.Location == nil {
		opt.Location = time.UTC
	}
	layouts := opt.Layouts
	if len(layouts) == 0 {
		layouts = TimeLayouts
	}
	return &Normalizer{p: p, width: len(header), opt: opt, layouts: layouts}, nil
}

// Normalize converts one row. line is the source line used in the error.
func (n *Normalizer) Normalize(row []string, line int) (schema.Trip, error) {
	t, _, err := n.normalize(row, line)
	if err != nil {
		return schema.Trip{}, err
	}
	return t, nil
}

// NormalizeBatch converts every row in b. Rejections never abort the batch.
func (n *Normalizer) NormalizeBatch(b *csv.Batch) Result {
	res := Result{Trips: make([]schema.Trip, 0, len(b.Rows))}
	for _, r := range b.Rows {
		t, coerced, err := n.normalize(r.Fields, r.Line)
		if err != nil {
			res.Rejects = append(res.Rejects, err)
			continue
		}
		res.CoercedNulls += coerced
		res.Trips = append(res.Trips, t)
	}
	return res
}

func (n *Normalizer) normalize(row []string, line int) (schema.Trip, int, *NormalizationError) {
	if len(row) < n.width {
		return schema.Trip{}, 0, &NormalizationError{Line: line, Field: "row", Reason: ReasonRowTooShort}
	}
	get := func(i int) string {
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	reject := func(field, value, reason string) (schema.Trip, int, *NormalizationError) {
		return schema.Trip{}, 0, &NormalizationError{Line: line, Field: field, Value: clip(value), Reason: reason}
	}

	trip := schema.Trip{Line: line}
	coerced := 0

	raw := get(n.p.pickup)
	if raw == "" {
		return reject("pickup_datetime", "", ReasonMissing)
	}
	pickup, ok := toTime(raw, n.layouts, n.opt.Location)
	if !ok {
		return reject("pickup_datetime", raw, ReasonBadTime)
	}
	trip.PickupDatetime = pickup

	optInt := func(i int) *int64 {
		s := get(i)
		if s == "" {
			return nil
		}
		v, ok := toIntFast(s)
		if !ok {
			coerced++
			return nil
		}
		return &v
	}
	optFloat := func(i int) *float64 {
		s := get(i)
		if s == "" {
			return nil
		}
		v, ok := toFloat(s)
		if !ok {
			coerced++
			return nil
		}
		return &v
	}

	if s := get(n.p.dropoff); s != "" {
		if d, ok := toTime(s, n.layouts, n.opt.Location); ok {
			trip.DropoffDatetime = &d
		} else {
			coerced++
		}
	}
	trip.VendorID = optInt(n.p.vendor)
	trip.PassengerCount = optInt(n.p.passengers)
	trip.TripDistance = optFloat(n.p.distance)
	trip.RateCode = optInt(n.p.rate)
	if s := get(n.p.flag); s != "" {
		f := strings.ToUpper(s)
		trip.StoreAndFwdFlag = &f
	}
	trip.PULocationID = optInt(n.p.pu)
	trip.DOLocationID = optInt(n.p.do)
	trip.PaymentType = optInt(n.p.payment)
	trip.FareAmount = optFloat(n.p.fare)
	trip.Extra = optFloat(n.p.extra)
	trip.MTATax = optFloat(n.p.mta)
	trip.TipAmount = optFloat(n.p.tip)
	trip.TollsAmount = optFloat(n.p.tolls)
	trip.TotalAmount = optFloat(n.p.total)

	if trip.PULocationID == nil && trip.DOLocationID == nil {
		return reject("PULocationID", get(n.p.pu), ReasonNoLocation)
	}

	if !n.opt.KeepNegative {
		switch {
		case trip.FareAmount != nil && *trip.FareAmount < 0:
			return reject("fare_amount", get(n.p.fare), ReasonNegative)
		case trip.TripDistance != nil && *trip.TripDistance < 0:
			return reject("trip_distance", get(n.p.distance), ReasonNegative)
		case trip.PassengerCount != nil && *trip.PassengerCount < 0:
			return reject("passenger_count", get(n.p.passengers), ReasonNegative)
		}
	}
	return trip, coerced, nil
}
