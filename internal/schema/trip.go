// Package schema holds the persisted row shapes of the trip loader: the
// trips_raw row written by ingestion and the schema_versions row written by
// the deploy command.
package schema

import "time"

// TripsTable is the ingestion target.
const TripsTable = "trips_raw"

// VersionsTable records applied migrations. Ingestion never writes to it.
const VersionsTable = "schema_versions"

// TripColumns lists the trips_raw columns in insert order. The auto-increment
// id column is left for the database to populate.
var TripColumns = []string{
	"vendor_id",
	"pickup_datetime",
	"dropoff_datetime",
	"passenger_count",
	"trip_distance",
	"rate_code",
	"store_and_fwd_flag",
	"PULocationID",
	"DOLocationID",
	"payment_type",
	"fare_amount",
	"extra",
	"mta_tax",
	"tip_amount",
	"tolls_amount",
	"total_amount",
}

// Kind is the logical type of a trip column. Backends map it to a SQL type.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindTime
	KindText
)

// TripColumnKinds is aligned with TripColumns.
var TripColumnKinds = []Kind{
	KindInt,   // vendor_id
	KindTime,  // pickup_datetime
	KindTime,  // dropoff_datetime
	KindInt,   // passenger_count
	KindFloat, // trip_distance
	KindInt,   // rate_code
	KindText,  // store_and_fwd_flag
	KindInt,   // PULocationID
	KindInt,   // DOLocationID
	KindInt,   // payment_type
	KindFloat, // fare_amount
	KindFloat, // extra
	KindFloat, // mta_tax
	KindFloat, // tip_amount
	KindFloat, // tolls_amount
	KindFloat, // total_amount
}

// Trip is one normalized TLC trip record. Pointer fields are NULL when the
// source cell was empty or could not be coerced.
type Trip struct {
	VendorID        *int64     `db:"vendor_id"`
	PickupDatetime  time.Time  `db:"pickup_datetime"`
	DropoffDatetime *time.Time `db:"dropoff_datetime"`
	PassengerCount  *int64     `db:"passenger_count"`
	TripDistance    *float64   `db:"trip_distance"`
	RateCode        *int64     `db:"rate_code"`
	StoreAndFwdFlag *string    `db:"store_and_fwd_flag"`
	PULocationID    *int64     `db:"PULocationID"`
	DOLocationID    *int64     `db:"DOLocationID"`
	PaymentType     *int64     `db:"payment_type"`
	FareAmount      *float64   `db:"fare_amount"`
	Extra           *float64   `db:"extra"`
	MTATax          *float64   `db:"mta_tax"`
	TipAmount       *float64   `db:"tip_amount"`
	TollsAmount     *float64   `db:"tolls_amount"`
	TotalAmount     *float64   `db:"total_amount"`

	// Line is the 1-based source line the record came from. Not persisted.
	Line int `db:"-"`
}

// Values returns the record aligned to TripColumns, with nil for NULL.
func (t Trip) Values() []any {
	return []any{
		intVal(t.VendorID),
		t.PickupDatetime,
		timeVal(t.DropoffDatetime),
		intVal(t.PassengerCount),
		floatVal(t.TripDistance),
		intVal(t.RateCode),
		stringVal(t.StoreAndFwdFlag),
		intVal(t.PULocationID),
		intVal(t.DOLocationID),
		intVal(t.PaymentType),
		floatVal(t.FareAmount),
		floatVal(t.Extra),
		floatVal(t.MTATax),
		floatVal(t.TipAmount),
		floatVal(t.TollsAmount),
		floatVal(t.TotalAmount),
	}
}

// Fare returns fare_amount, treating NULL as zero the way SUM() does.
func (t Trip) Fare() float64 {
	if t.FareAmount == nil {
		return 0
	}
	return *t.FareAmount
}

// Total returns total_amount, treating NULL as zero the way SUM() does.
func (t Trip) Total() float64 {
	if t.TotalAmount == nil {
		return 0
	}
	return *t.TotalAmount
}

func intVal(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatVal(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringVal(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeVal(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
