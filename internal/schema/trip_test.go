package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTripValues_AlignedToColumns(t *testing.T) {
	fare := 12.5
	pu := int64(42)
	pickup := time.Date(2021, 1, 1, 0, 15, 56, 0, time.UTC)

	trip := Trip{PickupDatetime: pickup, FareAmount: &fare, PULocationID: &pu}
	vals := trip.Values()

	require.Len(t, vals, len(TripColumns))
	idx := func(col string) int {
		for i, c := range TripColumns {
			if c == col {
				return i
			}
		}
		t.Fatalf("column %q not found", col)
		return -1
	}
	assert.Equal(t, pickup, vals[idx("pickup_datetime")])
	assert.Equal(t, 12.5, vals[idx("fare_amount")])
	assert.Equal(t, int64(42), vals[idx("PULocationID")])
	assert.Nil(t, vals[idx("DOLocationID")])
	assert.Nil(t, vals[idx("dropoff_datetime")])
	assert.Nil(t, vals[idx("store_and_fwd_flag")])
}

func TestTripFareAndTotal_NullIsZero(t *testing.T) {
	var trip Trip
	assert.Zero(t, trip.Fare())
	assert.Zero(t, trip.Total())

	total := 20.3
	trip.TotalAmount = &total
	assert.Equal(t, 20.3, trip.Total())
}

func TestTripColumnKinds_Aligned(t *testing.T) {
	require.Len(t, TripColumnKinds, len(TripColumns))

	kinds := map[string]Kind{}
	for i, c := range TripColumns {
		kinds[c] = TripColumnKinds[i]
	}
	assert.Equal(t, KindTime, kinds["pickup_datetime"])
	assert.Equal(t, KindFloat, kinds["fare_amount"])
	assert.Equal(t, KindInt, kinds["PULocationID"])
	assert.Equal(t, KindText, kinds["store_and_fwd_flag"])
}
