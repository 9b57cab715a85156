package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// QueryAggregates runs the Aggregates query against a database/sql handle.
// fqTable must already be quoted for the dialect.
func QueryAggregates(ctx context.Context, db *sql.DB, fqTable string) (Aggregates, error) {
	var a Aggregates
	q := fmt.Sprintf(
		"SELECT COUNT(*), COALESCE(SUM(fare_amount), 0), COALESCE(SUM(total_amount), 0) FROM %s",
		fqTable,
	)
	if err := db.QueryRowContext(ctx, q).Scan(&a.Count, &a.SumFare, &a.SumTotal); err != nil {
		return Aggregates{}, fmt.Errorf("aggregates: %w", err)
	}
	return a, nil
}

// QueryHourlyFares runs an hour-of-pickup report. hourExpr is the dialect's
// expression extracting the hour from pickup_datetime.
func QueryHourlyFares(ctx context.Context, db *sql.DB, fqTable, hourExpr string, limit int) ([]HourlyFare, error) {
	if limit <= 0 {
		limit = 24
	}
	q := fmt.Sprintf(
		"SELECT %[1]s AS hr, AVG(fare_amount), COUNT(*) FROM %[2]s GROUP BY %[1]s ORDER BY hr LIMIT %[3]d",
		hourExpr, fqTable, limit,
	)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("hourly fares: %w", err)
	}
	defer rows.Close()

	var out []HourlyFare
	for rows.Next() {
		var (
			h   HourlyFare
			avg sql.NullFloat64
		)
		if err := rows.Scan(&h.Hour, &avg, &h.Trips); err != nil {
			return nil, fmt.Errorf("hourly fares: scan: %w", err)
		}
		h.AvgFare = avg.Float64
		out = append(out, h)
	}
	return out, rows.Err()
}
