package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a file path or URI understood by modernc.org/sqlite, e.g.
	// "nyc_taxi.db", "file:nyc_taxi.db?_pragma=busy_timeout(5000)" or
	// ":memory:".
	DSN string

	// Table receives inserts. "main.trips_raw" is accepted.
	Table string
}
