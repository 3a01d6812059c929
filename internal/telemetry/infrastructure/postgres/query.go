package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
)

// ReadingQuery is a Postgres query implementation.
type ReadingQuery struct {
	db    *sql.DB
	table string
}

// NewReadingQuery constructs a query with default table name.
func NewReadingQuery(db *sql.DB, opts ...QueryOption) *ReadingQuery {
	query := &ReadingQuery{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(query)
	}
	return query
}

// QueryOption configures the reading query.
type QueryOption func(*ReadingQuery)

// WithQueryTable overrides the default table name for queries.
func WithQueryTable(table string) QueryOption {
	return func(query *ReadingQuery) {
		if query != nil && table != "" {
			query.table = table
		}
	}
}

// List returns readings matching the filter, ascending by timestamp.
func (q *ReadingQuery) List(ctx context.Context, filter telemetry.Filter) ([]telemetry.Reading, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("telemetry query: nil db")
	}

	query := fmt.Sprintf(`
SELECT box_id, sample_id, ts, temperature, humidity, geolocation
FROM %s`, q.table)
	where, args := filterClauses(filter)
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY ts ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]telemetry.Reading, 0)
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, *reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}

// Count returns the total number of stored readings.
func (q *ReadingQuery) Count(ctx context.Context) (int64, error) {
	if q == nil || q.db == nil {
		return 0, errors.New("telemetry query: nil db")
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, q.table)
	var count int64
	if err := q.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func filterClauses(filter telemetry.Filter) ([]string, []any) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.BoxID != "" {
		args = append(args, filter.BoxID)
		where = append(where, fmt.Sprintf("box_id = $%d", len(args)))
	}
	if filter.SampleID != "" {
		args = append(args, filter.SampleID)
		where = append(where, fmt.Sprintf("sample_id = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		where = append(where, fmt.Sprintf("ts >= $%d", len(args)))
	}
	return where, args
}

func scanReading(scanner interface{ Scan(dest ...any) error }) (*telemetry.Reading, error) {
	var reading telemetry.Reading
	var temperature, humidity sql.NullFloat64
	if err := scanner.Scan(
		&reading.BoxID,
		&reading.SampleID,
		&reading.Timestamp,
		&temperature,
		&humidity,
		&reading.Geolocation,
	); err != nil {
		return nil, err
	}
	if temperature.Valid {
		v := temperature.Float64
		reading.Temperature = &v
	}
	if humidity.Valid {
		v := humidity.Float64
		reading.Humidity = &v
	}
	reading.Timestamp = reading.Timestamp.UTC()
	return &reading, nil
}
