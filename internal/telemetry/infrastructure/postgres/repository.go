package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
)

const defaultReadingsTable = "telemetry_readings"

// ReadingRepository is a Postgres implementation for telemetry readings.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// NewReadingRepository constructs a repository with default table name.
func NewReadingRepository(db *sql.DB, opts ...RepositoryOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ReadingRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// InsertReadings upserts telemetry readings in a single transaction.
// Rows are keyed by (box_id, sample_id, ts); absent subjects are stored
// as empty strings so the conflict target stays NOT NULL.
func (r *ReadingRepository) InsertReadings(ctx context.Context, readings []telemetry.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("telemetry repo: nil db")
	}
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := insertReadingsTx(ctx, tx, r.table, readings); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// InsertReadingsTx upserts readings inside a caller-owned transaction so
// ingest can persist readings and outbox rows atomically.
func (r *ReadingRepository) InsertReadingsTx(ctx context.Context, tx *sql.Tx, readings []telemetry.Reading) error {
	if r == nil {
		return errors.New("telemetry repo: nil repo")
	}
	if tx == nil {
		return errors.New("telemetry repo: nil tx")
	}
	return insertReadingsTx(ctx, tx, r.table, readings)
}

func insertReadingsTx(ctx context.Context, tx *sql.Tx, table string, readings []telemetry.Reading) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	box_id,
	sample_id,
	ts,
	temperature,
	humidity,
	geolocation
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (box_id, sample_id, ts)
DO UPDATE SET
	temperature = EXCLUDED.temperature,
	humidity = EXCLUDED.humidity,
	geolocation = EXCLUDED.geolocation`, table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, reading := range readings {
		if err := reading.Validate(); err != nil {
			return err
		}

		temperature := sql.NullFloat64{}
		if reading.Temperature != nil {
			temperature = sql.NullFloat64{Float64: *reading.Temperature, Valid: true}
		}
		humidity := sql.NullFloat64{}
		if reading.Humidity != nil {
			humidity = sql.NullFloat64{Float64: *reading.Humidity, Valid: true}
		}

		if _, err := stmt.ExecContext(
			ctx,
			reading.BoxID,
			reading.SampleID,
			reading.Timestamp.UTC(),
			temperature,
			humidity,
			reading.Geolocation,
		); err != nil {
			return err
		}
	}
	return nil
}
