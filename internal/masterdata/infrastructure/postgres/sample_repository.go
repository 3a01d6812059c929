package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
)

const defaultSamplesTable = "samples"

// SampleRepository is a Postgres implementation for samples.
type SampleRepository struct {
	db    DBTX
	table string
}

// NewSampleRepository constructs a repository.
func NewSampleRepository(db DBTX, opts ...SampleOption) *SampleRepository {
	repo := &SampleRepository{db: db, table: defaultSamplesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// SampleOption configures the repository.
type SampleOption func(*SampleRepository)

// WithSampleTable overrides the default table name.
func WithSampleTable(table string) SampleOption {
	return func(repo *SampleRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a sample by id. A missing sample returns nil without error.
func (r *SampleRepository) Get(ctx context.Context, id string) (*masterdata.Sample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sample repo: nil db")
	}
	if id == "" {
		return nil, errors.New("sample repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT sample_id, box_id, name, description, collected_at, status, temperature, humidity, last_updated
FROM %s
WHERE sample_id = $1
LIMIT 1`, r.table)

	sample, err := scanSample(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sample, nil
}

// List returns samples ordered by id, optionally filtered by box.
func (r *SampleRepository) List(ctx context.Context, boxID string) ([]masterdata.Sample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sample repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT sample_id, box_id, name, description, collected_at, status, temperature, humidity, last_updated
FROM %s`, r.table)
	args := []any{}
	if boxID != "" {
		query += `
WHERE box_id = $1`
		args = append(args, boxID)
	}
	query += `
ORDER BY sample_id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]masterdata.Sample, 0)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// Save upserts a sample.
func (r *SampleRepository) Save(ctx context.Context, sample *masterdata.Sample) error {
	if r == nil || r.db == nil {
		return errors.New("sample repo: nil db")
	}
	if sample == nil {
		return errors.New("sample repo: nil sample")
	}
	if err := sample.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	sample_id,
	box_id,
	name,
	description,
	collected_at,
	status,
	temperature,
	humidity,
	last_updated
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, NOW()
)
ON CONFLICT (sample_id)
DO UPDATE SET
	box_id = EXCLUDED.box_id,
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	collected_at = EXCLUDED.collected_at,
	status = EXCLUDED.status,
	temperature = EXCLUDED.temperature,
	humidity = EXCLUDED.humidity,
	last_updated = NOW()`, r.table)

	collectedAt := sql.NullTime{}
	if !sample.CollectedAt.IsZero() {
		collectedAt = sql.NullTime{Time: sample.CollectedAt.UTC(), Valid: true}
	}

	if _, err := r.db.ExecContext(
		ctx,
		query,
		sample.ID,
		sample.BoxID,
		sample.Name,
		sample.Description,
		collectedAt,
		sample.Status,
		sample.Temperature,
		sample.Humidity,
	); err != nil {
		return err
	}
	sample.LastUpdated = time.Now().UTC()
	return nil
}

// Count returns the number of samples.
func (r *SampleRepository) Count(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("sample repo: nil db")
	}
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanSample(scanner interface{ Scan(dest ...any) error }) (*masterdata.Sample, error) {
	var sample masterdata.Sample
	var collectedAt sql.NullTime
	if err := scanner.Scan(
		&sample.ID,
		&sample.BoxID,
		&sample.Name,
		&sample.Description,
		&collectedAt,
		&sample.Status,
		&sample.Temperature,
		&sample.Humidity,
		&sample.LastUpdated,
	); err != nil {
		return nil, err
	}
	if collectedAt.Valid {
		sample.CollectedAt = collectedAt.Time.UTC()
	}
	sample.LastUpdated = sample.LastUpdated.UTC()
	return &sample, nil
}
