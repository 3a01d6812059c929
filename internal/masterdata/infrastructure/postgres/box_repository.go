package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
)

const defaultBoxesTable = "transport_boxes"

// BoxRepository is a Postgres implementation for transport boxes.
type BoxRepository struct {
	db    DBTX
	table string
}

// NewBoxRepository constructs a repository.
func NewBoxRepository(db DBTX, opts ...BoxOption) *BoxRepository {
	repo := &BoxRepository{db: db, table: defaultBoxesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// BoxOption configures the repository.
type BoxOption func(*BoxRepository)

// WithBoxTable overrides the default table name.
func WithBoxTable(table string) BoxOption {
	return func(repo *BoxRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a box by id. A missing box returns nil without error.
func (r *BoxRepository) Get(ctx context.Context, id string) (*masterdata.TransportBox, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("box repo: nil db")
	}
	if id == "" {
		return nil, errors.New("box repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT box_id, geolocation, temperature, humidity, status, last_updated
FROM %s
WHERE box_id = $1
LIMIT 1`, r.table)

	box, err := scanBox(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return box, nil
}

// List returns all boxes ordered by id.
func (r *BoxRepository) List(ctx context.Context) ([]masterdata.TransportBox, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("box repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT box_id, geolocation, temperature, humidity, status, last_updated
FROM %s
ORDER BY box_id ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	boxes := make([]masterdata.TransportBox, 0)
	for rows.Next() {
		box, err := scanBox(rows)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, *box)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return boxes, nil
}

// Save upserts a box.
func (r *BoxRepository) Save(ctx context.Context, box *masterdata.TransportBox) error {
	if r == nil || r.db == nil {
		return errors.New("box repo: nil db")
	}
	if box == nil {
		return errors.New("box repo: nil box")
	}
	if err := box.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	box_id,
	geolocation,
	temperature,
	humidity,
	status,
	last_updated
) VALUES (
	$1, $2, $3, $4, $5, NOW()
)
ON CONFLICT (box_id)
DO UPDATE SET
	geolocation = EXCLUDED.geolocation,
	temperature = EXCLUDED.temperature,
	humidity = EXCLUDED.humidity,
	status = EXCLUDED.status,
	last_updated = NOW()`, r.table)

	if _, err := r.db.ExecContext(
		ctx,
		query,
		box.ID,
		box.Geolocation,
		box.Temperature,
		box.Humidity,
		box.Status,
	); err != nil {
		return err
	}
	box.LastUpdated = time.Now().UTC()
	return nil
}

// Count returns the number of boxes.
func (r *BoxRepository) Count(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("box repo: nil db")
	}
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanBox(scanner interface{ Scan(dest ...any) error }) (*masterdata.TransportBox, error) {
	var box masterdata.TransportBox
	if err := scanner.Scan(
		&box.ID,
		&box.Geolocation,
		&box.Temperature,
		&box.Humidity,
		&box.Status,
		&box.LastUpdated,
	); err != nil {
		return nil, err
	}
	box.LastUpdated = box.LastUpdated.UTC()
	return &box, nil
}
