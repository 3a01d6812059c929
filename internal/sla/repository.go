package sla

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultConfigsTable = "sla_configs"

// Repository is a Postgres store for named SLA configs.
type Repository struct {
	db    *sql.DB
	table string
}

// NewRepository constructs a repository with default table name.
func NewRepository(db *sql.DB, opts ...RepositoryOption) *Repository {
	repo := &Repository{db: db, table: defaultConfigsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*Repository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *Repository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Save upserts a config by name.
func (r *Repository) Save(ctx context.Context, cfg *Config) error {
	if r == nil || r.db == nil {
		return errors.New("sla repo: nil db")
	}
	if cfg == nil {
		return errors.New("sla repo: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	name,
	temp_min,
	temp_max,
	humidity_min,
	humidity_max,
	created_at,
	updated_at
) VALUES (
	$1, $2, $3, $4, $5, NOW(), NOW()
)
ON CONFLICT (name)
DO UPDATE SET
	temp_min = EXCLUDED.temp_min,
	temp_max = EXCLUDED.temp_max,
	humidity_min = EXCLUDED.humidity_min,
	humidity_max = EXCLUDED.humidity_max,
	updated_at = NOW()`, r.table)

	if _, err := r.db.ExecContext(
		ctx,
		query,
		cfg.Name,
		cfg.TempMin,
		cfg.TempMax,
		cfg.HumidityMin,
		cfg.HumidityMax,
	); err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().UTC()
	return nil
}

// GetByName loads a config by name. A missing config returns nil without error.
func (r *Repository) GetByName(ctx context.Context, name string) (*Config, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sla repo: nil db")
	}
	if name == "" {
		return nil, ErrEmptyName
	}

	query := fmt.Sprintf(`
SELECT name, temp_min, temp_max, humidity_min, humidity_max, created_at, updated_at
FROM %s
WHERE name = $1
LIMIT 1`, r.table)

	cfg, err := scanConfig(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

// List returns configs ordered newest first.
func (r *Repository) List(ctx context.Context) ([]Config, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sla repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT name, temp_min, temp_max, humidity_min, humidity_max, created_at, updated_at
FROM %s
ORDER BY created_at DESC, name ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make([]Config, 0)
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}

func scanConfig(scanner interface{ Scan(dest ...any) error }) (*Config, error) {
	var cfg Config
	if err := scanner.Scan(
		&cfg.Name,
		&cfg.TempMin,
		&cfg.TempMax,
		&cfg.HumidityMin,
		&cfg.HumidityMax,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	cfg.CreatedAt = cfg.CreatedAt.UTC()
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return &cfg, nil
}
