package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	alerts "github.com/HendrickFS/bio-supply-twin/internal/alerts/domain"
)

const defaultAlertsTable = "alerts"

// AlertRepository is a Postgres repository for alerts.
type AlertRepository struct {
	db    *sql.DB
	table string
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db, table: defaultAlertsTable}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if err := alert.Validate(); err != nil {
		return err
	}
	if alert.StartedAt.IsZero() {
		alert.StartedAt = time.Now().UTC()
	}
	if alert.LastSeenAt.IsZero() {
		alert.LastSeenAt = alert.StartedAt
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, box_id, sample_id, type, severity, message, metric, value,
	started_at, last_seen_at, acknowledged_at, resolved_at, is_active
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8,
	$9, $10, $11, $12, $13
)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		alert.BoxID,
		alert.SampleID,
		alert.Type,
		alert.Severity,
		alert.Message,
		alert.Metric,
		alert.Value,
		alert.StartedAt,
		alert.LastSeenAt,
		nullableTime(alert.AcknowledgedAt),
		nullableTime(alert.ResolvedAt),
		alert.IsActive,
	)
	return err
}

// GetByID fetches an alert by id. A missing alert returns nil without error.
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, box_id, sample_id, type, severity, message, metric, value,
	started_at, last_seen_at, acknowledged_at, resolved_at, is_active
FROM %s
WHERE id = $1`, r.table)
	return scanAlert(r.db.QueryRowContext(ctx, query, id))
}

// FindActive returns the open alert for a subject and type, if any.
func (r *AlertRepository) FindActive(ctx context.Context, boxID, sampleID, alertType string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if alertType == "" {
		return nil, alerts.ErrEmptyType
	}
	query := fmt.Sprintf(`
SELECT id, box_id, sample_id, type, severity, message, metric, value,
	started_at, last_seen_at, acknowledged_at, resolved_at, is_active
FROM %s
WHERE box_id = $1 AND sample_id = $2 AND type = $3 AND is_active
ORDER BY started_at DESC
LIMIT 1`, r.table)
	return scanAlert(r.db.QueryRowContext(ctx, query, boxID, sampleID, alertType))
}

// Refresh updates the last observed value for an open alert.
func (r *AlertRepository) Refresh(ctx context.Context, id string, value float64, seenAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET value = $1, last_seen_at = $2
WHERE id = $3`, r.table)
	_, err := r.db.ExecContext(ctx, query, value, seenAt.UTC(), id)
	return err
}

// MarkAcknowledged records the acknowledgement time.
func (r *AlertRepository) MarkAcknowledged(ctx context.Context, id string, ackedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET acknowledged_at = $1
WHERE id = $2`, r.table)
	_, err := r.db.ExecContext(ctx, query, ackedAt.UTC(), id)
	return err
}

// MarkResolved deactivates an alert.
func (r *AlertRepository) MarkResolved(ctx context.Context, id string, resolvedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET is_active = FALSE, resolved_at = $1, last_seen_at = $2
WHERE id = $3`, r.table)
	_, err := r.db.ExecContext(ctx, query, resolvedAt.UTC(), resolvedAt.UTC(), id)
	return err
}

// List returns alerts newest first, optionally only active ones.
func (r *AlertRepository) List(ctx context.Context, activeOnly bool) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, box_id, sample_id, type, severity, message, metric, value,
	started_at, last_seen_at, acknowledged_at, resolved_at, is_active
FROM %s`, r.table)
	if activeOnly {
		query += "\nWHERE is_active"
	}
	query += "\nORDER BY started_at DESC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]alerts.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CountActive returns the number of active alerts.
func (r *AlertRepository) CountActive(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("alert repo: nil db")
	}
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE is_active`, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row alertScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var ackedAt sql.NullTime
	var resolvedAt sql.NullTime
	if err := row.Scan(
		&alert.ID,
		&alert.BoxID,
		&alert.SampleID,
		&alert.Type,
		&alert.Severity,
		&alert.Message,
		&alert.Metric,
		&alert.Value,
		&alert.StartedAt,
		&alert.LastSeenAt,
		&ackedAt,
		&resolvedAt,
		&alert.IsActive,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alert.StartedAt = alert.StartedAt.UTC()
	alert.LastSeenAt = alert.LastSeenAt.UTC()
	if ackedAt.Valid {
		alert.AcknowledgedAt = ackedAt.Time.UTC()
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = resolvedAt.Time.UTC()
	}
	return &alert, nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}
