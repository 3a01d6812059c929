package alerts

import (
	"context"
	"time"
)

// Alert types raised by the monitor.
const (
	TypeTemperatureExcursion = "temperature_excursion"
	TypeHumidityExcursion    = "humidity_excursion"
	TypeStaleData            = "stale_data"
)

// Severities ordered by urgency.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert represents a condition raised against a box or sample.
type Alert struct {
	ID             string    `json:"id"`
	BoxID          string    `json:"box_id,omitempty"`
	SampleID       string    `json:"sample_id,omitempty"`
	Type           string    `json:"type"`
	Severity       string    `json:"severity"`
	Message        string    `json:"message"`
	Metric         string    `json:"metric,omitempty"`
	Value          float64   `json:"value"`
	StartedAt      time.Time `json:"started_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
	AcknowledgedAt time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     time.Time `json:"resolved_at,omitempty"`
	IsActive       bool      `json:"is_active"`
}

// Validate checks the alert invariants.
func (a Alert) Validate() error {
	if a.ID == "" {
		return ErrEmptyID
	}
	if a.BoxID == "" && a.SampleID == "" {
		return ErrMissingSubject
	}
	if a.Type == "" {
		return ErrEmptyType
	}
	switch a.Severity {
	case SeverityInfo, SeverityWarning, SeverityCritical:
	default:
		return ErrUnknownSeverity
	}
	return nil
}

// Repository persists alerts.
type Repository interface {
	Create(ctx context.Context, alert *Alert) error
	GetByID(ctx context.Context, id string) (*Alert, error)
	FindActive(ctx context.Context, boxID, sampleID, alertType string) (*Alert, error)
	Refresh(ctx context.Context, id string, value float64, seenAt time.Time) error
	MarkAcknowledged(ctx context.Context, id string, ackedAt time.Time) error
	MarkResolved(ctx context.Context, id string, resolvedAt time.Time) error
	List(ctx context.Context, activeOnly bool) ([]Alert, error)
	CountActive(ctx context.Context) (int64, error)
}
