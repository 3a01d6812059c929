package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	alerts "github.com/HendrickFS/bio-supply-twin/internal/alerts/domain"
	"github.com/HendrickFS/bio-supply-twin/internal/analytics/compliance"
	"github.com/HendrickFS/bio-supply-twin/internal/analytics/series"
	masterdata "github.com/HendrickFS/bio-supply-twin/internal/masterdata/domain"
	"github.com/HendrickFS/bio-supply-twin/internal/observability/metrics"
	telemetryevents "github.com/HendrickFS/bio-supply-twin/internal/telemetry/events"
)

// DefaultStaleAfter marks a box stale when no reading arrived for this long.
const DefaultStaleAfter = 10 * time.Minute

// AlertNotifier publishes alert lifecycle events.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// AlertEvent represents a lifecycle update.
type AlertEvent struct {
	Type  string       `json:"type"`
	Alert alerts.Alert `json:"alert"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// BandResolver supplies the allowed band for a box.
type BandResolver interface {
	BandForBox(ctx context.Context, boxID string) compliance.Band
}

// Monitor evaluates readings against the allowed band and drives alert state.
type Monitor struct {
	alerts     alerts.Repository
	bands      BandResolver
	notifier   AlertNotifier
	clock      Clock
	staleAfter time.Duration
}

// MonitorOption customizes the monitor.
type MonitorOption func(*Monitor)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlertNotifier) MonitorOption {
	return func(m *Monitor) {
		m.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) MonitorOption {
	return func(m *Monitor) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithStaleAfter overrides the stale data threshold.
func WithStaleAfter(after time.Duration) MonitorOption {
	return func(m *Monitor) {
		if after > 0 {
			m.staleAfter = after
		}
	}
}

// NewMonitor constructs an alert monitor.
func NewMonitor(alertsRepo alerts.Repository, bands BandResolver, opts ...MonitorOption) (*Monitor, error) {
	if alertsRepo == nil {
		return nil, errors.New("alerts: nil repository")
	}
	if bands == nil {
		return nil, errors.New("alerts: nil band resolver")
	}
	monitor := &Monitor{
		alerts:     alertsRepo,
		bands:      bands,
		clock:      systemClock{},
		staleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(monitor)
	}
	return monitor, nil
}

// HandleTelemetryRecorded evaluates recorded readings against the band.
func (m *Monitor) HandleTelemetryRecorded(ctx context.Context, evt telemetryevents.TelemetryRecorded) error {
	if m == nil {
		return errors.New("alerts: nil monitor")
	}
	if evt.BoxID == "" && evt.SampleID == "" {
		return errors.New("alerts: telemetry missing box/sample")
	}
	if len(evt.Points) == 0 {
		return nil
	}

	band := m.bands.BandForBox(ctx, evt.BoxID)
	for _, point := range evt.Points {
		at := point.Timestamp
		if at.IsZero() {
			at = evt.OccurredAt
		}
		if point.Temperature != nil {
			if err := m.evaluateMetric(ctx, evt.BoxID, evt.SampleID, series.MetricTemperature, *point.Temperature, at, band); err != nil {
				return err
			}
		}
		if point.Humidity != nil {
			if err := m.evaluateMetric(ctx, evt.BoxID, evt.SampleID, series.MetricHumidity, *point.Humidity, at, band); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckBoxFreshness raises or resolves a stale data alert for a box.
func (m *Monitor) CheckBoxFreshness(ctx context.Context, box masterdata.TransportBox) error {
	if m == nil {
		return errors.New("alerts: nil monitor")
	}
	if box.ID == "" {
		return errors.New("alerts: empty box id")
	}

	open, err := m.alerts.FindActive(ctx, box.ID, "", alerts.TypeStaleData)
	if err != nil {
		return err
	}

	now := m.clock.Now().UTC()
	stale := !box.LastUpdated.IsZero() && now.Sub(box.LastUpdated) > m.staleAfter
	if stale {
		silentFor := now.Sub(box.LastUpdated)
		if open != nil {
			return m.alerts.Refresh(ctx, open.ID, silentFor.Seconds(), now)
		}
		alert := &alerts.Alert{
			ID:         buildAlertID(box.ID, "", alerts.TypeStaleData, now),
			BoxID:      box.ID,
			Type:       alerts.TypeStaleData,
			Severity:   alerts.SeverityWarning,
			Message:    fmt.Sprintf("no telemetry from %s since %s", box.ID, box.LastUpdated.UTC().Format(time.RFC3339)),
			Value:      silentFor.Seconds(),
			StartedAt:  now,
			LastSeenAt: now,
			IsActive:   true,
		}
		if err := m.alerts.Create(ctx, alert); err != nil {
			return err
		}
		m.notify(ctx, "active", *alert)
		return nil
	}

	if open != nil {
		if err := m.alerts.MarkResolved(ctx, open.ID, now); err != nil {
			return err
		}
		open.IsActive = false
		open.ResolvedAt = now
		m.notify(ctx, "resolved", *open)
	}
	return nil
}

// AckAlert acknowledges an alert.
func (m *Monitor) AckAlert(ctx context.Context, id string) (*alerts.Alert, error) {
	if m == nil {
		return nil, errors.New("alerts: nil monitor")
	}
	if id == "" {
		return nil, alerts.ErrEmptyID
	}
	alert, err := m.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	if !alert.IsActive {
		return alert, nil
	}
	if alert.AcknowledgedAt.IsZero() {
		ackedAt := m.clock.Now().UTC()
		if err := m.alerts.MarkAcknowledged(ctx, alert.ID, ackedAt); err != nil {
			return nil, err
		}
		alert.AcknowledgedAt = ackedAt
		m.notify(ctx, "acknowledged", *alert)
	}
	return alert, nil
}

// ResolveAlert resolves an alert manually.
func (m *Monitor) ResolveAlert(ctx context.Context, id string) (*alerts.Alert, error) {
	if m == nil {
		return nil, errors.New("alerts: nil monitor")
	}
	if id == "" {
		return nil, alerts.ErrEmptyID
	}
	alert, err := m.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	if !alert.IsActive {
		return alert, nil
	}
	resolvedAt := m.clock.Now().UTC()
	if err := m.alerts.MarkResolved(ctx, alert.ID, resolvedAt); err != nil {
		return nil, err
	}
	alert.IsActive = false
	alert.ResolvedAt = resolvedAt
	alert.LastSeenAt = resolvedAt
	m.notify(ctx, "resolved", *alert)
	return alert, nil
}

// CreateAlert records a manually raised alert.
func (m *Monitor) CreateAlert(ctx context.Context, alert *alerts.Alert) (*alerts.Alert, error) {
	if m == nil {
		return nil, errors.New("alerts: nil monitor")
	}
	if alert == nil {
		return nil, errors.New("alerts: nil alert")
	}
	now := m.clock.Now().UTC()
	if alert.Severity == "" {
		alert.Severity = alerts.SeverityWarning
	}
	if alert.StartedAt.IsZero() {
		alert.StartedAt = now
	}
	if alert.LastSeenAt.IsZero() {
		alert.LastSeenAt = alert.StartedAt
	}
	if alert.ID == "" {
		alert.ID = buildAlertID(alert.BoxID, alert.SampleID, alert.Type, alert.StartedAt)
	}
	alert.IsActive = true
	if err := alert.Validate(); err != nil {
		return nil, err
	}
	if err := m.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}
	m.notify(ctx, "active", *alert)
	return alert, nil
}

// ListAlerts returns alerts, optionally only active ones.
func (m *Monitor) ListAlerts(ctx context.Context, activeOnly bool) ([]alerts.Alert, error) {
	if m == nil {
		return nil, errors.New("alerts: nil monitor")
	}
	return m.alerts.List(ctx, activeOnly)
}

func (m *Monitor) evaluateMetric(ctx context.Context, boxID, sampleID, metric string, value float64, at time.Time, band compliance.Band) error {
	min, max, ok := band.Range(metric)
	if !ok {
		return nil
	}

	alertType := typeForMetric(metric)
	open, err := m.alerts.FindActive(ctx, boxID, sampleID, alertType)
	if err != nil {
		return err
	}

	at = atOrNow(at, m.clock)
	if value < min || value > max {
		if open != nil {
			return m.alerts.Refresh(ctx, open.ID, value, at)
		}
		alert := &alerts.Alert{
			ID:         buildAlertID(boxID, sampleID, alertType, at),
			BoxID:      boxID,
			SampleID:   sampleID,
			Type:       alertType,
			Severity:   classifySeverity(value, min, max),
			Message:    excursionMessage(metric, value, min, max),
			Metric:     metric,
			Value:      value,
			StartedAt:  at,
			LastSeenAt: at,
			IsActive:   true,
		}
		if err := m.alerts.Create(ctx, alert); err != nil {
			return err
		}
		m.notify(ctx, "active", *alert)
		return nil
	}

	if open != nil {
		if err := m.alerts.MarkResolved(ctx, open.ID, at); err != nil {
			return err
		}
		open.IsActive = false
		open.ResolvedAt = at
		open.LastSeenAt = at
		m.notify(ctx, "resolved", *open)
	}
	return nil
}

func (m *Monitor) notify(ctx context.Context, eventType string, alert alerts.Alert) {
	if m == nil {
		return
	}
	metrics.IncAlertEvent(eventType)
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, AlertEvent{Type: eventType, Alert: alert})
}

func typeForMetric(metric string) string {
	if metric == series.MetricHumidity {
		return alerts.TypeHumidityExcursion
	}
	return alerts.TypeTemperatureExcursion
}

// classifySeverity grades the excursion: critical when the value sits
// farther outside the band than the band is wide, warning otherwise.
func classifySeverity(value, min, max float64) string {
	width := max - min
	depth := 0.0
	switch {
	case value < min:
		depth = min - value
	case value > max:
		depth = value - max
	}
	if width > 0 && depth > width {
		return alerts.SeverityCritical
	}
	return alerts.SeverityWarning
}

func excursionMessage(metric string, value, min, max float64) string {
	return fmt.Sprintf("%s %s outside allowed range [%s, %s]",
		metric, formatValue(value), formatValue(min), formatValue(max))
}

func formatValue(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func buildAlertID(boxID, sampleID, alertType string, startAt time.Time) string {
	sum := sha1.Sum([]byte(boxID + "|" + sampleID + "|" + alertType + "|" + startAt.Format(time.RFC3339Nano)))
	return "alert-" + hex.EncodeToString(sum[:8])
}

func atOrNow(value time.Time, clock Clock) time.Time {
	if value.IsZero() {
		return clock.Now().UTC()
	}
	return value.UTC()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
