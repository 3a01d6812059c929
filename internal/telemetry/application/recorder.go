package application

import (
	"context"
	"database/sql"
	"errors"

	"github.com/HendrickFS/bio-supply-twin/internal/eventing"
	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
	telemetryevents "github.com/HendrickFS/bio-supply-twin/internal/telemetry/events"
)

// TxInserter writes readings inside a caller-owned transaction.
type TxInserter interface {
	InsertReadingsTx(ctx context.Context, tx *sql.Tx, readings []telemetry.Reading) error
}

// TxPublisher stages outbox events inside a caller-owned transaction.
type TxPublisher interface {
	PublishTx(ctx context.Context, tx *sql.Tx, event any) error
}

// Recorder stores readings and stages their TelemetryRecorded events in one
// transaction, so a reading never becomes visible without its event.
type Recorder struct {
	db        *sql.DB
	readings  TxInserter
	publisher TxPublisher
}

// NewRecorder constructs a recorder. The publisher may be nil.
func NewRecorder(db *sql.DB, readings TxInserter, publisher TxPublisher) (*Recorder, error) {
	if db == nil {
		return nil, errors.New("telemetry recorder: nil db")
	}
	if readings == nil {
		return nil, errors.New("telemetry recorder: nil inserter")
	}
	return &Recorder{db: db, readings: readings, publisher: publisher}, nil
}

// Record persists the readings and returns how many were stored.
func (r *Recorder) Record(ctx context.Context, readings []telemetry.Reading) (int, error) {
	if r == nil {
		return 0, errors.New("telemetry recorder: nil recorder")
	}
	if len(readings) == 0 {
		return 0, errors.New("telemetry recorder: no readings")
	}
	for _, reading := range readings {
		if err := reading.Validate(); err != nil {
			return 0, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := r.readings.InsertReadingsTx(ctx, tx, readings); err != nil {
		return 0, err
	}
	if r.publisher != nil {
		for _, event := range GroupEvents(readings) {
			if err := r.publisher.PublishTx(ctx, tx, event); err != nil {
				return 0, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(readings), nil
}

// GroupEvents folds readings into one TelemetryRecorded event per subject,
// preserving first-seen subject order.
func GroupEvents(readings []telemetry.Reading) []telemetryevents.TelemetryRecorded {
	var order []string
	groups := make(map[string]*telemetryevents.TelemetryRecorded)

	for _, reading := range readings {
		key := reading.BoxID + "|" + reading.SampleID
		event, ok := groups[key]
		if !ok {
			event = &telemetryevents.TelemetryRecorded{
				EventID:  eventing.NewEventID(),
				BoxID:    reading.BoxID,
				SampleID: reading.SampleID,
			}
			groups[key] = event
			order = append(order, key)
		}
		event.Points = append(event.Points, telemetryevents.RecordedPoint{
			Timestamp:   reading.Timestamp,
			Temperature: reading.Temperature,
			Humidity:    reading.Humidity,
			Geolocation: reading.Geolocation,
		})
		if reading.Timestamp.After(event.OccurredAt) {
			event.OccurredAt = reading.Timestamp
		}
	}

	events := make([]telemetryevents.TelemetryRecorded, 0, len(order))
	for _, key := range order {
		events = append(events, *groups[key])
	}
	return events
}
