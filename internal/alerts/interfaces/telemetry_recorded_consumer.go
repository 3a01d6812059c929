package interfaces

import (
	"context"
	"errors"

	alertapp "github.com/HendrickFS/bio-supply-twin/internal/alerts/application"
	telemetryevents "github.com/HendrickFS/bio-supply-twin/internal/telemetry/events"
)

// TelemetryRecordedConsumer adapts telemetry events into the alert monitor.
type TelemetryRecordedConsumer struct {
	monitor *alertapp.Monitor
}

// NewTelemetryRecordedConsumer constructs a consumer.
func NewTelemetryRecordedConsumer(monitor *alertapp.Monitor) (*TelemetryRecordedConsumer, error) {
	if monitor == nil {
		return nil, errors.New("alerts consumer: nil monitor")
	}
	return &TelemetryRecordedConsumer{monitor: monitor}, nil
}

// Consume handles a telemetry recorded event.
func (c *TelemetryRecordedConsumer) Consume(ctx context.Context, event telemetryevents.TelemetryRecorded) error {
	return c.monitor.HandleTelemetryRecorded(ctx, event)
}
