package events

import "time"

// RecordedPoint is one stored observation carried on the event payload.
type RecordedPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Geolocation string    `json:"geolocation,omitempty"`
}

// TelemetryRecorded is raised after readings are persisted. Alert evaluation
// consumes it off the bus.
type TelemetryRecorded struct {
	EventID    string          `json:"event_id"`
	BoxID      string          `json:"box_id,omitempty"`
	SampleID   string          `json:"sample_id,omitempty"`
	Points     []RecordedPoint `json:"points"`
	OccurredAt time.Time       `json:"occurred_at"`
}
