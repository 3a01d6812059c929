// Package telemetry contains the environmental reading model and its
// storage contracts.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/series"
)

// Domain errors.
var (
	ErrMissingSubject   = errors.New("telemetry: reading needs a box or sample id")
	ErrMissingTimestamp = errors.New("telemetry: reading needs a timestamp")
)

// Reading is a raw environmental observation tied to a transport box, a
// sample, or both. Nil metric pointers mean the sensor did not report that
// metric.
type Reading struct {
	BoxID       string    `json:"box_id,omitempty"`
	SampleID    string    `json:"sample_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Geolocation string    `json:"geolocation,omitempty"`
}

// Validate checks the reading can be stored.
func (r Reading) Validate() error {
	if r.BoxID == "" && r.SampleID == "" {
		return ErrMissingSubject
	}
	if r.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	return nil
}

// Point converts the reading into the analytics input model.
func (r Reading) Point() series.Point {
	return series.Point{
		Timestamp:   r.Timestamp,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Geolocation: r.Geolocation,
	}
}

// Points converts a stored slice into the analytics input model.
func Points(readings []Reading) []series.Point {
	points := make([]series.Point, 0, len(readings))
	for _, r := range readings {
		points = append(points, r.Point())
	}
	return points
}

// Filter bounds a reading query. Zero fields are ignored.
type Filter struct {
	BoxID    string
	SampleID string
	Since    time.Time
	Limit    int
}

// Repository persists readings.
type Repository interface {
	InsertReadings(ctx context.Context, readings []Reading) error
}

// Query loads stored readings.
type Query interface {
	List(ctx context.Context, filter Filter) ([]Reading, error)
	Count(ctx context.Context) (int64, error)
}
