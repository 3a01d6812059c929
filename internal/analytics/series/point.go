// Package series defines the immutable telemetry input model shared by the
// analytics evaluators.
package series

import (
	"math"
	"time"
)

// Metric names understood by the evaluators.
const (
	MetricTemperature = "temperature"
	MetricHumidity    = "humidity"
)

// Point is a single telemetry observation. Nil metric pointers mean the
// sensor did not report that metric.
type Point struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Geolocation string    `json:"geolocation,omitempty"`
}

// Value returns the point's value for the named metric. ok is false when the
// metric is absent, not a finite number, or the metric name is unknown.
func (p Point) Value(metric string) (float64, bool) {
	var v *float64
	switch metric {
	case MetricTemperature:
		v = p.Temperature
	case MetricHumidity:
		v = p.Humidity
	default:
		return 0, false
	}
	if v == nil {
		return 0, false
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

// Valid reports whether the point carries a usable timestamp.
func (p Point) Valid() bool {
	return !p.Timestamp.IsZero()
}

// MetricRank orders metrics deterministically for result merging.
func MetricRank(metric string) int {
	switch metric {
	case MetricTemperature:
		return 0
	case MetricHumidity:
		return 1
	default:
		return 2
	}
}

// Metrics lists the metric names the evaluators know about, in rank order.
func Metrics() []string {
	return []string{MetricTemperature, MetricHumidity}
}

// Float returns a pointer to v, for building points in callers and tests.
func Float(v float64) *float64 {
	return &v
}
