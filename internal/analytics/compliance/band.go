// Package compliance evaluates telemetry series against SLA threshold bands.
package compliance

import (
	"errors"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/series"
)

// ErrInvalidBand reports a band whose minimum exceeds its maximum.
var ErrInvalidBand = errors.New("compliance: band min exceeds max")

// Band is the acceptable range per metric. Bounds are inclusive.
type Band struct {
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	HumidityMin float64 `json:"humidity_min"`
	HumidityMax float64 `json:"humidity_max"`
}

// NewBand constructs a validated threshold band.
func NewBand(tempMin, tempMax, humidityMin, humidityMax float64) (Band, error) {
	band := Band{
		TempMin:     tempMin,
		TempMax:     tempMax,
		HumidityMin: humidityMin,
		HumidityMax: humidityMax,
	}
	if err := band.Validate(); err != nil {
		return Band{}, err
	}
	return band, nil
}

// Validate checks that each metric range is well formed.
func (b Band) Validate() error {
	if b.TempMin > b.TempMax {
		return ErrInvalidBand
	}
	if b.HumidityMin > b.HumidityMax {
		return ErrInvalidBand
	}
	return nil
}

// Range returns the inclusive bounds for the named metric.
func (b Band) Range(metric string) (min, max float64, ok bool) {
	switch metric {
	case series.MetricTemperature:
		return b.TempMin, b.TempMax, true
	case series.MetricHumidity:
		return b.HumidityMin, b.HumidityMax, true
	default:
		return 0, 0, false
	}
}
