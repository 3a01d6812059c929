package sla

import (
	"errors"
	"strings"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/compliance"
)

// Standard cold-chain band: 2-8 degrees Celsius, 30-70 percent RH.
const (
	DefaultTempMin     = 2.0
	DefaultTempMax     = 8.0
	DefaultHumidityMin = 30.0
	DefaultHumidityMax = 70.0
)

// DefaultName identifies the config seeded when the table is empty.
const DefaultName = "default"

var (
	// ErrEmptyName indicates a config without a name.
	ErrEmptyName = errors.New("sla: empty config name")
	// ErrInvalidRange indicates a band whose min exceeds its max.
	ErrInvalidRange = errors.New("sla: min must not exceed max")
)

// Config is a named threshold band for compliance evaluation.
type Config struct {
	Name        string    `json:"name"`
	TempMin     float64   `json:"temp_min"`
	TempMax     float64   `json:"temp_max"`
	HumidityMin float64   `json:"humidity_min"`
	HumidityMax float64   `json:"humidity_max"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Default returns the standard cold-chain config under the given name.
func Default(name string) Config {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	return Config{
		Name:        name,
		TempMin:     DefaultTempMin,
		TempMax:     DefaultTempMax,
		HumidityMin: DefaultHumidityMin,
		HumidityMax: DefaultHumidityMax,
	}
}

// Validate checks the config invariants.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.TempMin > c.TempMax || c.HumidityMin > c.HumidityMax {
		return ErrInvalidRange
	}
	return nil
}

// Band converts the config into the analytics threshold band.
func (c Config) Band() compliance.Band {
	return compliance.Band{
		TempMin:     c.TempMin,
		TempMax:     c.TempMax,
		HumidityMin: c.HumidityMin,
		HumidityMax: c.HumidityMax,
	}
}
