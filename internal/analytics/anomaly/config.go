// Package anomaly flags telemetry values that deviate from their recent
// local history, independent of any fixed threshold band.
package anomaly

import (
	"errors"
	"fmt"
	"strings"
)

// Algorithm selects the scoring strategy.
type Algorithm string

// Supported algorithms.
const (
	ZScore        Algorithm = "z_score"
	IQR           Algorithm = "iqr"
	MovingAverage Algorithm = "moving_average"
)

// Defaults applied by NewConfig when a field is left zero.
const (
	DefaultAlgorithm              = ZScore
	DefaultWindowSize             = 10
	DefaultZScoreThreshold        = 3.0
	DefaultIQRMultiplier          = 1.5
	DefaultMovingAverageThreshold = 3.0
)

// Configuration errors, surfaced at construction time and never mid-series.
var (
	ErrUnknownAlgorithm = errors.New("anomaly: unknown algorithm")
	ErrWindowTooSmall   = errors.New("anomaly: window size must be at least 2")
	ErrInvalidThreshold = errors.New("anomaly: threshold must be positive")
)

// Config selects and tunes a detection algorithm. Zero fields mean "use the
// default"; construct through NewConfig so invalid values fail fast.
type Config struct {
	Algorithm  Algorithm `json:"algorithm"`
	WindowSize int       `json:"window_size"`
	Threshold  float64   `json:"threshold"`
}

// ParseAlgorithm maps a case-insensitive name onto an Algorithm. An empty
// name selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return DefaultAlgorithm, nil
	}
	switch Algorithm(trimmed) {
	case ZScore, IQR, MovingAverage:
		return Algorithm(trimmed), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// NewConfig builds a validated config. windowSize 0 selects
// DefaultWindowSize and threshold 0 selects the algorithm default; negative
// thresholds and windows below 2 are configuration errors.
func NewConfig(algorithm Algorithm, windowSize int, threshold float64) (Config, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	fallback, ok := defaultThreshold(algorithm)
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	if windowSize == 0 {
		windowSize = DefaultWindowSize
	}
	if windowSize < 2 {
		return Config{}, ErrWindowTooSmall
	}
	if threshold == 0 {
		threshold = fallback
	}
	if threshold < 0 {
		return Config{}, ErrInvalidThreshold
	}
	return Config{
		Algorithm:  algorithm,
		WindowSize: windowSize,
		Threshold:  threshold,
	}, nil
}

func defaultThreshold(algorithm Algorithm) (float64, bool) {
	switch algorithm {
	case ZScore:
		return DefaultZScoreThreshold, true
	case IQR:
		return DefaultIQRMultiplier, true
	case MovingAverage:
		return DefaultMovingAverageThreshold, true
	default:
		return 0, false
	}
}
