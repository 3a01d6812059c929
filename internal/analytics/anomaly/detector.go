package anomaly

import (
	"sort"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/series"
)

// Result is one detected anomaly for a (point, metric) pair. Score semantics
// depend on the algorithm: the z-value for ZScore, the signed distance from
// the nearest bound in IQR widths for IQR, and the raw deviation from the
// window mean for MovingAverage. Scores are comparable within one algorithm
// only.
type Result struct {
	Timestamp time.Time `json:"timestamp"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Algorithm Algorithm `json:"algorithm"`
	Score     float64   `json:"score"`
}

// strategy scores a value against its trailing window. Implementations must
// not mutate the window slice.
type strategy interface {
	score(window []float64, value float64) (float64, bool)
}

// Detector runs one configured algorithm over telemetry series. It holds no
// state between calls; the same detector may serve concurrent callers.
type Detector struct {
	cfg      Config
	strategy strategy
}

// NewDetector resolves the configured strategy up front so configuration
// problems surface before any point is processed.
func NewDetector(cfg Config) (*Detector, error) {
	normalized, err := NewConfig(cfg.Algorithm, cfg.WindowSize, cfg.Threshold)
	if err != nil {
		return nil, err
	}

	var s strategy
	switch normalized.Algorithm {
	case ZScore:
		s = zScoreStrategy{threshold: normalized.Threshold}
	case IQR:
		s = iqrStrategy{multiplier: normalized.Threshold}
	case MovingAverage:
		s = movingAverageStrategy{threshold: normalized.Threshold}
	}
	return &Detector{cfg: normalized, strategy: s}, nil
}

// Config returns the normalized configuration the detector runs with.
func (d *Detector) Config() Config {
	if d == nil {
		return Config{}
	}
	return d.cfg
}

// Detect classifies every eligible point for each requested metric. A point
// becomes eligible once WindowSize values with earlier timestamps exist for
// the metric; the window trails the point and never includes it. Points
// without a usable timestamp or metric value are skipped. Results are merged
// across metrics ordered by timestamp, ties broken temperature before
// humidity, so repeated calls return identical output.
func (d *Detector) Detect(points []series.Point, metrics []string) []Result {
	results := []Result{}
	if d == nil || d.strategy == nil || len(points) == 0 {
		return results
	}
	if len(metrics) == 0 {
		metrics = []string{series.MetricTemperature}
	}

	for _, metric := range metrics {
		results = append(results, d.detectMetric(points, metric)...)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if !results[i].Timestamp.Equal(results[j].Timestamp) {
			return results[i].Timestamp.Before(results[j].Timestamp)
		}
		return series.MetricRank(results[i].Metric) < series.MetricRank(results[j].Metric)
	})
	return results
}

type observation struct {
	at    time.Time
	value float64
}

func (d *Detector) detectMetric(points []series.Point, metric string) []Result {
	observations := make([]observation, 0, len(points))
	for _, point := range points {
		if !point.Valid() {
			continue
		}
		value, ok := point.Value(metric)
		if !ok {
			continue
		}
		observations = append(observations, observation{at: point.Timestamp, value: value})
	}
	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].at.Before(observations[j].at)
	})

	values := make([]float64, len(observations))
	for i, obs := range observations {
		values[i] = obs.value
	}

	var results []Result
	for i := d.cfg.WindowSize; i < len(observations); i++ {
		window := values[i-d.cfg.WindowSize : i]
		score, flagged := d.strategy.score(window, observations[i].value)
		if !flagged {
			continue
		}
		results = append(results, Result{
			Timestamp: observations[i].at,
			Metric:    metric,
			Value:     observations[i].value,
			Algorithm: d.cfg.Algorithm,
			Score:     score,
		})
	}
	return results
}
