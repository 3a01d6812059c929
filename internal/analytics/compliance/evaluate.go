package compliance

import (
	"math"
	"time"

	"github.com/HendrickFS/bio-supply-twin/internal/analytics/series"
)

// Excursion is a single out-of-band observation for one metric.
type Excursion struct {
	Timestamp time.Time  `json:"timestamp"`
	Metric    string     `json:"metric"`
	Value     float64    `json:"value"`
	Band      [2]float64 `json:"band"`
}

// Result summarizes how a series performed against a band.
type Result struct {
	NumPoints  int         `json:"num_points"`
	InRangePct float64     `json:"in_range_pct"`
	Excursions []Excursion `json:"excursions"`
}

// Evaluate checks every point against the band. A point counts as in range
// only when each present metric sits inside its inclusive bounds; absent
// metrics never disqualify a point. An empty series is vacuously compliant.
func Evaluate(points []series.Point, band Band) Result {
	result := Result{
		InRangePct: 100.0,
		Excursions: []Excursion{},
	}
	if len(points) == 0 {
		return result
	}

	inRange := 0
	for _, point := range points {
		pass := true
		for _, metric := range series.Metrics() {
			value, present := point.Value(metric)
			if !present {
				continue
			}
			min, max, _ := band.Range(metric)
			if value < min || value > max {
				pass = false
				result.Excursions = append(result.Excursions, Excursion{
					Timestamp: point.Timestamp,
					Metric:    metric,
					Value:     value,
					Band:      [2]float64{min, max},
				})
			}
		}
		if pass {
			inRange++
		}
	}

	result.NumPoints = len(points)
	result.InRangePct = round2(100 * float64(inRange) / float64(len(points)))
	return result
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
