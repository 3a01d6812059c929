package anomaly

import (
	"math"
	"sort"
)

// iqrStrategy flags values outside [Q1 - k*IQR, Q3 + k*IQR]. When the window
// IQR is zero the bounds collapse to [Q1, Q3], so any value away from a flat
// series is still caught.
type iqrStrategy struct {
	multiplier float64
}

func (s iqrStrategy) score(window []float64, value float64) (float64, bool) {
	q1, q3 := quartiles(window)
	iqr := q3 - q1
	lower := q1 - s.multiplier*iqr
	upper := q3 + s.multiplier*iqr

	if value < lower {
		return boundDistance(value, lower, iqr), true
	}
	if value > upper {
		return boundDistance(value, upper, iqr), true
	}
	return 0, false
}

// boundDistance is the signed distance from the violated bound, expressed in
// IQR widths when the IQR is nonzero and raw units otherwise.
func boundDistance(value, bound, iqr float64) float64 {
	distance := value - bound
	if iqr == 0 {
		return distance
	}
	return distance / iqr
}

// quartiles computes Q1 and Q3 with linear interpolation on a sorted copy of
// the window.
func quartiles(values []float64) (float64, float64) {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return percentile(sorted, 0.25), percentile(sorted, 0.75)
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
