package anomaly

import "math"

// movingAverageStrategy flags values whose absolute deviation from the
// window mean exceeds the threshold, taken in the metric's native unit. It
// is cheaper than the other strategies and not scale-normalized.
type movingAverageStrategy struct {
	threshold float64
}

func (s movingAverageStrategy) score(window []float64, value float64) (float64, bool) {
	deviation := value - mean(window)
	return deviation, math.Abs(deviation) > s.threshold
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
