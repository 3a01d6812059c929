package anomaly

import "math"

// zScoreStrategy flags values lying more than threshold standard deviations
// from the window mean. A constant window (stddev 0) never flags, which also
// keeps the division safe.
type zScoreStrategy struct {
	threshold float64
}

func (s zScoreStrategy) score(window []float64, value float64) (float64, bool) {
	mean, stddev := meanStddev(window)
	if stddev == 0 {
		return 0, false
	}
	z := (value - mean) / stddev
	return z, math.Abs(z) > s.threshold
}

// meanStddev returns the arithmetic mean and population standard deviation.
func meanStddev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	m := mean(values)
	var squares float64
	for _, v := range values {
		d := v - m
		squares += d * d
	}
	return m, math.Sqrt(squares / float64(len(values)))
}
