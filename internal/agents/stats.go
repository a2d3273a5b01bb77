// internal/agents/stats.go
package agents

import "math"

// mean returns the arithmetic mean of values, or 0 for an empty slice.
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

// stddev returns the population standard deviation of values.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// linearSlope fits a least-squares line value = slope*x + intercept and
// returns the slope. Returns 0 when the x values are degenerate.
func linearSlope(xs, ys []float64) float64 {
	n := float64(len(xs))
	if n < 2 || len(xs) != len(ys) {
		return 0
	}
	mx, my := mean(xs), mean(ys)
	var num, den float64
	for i := range xs {
		num += (xs[i] - mx) * (ys[i] - my)
		den += (xs[i] - mx) * (xs[i] - mx)
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// zScore returns |x-mean|/std. A value that deviates from a zero-spread
// baseline is infinitely many deviations out, so it scores +Inf; a value
// equal to the mean scores 0.
func zScore(x, m, sd float64) float64 {
	if sd == 0 {
		if x == m {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(x-m) / sd
}
