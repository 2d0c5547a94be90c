// Package forecast projects a short trend from recent readings.
package forecast

import "math"

// Fit is a least-squares line y = Slope*x + Intercept.
type Fit struct {
	Slope     float64
	Intercept float64
}

// LinearRegression fits y against x. ok is false when fewer than two points
// are given or all x are equal.
func LinearRegression(x, y []float64) (fit Fit, ok bool) {
	n := len(y)
	if len(x) < n {
		n = len(x)
	}
	if n < 2 {
		return Fit{}, false
	}
	var sumX, sumY, sumXY, sumXX float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumXX += x[i] * x[i]
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 || math.IsNaN(denom) {
		return Fit{}, false
	}
	slope := (nf*sumXY - sumX*sumY) / denom
	return Fit{Slope: slope, Intercept: (sumY - slope*sumX) / nf}, true
}

// Linear fits values against their index and returns the next steps points.
func Linear(values []float64, steps int) []float64 {
	if steps <= 0 {
		return nil
	}
	x := make([]float64, len(values))
	for i := range x {
		x[i] = float64(i)
	}
	fit, ok := LinearRegression(x, values)
	if !ok {
		return nil
	}
	out := make([]float64, steps)
	for i := 0; i < steps; i++ {
		out[i] = fit.Slope*float64(len(values)+i) + fit.Intercept
	}
	return out
}
