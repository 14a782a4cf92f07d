// Package signals provides rolling technical indicator calculations.
//
// Every function takes a series in ascending date order and returns a series
// of the same length. Positions without a full window are NaN, and a window
// touching a NaN input yields NaN, so callers can drop incomplete rows with
// CompleteRows.
package signals

import (
	"math"
)

// PctChange returns x[i]/x[i-periods] - 1.
func PctChange(x []float64, periods int) []float64 {
	out := nanSeries(len(x))
	if periods <= 0 {
		return out
	}
	for i := periods; i < len(x); i++ {
		prev := x[i-periods]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(x[i]) {
			continue
		}
		out[i] = x[i]/prev - 1
	}
	return out
}

// Diff returns x[i] - x[i-1]; the first element is NaN.
func Diff(x []float64) []float64 {
	out := nanSeries(len(x))
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - x[i-1]
	}
	return out
}

// RollingMean is the simple moving average over window.
func RollingMean(x []float64, window int) []float64 {
	out := nanSeries(len(x))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(x); i++ {
		sum := 0.0
		ok := true
		for _, v := range x[i-window+1 : i+1] {
			if math.IsNaN(v) {
				ok = false
				break
			}
			sum += v
		}
		if ok {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// SMA is RollingMean over closing prices.
func SMA(closes []float64, period int) []float64 {
	return RollingMean(closes, period)
}

// RollingStd is the sample standard deviation (n-1) over window.
func RollingStd(x []float64, window int) []float64 {
	out := nanSeries(len(x))
	if window < 2 {
		return out
	}
	mean := RollingMean(x, window)
	for i := window - 1; i < len(x); i++ {
		if math.IsNaN(mean[i]) {
			continue
		}
		ss := 0.0
		for _, v := range x[i-window+1 : i+1] {
			d := v - mean[i]
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// RSI is the Relative Strength Index using simple rolling averages of gains
// and losses: 100 - 100/(1+RS). A window with no losses is 100; a flat window
// is undefined (NaN).
func RSI(closes []float64, period int) []float64 {
	delta := Diff(closes)
	gains := make([]float64, len(delta))
	losses := make([]float64, len(delta))
	for i, d := range delta {
		switch {
		case math.IsNaN(d):
			gains[i], losses[i] = d, d
		case d > 0:
			gains[i] = d
		case d < 0:
			losses[i] = -d
		}
	}

	avgGain := RollingMean(gains, period)
	avgLoss := RollingMean(losses, period)

	out := nanSeries(len(closes))
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		if l == 0 {
			if g > 0 {
				out[i] = 100
			}
			continue
		}
		out[i] = 100 - 100/(1+g/l)
	}
	return out
}

// CompleteRows returns the indices at which every column is non-NaN.
// Columns must share one length.
func CompleteRows(columns ...[]float64) []int {
	if len(columns) == 0 {
		return nil
	}
	n := len(columns[0])
	rows := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ok := true
		for _, col := range columns {
			if math.IsNaN(col[i]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
