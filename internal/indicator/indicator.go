// Package indicator computes technical indicator columns over ordered
// price series. Every function returns a slice aligned 1:1 with its
// input; positions inside the warm-up window are NaN and stay NaN, so
// downstream signal logic can treat "undefined" uniformly.
package indicator

import "math"

var nan = math.NaN()

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = nan
	}
	return out
}

// Defined reports whether a value is usable (not NaN, not Inf).
func Defined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SMA is the arithmetic mean over a trailing window. The first period-1
// positions are NaN.
func SMA(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA is the recursively smoothed average with alpha = 2/(span+1),
// seeded with the first value. Defined from index 0.
func EMA(values []float64, span int) []float64 {
	out := nanSlice(len(values))
	if span <= 0 || len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema = alpha*values[i] + (1-alpha)*ema
		out[i] = ema
	}
	return out
}

// RSI uses the simple rolling mean of gains and losses over the window.
// When the average loss is zero RSI is 100. Undefined for the first
// `period` positions (one delta is consumed by the diff).
func RSI(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}
	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	gainSum, lossSum := 0.0, 0.0
	for i := 1; i < len(values); i++ {
		gainSum += gains[i]
		lossSum += losses[i]
		if i > period {
			gainSum -= gains[i-period]
			lossSum -= losses[i-period]
		}
		if i >= period {
			avgGain := gainSum / float64(period)
			avgLoss := lossSum / float64(period)
			if avgLoss == 0 {
				out[i] = 100
				continue
			}
			rs := avgGain / avgLoss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// MACD returns the MACD line (fast EMA - slow EMA), its signal line and
// the histogram. All three are defined from index 0 because the EMAs
// are first-value seeded; crossover logic is meaningful only once the
// slow span has been reached.
func MACD(values []float64, fast, slow, signal int) (line, sig, hist []float64) {
	emaFast := EMA(values, fast)
	emaSlow := EMA(values, slow)
	line = make([]float64, len(values))
	for i := range values {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig = EMA(line, signal)
	hist = make([]float64, len(values))
	for i := range values {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// RollingStd is the trailing sample standard deviation (n-1 divisor).
// NaN for the first period-1 positions; period must be at least 2.
func RollingStd(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period < 2 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)
		ss := 0.0
		for _, v := range window {
			d := v - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(period-1))
	}
	return out
}

// Bollinger returns upper/middle/lower bands: SMA(period) ± k sigma.
func Bollinger(values []float64, period int, k float64) (upper, middle, lower []float64) {
	middle = SMA(values, period)
	sd := RollingStd(values, period)
	upper = make([]float64, len(values))
	lower = make([]float64, len(values))
	for i := range values {
		if !Defined(middle[i]) || !Defined(sd[i]) {
			upper[i], lower[i] = nan, nan
			continue
		}
		width := k * sd[i]
		upper[i] = middle[i] + width
		lower[i] = middle[i] - width
	}
	return upper, middle, lower
}

// Momentum is the fractional change against the value `period` bars
// back: v[i]/v[i-period] - 1. NaN for the first `period` positions.
func Momentum(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}
	for i := period; i < len(values); i++ {
		ref := values[i-period]
		if ref == 0 {
			continue
		}
		out[i] = values[i]/ref - 1
	}
	return out
}

// VolumeRatio divides each volume by the trailing mean volume.
func VolumeRatio(volumes []float64, period int) []float64 {
	out := nanSlice(len(volumes))
	mean := SMA(volumes, period)
	for i := range volumes {
		if !Defined(mean[i]) || mean[i] == 0 {
			continue
		}
		out[i] = volumes[i] / mean[i]
	}
	return out
}
