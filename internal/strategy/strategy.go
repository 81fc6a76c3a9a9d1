// Package strategy turns indicator columns into per-bar trading
// signals. The strategy set is closed: a request naming anything else
// fails with ErrUnknownStrategy before any computation happens.
package strategy

import (
	"errors"
	"fmt"
	"strings"

	"shadowtrade/internal/indicator"
	"shadowtrade/internal/market"
)

// Signal is the per-bar decision: -1 sell, 0 hold, 1 buy.
type Signal int8

const (
	Sell Signal = -1
	Hold Signal = 0
	Buy  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Kind names one of the supported strategies.
type Kind string

const (
	SMACrossover   Kind = "sma_crossover"
	RSIStrategy    Kind = "rsi_strategy"
	MACDStrategy   Kind = "macd_strategy"
	BollingerBands Kind = "bollinger_bands"
	MeanReversion  Kind = "mean_reversion"
	Momentum       Kind = "momentum"
)

// ErrUnknownStrategy is returned for any strategy name outside the
// supported set.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Kinds lists the supported strategies in a stable order.
func Kinds() []Kind {
	return []Kind{SMACrossover, RSIStrategy, MACDStrategy, BollingerBands, MeanReversion, Momentum}
}

// ParseKind normalizes and validates a strategy name.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	switch k {
	case SMACrossover, RSIStrategy, MACDStrategy, BollingerBands, MeanReversion, Momentum:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Params is a flat parameter bundle. Missing keys fall back to the
// per-strategy defaults.
type Params map[string]float64

func (p Params) value(key string, def float64) float64 {
	if p == nil {
		return def
	}
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

func (p Params) period(key string, def int) int {
	v := int(p.value(key, float64(def)))
	if v < 1 {
		return def
	}
	return v
}

// Defaults returns the default parameter bundle for a strategy.
func Defaults(kind Kind) Params {
	switch kind {
	case SMACrossover:
		return Params{"short_period": 20, "long_period": 50}
	case RSIStrategy:
		return Params{"period": 14, "oversold": 30, "overbought": 70}
	case MACDStrategy:
		return Params{"fast": 12, "slow": 26, "signal": 9}
	case BollingerBands:
		return Params{"period": 20, "k": 2, "band_pct": 0.1}
	case MeanReversion:
		return Params{"period": 20, "deviation": 0.05}
	case Momentum:
		return Params{"period": 10, "threshold": 0.02}
	}
	return Params{}
}

// Signals produces one signal per candle. Undefined indicator values
// (warm-up NaN) always yield Hold. A series shorter than the longest
// lookback the strategy needs is market.ErrNoData, never an all-hold
// result.
func Signals(candles []market.Candle, kind Kind, params Params) ([]Signal, error) {
	if err := market.ValidateSeries(candles); err != nil {
		return nil, err
	}
	if need := minBars(kind, params); need > 0 && len(candles) < need {
		return nil, market.NoDataErrorf("%d bars of history, %s needs at least %d", len(candles), kind, need)
	}
	closes := market.Closes(candles)
	switch kind {
	case SMACrossover:
		short := indicator.SMA(closes, params.period("short_period", 20))
		long := indicator.SMA(closes, params.period("long_period", 50))
		return crossover(diff(short, long)), nil
	case RSIStrategy:
		rsi := indicator.RSI(closes, params.period("period", 14))
		return threshold(rsi, params.value("oversold", 30), params.value("overbought", 70), below), nil
	case MACDStrategy:
		line, sig, _ := indicator.MACD(closes,
			params.period("fast", 12), params.period("slow", 26), params.period("signal", 9))
		return crossover(diff(line, sig)), nil
	case BollingerBands:
		return bollingerSignals(closes, params), nil
	case MeanReversion:
		return meanReversionSignals(closes, params), nil
	case Momentum:
		mom := indicator.Momentum(closes, params.period("period", 10))
		t := params.value("threshold", 0.02)
		return threshold(mom, t, -t, above), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
}

// minBars is the shortest history that can produce a defined signal.
// Rolling windows need their full period, plus one bar where the
// signal compares against the previous bar (SMA crossover) or where
// the first delta consumes a bar (RSI, momentum). MACD's EMAs are
// seeded by the first value, so the slow span is the floor there.
func minBars(kind Kind, params Params) int {
	switch kind {
	case SMACrossover:
		short := params.period("short_period", 20)
		long := params.period("long_period", 50)
		if short > long {
			long = short
		}
		return long + 1
	case RSIStrategy:
		return params.period("period", 14) + 1
	case MACDStrategy:
		fast := params.period("fast", 12)
		slow := params.period("slow", 26)
		if fast > slow {
			slow = fast
		}
		return slow
	case BollingerBands:
		return params.period("period", 20)
	case MeanReversion:
		return params.period("period", 20)
	case Momentum:
		return params.period("period", 10) + 1
	}
	return 0
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// crossover fires only on a strict sign change of the difference
// series: previous bar ≤ 0 and current > 0 is a buy, the mirror is a
// sell. A persisting condition never repeats the signal.
func crossover(d []float64) []Signal {
	out := make([]Signal, len(d))
	for i := 1; i < len(d); i++ {
		if !indicator.Defined(d[i]) || !indicator.Defined(d[i-1]) {
			continue
		}
		switch {
		case d[i-1] <= 0 && d[i] > 0:
			out[i] = Buy
		case d[i-1] >= 0 && d[i] < 0:
			out[i] = Sell
		}
	}
	return out
}

type direction int

const (
	below direction = iota // buy when value < buyLevel (oscillator style)
	above                  // buy when value > buyLevel (momentum style)
)

func threshold(values []float64, buyLevel, sellLevel float64, dir direction) []Signal {
	out := make([]Signal, len(values))
	for i, v := range values {
		if !indicator.Defined(v) {
			continue
		}
		switch dir {
		case below:
			if v < buyLevel {
				out[i] = Buy
			} else if v > sellLevel {
				out[i] = Sell
			}
		case above:
			if v > buyLevel {
				out[i] = Buy
			} else if v < sellLevel {
				out[i] = Sell
			}
		}
	}
	return out
}

func bollingerSignals(closes []float64, params Params) []Signal {
	period := params.period("period", 20)
	k := params.value("k", 2)
	pct := params.value("band_pct", 0.1)
	upper, _, lower := indicator.Bollinger(closes, period, k)
	out := make([]Signal, len(closes))
	for i := range closes {
		if !indicator.Defined(upper[i]) || !indicator.Defined(lower[i]) {
			continue
		}
		width := upper[i] - lower[i]
		if width <= 0 {
			continue
		}
		pos := (closes[i] - lower[i]) / width
		if pos <= pct {
			out[i] = Buy
		} else if pos >= 1-pct {
			out[i] = Sell
		}
	}
	return out
}

func meanReversionSignals(closes []float64, params Params) []Signal {
	period := params.period("period", 20)
	deviation := params.value("deviation", 0.05)
	mean := indicator.SMA(closes, period)
	out := make([]Signal, len(closes))
	for i := range closes {
		if !indicator.Defined(mean[i]) || mean[i] == 0 {
			continue
		}
		dev := (closes[i] - mean[i]) / mean[i]
		if dev < -deviation {
			out[i] = Buy
		} else if dev > deviation {
			out[i] = Sell
		}
	}
	return out
}
