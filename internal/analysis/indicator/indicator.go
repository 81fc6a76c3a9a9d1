// Package indicator produces analyst-facing snapshot reports on top of
// TA-Lib: latest values, sanitized series and a coarse state label per
// indicator. The backtest engine has its own indicator math; this
// package only feeds the analysis API and the chart renderer.
package indicator

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"shadowtrade/internal/market"
)

// Settings selects the report inputs and per-indicator parameters.
type Settings struct {
	Symbol    string
	Timeframe string
	EMA       EMASettings
	RSI       RSISettings
}

// EMASettings holds the three EMA spans of the trend stack.
type EMASettings struct {
	Fast int `json:"fast,omitempty"`
	Mid  int `json:"mid,omitempty"`
	Slow int `json:"slow,omitempty"`
}

// RSISettings holds the RSI period and band levels.
type RSISettings struct {
	Period     int     `json:"period,omitempty"`
	Oversold   float64 `json:"oversold,omitempty"`
	Overbought float64 `json:"overbought,omitempty"`
}

// Value is one indicator's latest reading plus its plotted series.
type Value struct {
	Latest float64   `json:"latest"`
	Series []float64 `json:"series,omitempty"`
	State  string    `json:"state,omitempty"`
	Note   string    `json:"note,omitempty"`
}

// Report bundles every indicator for one symbol and timeframe.
type Report struct {
	Symbol      string           `json:"symbol"`
	Timeframe   string           `json:"timeframe"`
	Bars        int              `json:"bars"`
	GeneratedAt time.Time        `json:"generated_at"`
	Values      map[string]Value `json:"values"`
}

// Snapshot computes the full indicator set over the given candles.
func Snapshot(candles []market.Candle, cfg Settings) (Report, error) {
	rep := Report{
		Symbol:      cfg.Symbol,
		Timeframe:   cfg.Timeframe,
		Bars:        len(candles),
		GeneratedAt: time.Now().UTC(),
		Values:      make(map[string]Value),
	}
	if len(candles) == 0 {
		return rep, market.NoDataErrorf("analysis: no candles for %s@%s", cfg.Symbol, cfg.Timeframe)
	}

	closes := market.Closes(candles)
	volumes := market.Volumes(candles)
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}
	lastClose := closes[len(closes)-1]

	if cfg.EMA.Fast <= 0 {
		cfg.EMA.Fast = 21
	}
	if cfg.EMA.Mid <= 0 {
		cfg.EMA.Mid = 50
	}
	if cfg.EMA.Slow <= 0 {
		cfg.EMA.Slow = 200
	}
	for name, span := range map[string]int{
		"ema_fast": cfg.EMA.Fast,
		"ema_mid":  cfg.EMA.Mid,
		"ema_slow": cfg.EMA.Slow,
	} {
		series := trimLeadingZeros(sanitize(talib.Ema(closes, span)))
		rep.Values[name] = Value{
			Latest: lastValid(series),
			Series: series,
			State:  relativeState(lastClose, lastValid(series)),
			Note:   fmt.Sprintf("EMA%d vs price", span),
		}
	}

	if cfg.RSI.Period <= 0 {
		cfg.RSI.Period = 14
	}
	if cfg.RSI.Overbought == 0 {
		cfg.RSI.Overbought = 70
	}
	if cfg.RSI.Oversold == 0 {
		cfg.RSI.Oversold = 30
	}
	rsi := sanitize(talib.Rsi(closes, cfg.RSI.Period))
	rsiVal := lastValid(rsi)
	rsiState := "neutral"
	switch {
	case rsiVal >= cfg.RSI.Overbought:
		rsiState = "overbought"
	case rsiVal <= cfg.RSI.Oversold:
		rsiState = "oversold"
	}
	rep.Values["rsi"] = Value{
		Latest: rsiVal,
		Series: rsi,
		State:  rsiState,
		Note:   fmt.Sprintf("period=%d bands=%.0f/%.0f", cfg.RSI.Period, cfg.RSI.Oversold, cfg.RSI.Overbought),
	}

	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	histSeries := sanitize(hist)
	macdState := "flat"
	switch {
	case lastValid(histSeries) > 0:
		macdState = "bullish"
	case lastValid(histSeries) < 0:
		macdState = "bearish"
	}
	rep.Values["macd"] = Value{
		Latest: lastValid(sanitize(macd)),
		Series: histSeries,
		State:  macdState,
		Note:   fmt.Sprintf("signal=%.4f hist=%.4f", lastValid(sanitize(signal)), lastValid(histSeries)),
	}

	roc := sanitize(talib.Roc(closes, 9))
	rep.Values["roc"] = Value{
		Latest: lastValid(roc),
		Series: roc,
		State:  polarityState(lastValid(roc)),
		Note:   "period=9",
	}

	k, d := talib.Stoch(highs, lows, closes, 14, 3, talib.SMA, 3, talib.SMA)
	kSeries := sanitize(k)
	rep.Values["stoch_k"] = Value{
		Latest: lastValid(kSeries),
		Series: kSeries,
		State:  stochState(lastValid(kSeries)),
		Note:   fmt.Sprintf("d=%.2f", lastValid(sanitize(d))),
	}

	atr := sanitize(talib.Atr(highs, lows, closes, 14))
	rep.Values["atr"] = Value{
		Latest: lastValid(atr),
		Series: atr,
		State:  "volatility",
		Note:   "period=14",
	}

	obv := sanitize(talib.Obv(closes, volumes))
	rep.Values["obv"] = Value{
		Latest: lastValid(obv),
		Series: obv,
		State:  polarityState(lastValid(roc)),
		Note:   "volume thrust",
	}

	return rep, nil
}

// ATRSeries computes the ATR column alone, used by the risk sizing
// endpoint without paying for the full snapshot.
func ATRSeries(candles []market.Candle, period int) ([]float64, error) {
	if len(candles) == 0 {
		return nil, market.NoDataErrorf("analysis: no candles for atr")
	}
	if period <= 0 {
		period = 14
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}
	series := trimLeadingZeros(sanitize(talib.Atr(highs, lows, market.Closes(candles), period)))
	if len(series) == 0 {
		return nil, fmt.Errorf("analysis: atr needs more than %d candles", period)
	}
	return series, nil
}

func sanitize(src []float64) []float64 {
	out := make([]float64, 0, len(src))
	for _, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, round4(v))
	}
	return out
}

// trimLeadingZeros drops TA-Lib's zero-seeded EMA warm-up so plots
// start where enough candles exist.
func trimLeadingZeros(series []float64) []float64 {
	start := 0
	for start < len(series) && math.Abs(series[start]) <= 1e-9 {
		start++
	}
	return series[start:]
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	if ref == 0 {
		return "unknown"
	}
	switch {
	case price > ref*1.002:
		return "above"
	case price < ref*0.998:
		return "below"
	default:
		return "touch"
	}
}

func polarityState(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "flat"
	}
}

func stochState(v float64) string {
	switch {
	case v >= 80:
		return "overbought"
	case v <= 20:
		return "oversold"
	default:
		return "neutral"
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
