package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowtrade/internal/market"
	"shadowtrade/internal/strategy"
)

func TestNewEngineRejectsEmptySeries(t *testing.T) {
	_, err := NewEngine(nil, 10000)
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestNewEngineRejectsNonPositiveCapital(t *testing.T) {
	_, err := NewEngine(dailyCandles([]float64{1, 2, 3}), 0)
	assert.Error(t, err)
}

func TestRunUnknownStrategy(t *testing.T) {
	e, err := NewEngine(dailyCandles([]float64{1, 2, 3}), 10000)
	require.NoError(t, err)
	_, err = e.Run("grid_martingale", nil)
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
}

// Flat prices: no variation means no crossovers, no trades, and every
// headline metric pinned at zero.
func TestFlatSeriesProducesNothing(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 150
	}
	e, err := NewEngine(dailyCandles(closes), 10000)
	require.NoError(t, err)
	res, err := e.Run("sma_crossover", nil)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Equal(t, 0.0, res.TotalReturn)
	assert.Equal(t, 0.0, res.MaxDrawdown)
	assert.Equal(t, 0.0, res.SharpeRatio)
	assert.Equal(t, 10000.0, res.FinalEquity)
	assert.Len(t, res.EquityCurve, 80)
}

// Sixty daily bars rising 1%/day: momentum with the default 2%
// threshold must get long early and end profitable.
func TestMomentumRidesUptrend(t *testing.T) {
	closes := make([]float64, 60)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 1.01
	}
	e, err := NewEngine(dailyCandles(closes), 10000)
	require.NoError(t, err)
	res, err := e.Run("momentum", nil)
	require.NoError(t, err)

	require.NotEmpty(t, res.Trades)
	first := res.Trades[0]
	assert.Equal(t, SideBuy, first.Side)
	firstIdx := -1
	for i, p := range res.EquityCurve {
		if p.Date.Equal(first.Date) {
			firstIdx = i
			break
		}
	}
	require.GreaterOrEqual(t, firstIdx, 0)
	assert.Less(t, firstIdx, 20, "the first buy should land inside the first 20 bars")
	assert.Greater(t, res.FinalEquity, 10000.0)
	assert.Greater(t, res.TotalReturn, 0.0)
}

// Oscillation: a sustained decline drives RSI into oversold, a
// sustained recovery drives it overbought. Exactly one round trip with
// positive realized P&L.
func TestRSIRoundTrip(t *testing.T) {
	closes := make([]float64, 0, 60)
	price := 100.0
	for i := 0; i < 10; i++ { // settle the oscillator mid-range first
		if i%2 == 0 {
			price += 0.3
		} else {
			price -= 0.3
		}
		closes = append(closes, price)
	}
	for i := 0; i < 20; i++ {
		price -= 1.0
		closes = append(closes, price)
	}
	for i := 0; i < 30; i++ {
		price += 3.0
		closes = append(closes, price)
	}
	e, err := NewEngine(dailyCandles(closes), 10000)
	require.NoError(t, err)
	res, err := e.Run("rsi_strategy", nil)
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	buy, sell := res.Trades[0], res.Trades[1]
	assert.Equal(t, SideBuy, buy.Side)
	assert.Equal(t, SideSell, sell.Side)
	assert.True(t, sell.Date.After(buy.Date))
	assert.Greater(t, sell.PnL, 0.0, "sold into the recovery above the buy price")
	assert.Equal(t, 1, res.TotalTrades)
	assert.Equal(t, 1.0, res.WinRate)
}

func TestRunIsIdempotent(t *testing.T) {
	closes := make([]float64, 70)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 1 + 0.02*math.Sin(float64(i)/3)
	}
	e, err := NewEngine(dailyCandles(closes), 10000)
	require.NoError(t, err)

	first, err := e.Run("bollinger_bands", nil)
	require.NoError(t, err)
	// interleave a different strategy, then repeat
	_, err = e.Run("mean_reversion", nil)
	require.NoError(t, err)
	second, err := e.Run("bollinger_bands", nil)
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.EquityCurve, second.EquityCurve)
	assert.Equal(t, first.FinalCash, second.FinalCash)
	assert.Equal(t, first.TotalReturn, second.TotalReturn)
}

func TestTradesAlternateForEveryStrategy(t *testing.T) {
	closes := make([]float64, 120)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 1 + 0.03*math.Sin(float64(i)/5) + 0.001
	}
	candles := dailyCandles(closes)
	for _, kind := range strategy.Kinds() {
		e, err := NewEngine(candles, 10000)
		require.NoError(t, err)
		res, err := e.Run(string(kind), nil)
		require.NoError(t, err, string(kind))

		expect := SideBuy
		for i, tr := range res.Trades {
			assert.Equal(t, expect, tr.Side, "%s trade %d", kind, i)
			if expect == SideBuy {
				expect = SideSell
			} else {
				expect = SideBuy
			}
		}
		assert.Len(t, res.EquityCurve, len(candles), string(kind))
		assert.LessOrEqual(t, res.MaxDrawdown, 0.0, string(kind))
		assert.GreaterOrEqual(t, res.FinalCash, 0.0, string(kind))
	}
}

// Realized P&L plus the open position's unrealized gain fully explain
// the terminal equity, whether the run ends flat or long.
func TestRealizedPnLExplainsFinalEquity(t *testing.T) {
	closes := make([]float64, 100)
	price := 50.0
	for i := range closes {
		closes[i] = price
		price *= 1 + 0.04*math.Sin(float64(i)/4)
	}
	e, err := NewEngine(dailyCandles(closes), 10000)
	require.NoError(t, err)
	res, err := e.Run("mean_reversion", nil)
	require.NoError(t, err)

	pnlSum := 0.0
	for _, tr := range res.Trades {
		pnlSum += tr.PnL
	}
	last := res.EquityCurve[len(res.EquityCurve)-1]
	assert.Equal(t, res.FinalPosition, last.Shares)
	assert.InDelta(t, res.FinalCash, last.Cash, 1e-9)
	if res.FinalPosition == 0 {
		assert.InDelta(t, 10000+pnlSum, res.FinalCash, 1e-6)
		assert.InDelta(t, res.FinalCash, res.FinalEquity, 1e-6)
	} else {
		mark := float64(res.FinalPosition) * last.Mark
		assert.InDelta(t, res.FinalCash+mark, res.FinalEquity, 1e-6)
	}
}

// Every equity point must balance: cash plus the marked position is
// exactly the recorded equity, and cash never goes negative.
func TestEquityPointsConserveCash(t *testing.T) {
	closes := make([]float64, 120)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 1 + 0.03*math.Sin(float64(i)/5) + 0.001
	}
	candles := dailyCandles(closes)
	for _, kind := range strategy.Kinds() {
		e, err := NewEngine(candles, 10000)
		require.NoError(t, err)
		res, err := e.Run(string(kind), nil)
		require.NoError(t, err, string(kind))

		for i, p := range res.EquityCurve {
			assert.InDelta(t, p.Equity, p.Cash+float64(p.Shares)*p.Mark, 1e-9, "%s point %d", kind, i)
			assert.GreaterOrEqual(t, p.Cash, 0.0, "%s point %d", kind, i)
			assert.GreaterOrEqual(t, p.Shares, int64(0), "%s point %d", kind, i)
		}
	}
}

// A history shorter than the strategy's longest lookback is missing
// data, not a quietly empty backtest.
func TestRunShortHistoryIsNoData(t *testing.T) {
	e, err := NewEngine(dailyCandles([]float64{100, 101, 102, 103, 104}), 10000)
	require.NoError(t, err)
	_, err = e.Run("sma_crossover", nil)
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestParamsOverrideDefaults(t *testing.T) {
	closes := make([]float64, 40)
	price := 100.0
	for i := range closes {
		closes[i] = price
		price *= 1.005
	}
	e, err := NewEngine(dailyCandles(closes), 10000)
	require.NoError(t, err)

	// A 50% threshold can never trigger on a 0.5%/day drift.
	res, err := e.Run("momentum", strategy.Params{"threshold": 0.5})
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 0.5, res.Params["threshold"])
	assert.Equal(t, 10.0, res.Params["period"], "default still present")
}
