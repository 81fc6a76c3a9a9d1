package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowtrade/internal/market"
	"shadowtrade/internal/strategy"
)

func dailyCandles(closes []float64) []market.Candle {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		day := start.AddDate(0, 0, i)
		out[i] = market.Candle{
			OpenTime:  day.UnixMilli(),
			CloseTime: day.Add(24*time.Hour - time.Millisecond).UnixMilli(),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    5000,
		}
	}
	return out
}

func TestSimulateBuyThenSell(t *testing.T) {
	candles := dailyCandles([]float64{10, 10, 12, 12})
	signals := []strategy.Signal{strategy.Hold, strategy.Buy, strategy.Hold, strategy.Sell}
	fills := Simulate(candles, signals, 100)

	require.Len(t, fills.Trades, 2)
	buy, sell := fills.Trades[0], fills.Trades[1]
	assert.Equal(t, SideBuy, buy.Side)
	assert.Equal(t, int64(10), buy.Quantity)
	assert.Equal(t, 10.0, buy.Price)
	assert.Equal(t, SideSell, sell.Side)
	assert.Equal(t, int64(10), sell.Quantity)
	assert.InDelta(t, 20.0, sell.PnL, 1e-9) // (12-10)*10

	assert.Equal(t, int64(0), fills.FinalShares)
	assert.InDelta(t, 120.0, fills.FinalCash, 1e-9)
	require.Len(t, fills.EquityCurve, 4)
	assert.InDelta(t, 100.0, fills.EquityCurve[0].Equity, 1e-9)
	assert.InDelta(t, 100.0, fills.EquityCurve[1].Equity, 1e-9)
	assert.InDelta(t, 120.0, fills.EquityCurve[2].Equity, 1e-9) // marked to market while long
	assert.InDelta(t, 120.0, fills.EquityCurve[3].Equity, 1e-9)

	// Each point carries the full account snapshot and balances.
	assert.Equal(t, int64(10), fills.EquityCurve[1].Shares)
	assert.InDelta(t, 0.0, fills.EquityCurve[1].Cash, 1e-9)
	assert.InDelta(t, 12.0, fills.EquityCurve[2].Mark, 1e-9)
	for i, p := range fills.EquityCurve {
		assert.InDelta(t, p.Equity, p.Cash+float64(p.Shares)*p.Mark, 1e-9, "point %d", i)
	}
}

func TestSimulateInsufficientFundsIsSilentSkip(t *testing.T) {
	candles := dailyCandles([]float64{1000.01, 1000.01, 1000.01})
	signals := []strategy.Signal{strategy.Hold, strategy.Buy, strategy.Hold}
	fills := Simulate(candles, signals, 1000)

	assert.Empty(t, fills.Trades)
	assert.Equal(t, int64(0), fills.FinalShares)
	assert.Equal(t, 1000.0, fills.FinalCash)
	for _, p := range fills.EquityCurve {
		assert.Equal(t, 1000.0, p.Equity)
	}
}

func TestSimulateIgnoresRedundantSignals(t *testing.T) {
	candles := dailyCandles([]float64{10, 10, 10, 10, 10})
	signals := []strategy.Signal{strategy.Sell, strategy.Buy, strategy.Buy, strategy.Sell, strategy.Sell}
	fills := Simulate(candles, signals, 100)

	require.Len(t, fills.Trades, 2)
	assert.Equal(t, SideBuy, fills.Trades[0].Side)
	assert.Equal(t, SideSell, fills.Trades[1].Side)
}

func TestSimulateCashNeverNegative(t *testing.T) {
	closes := []float64{7.3, 9.1, 4.2, 11.7, 3.9, 8.8, 10.4, 6.1}
	candles := dailyCandles(closes)
	signals := []strategy.Signal{strategy.Buy, strategy.Sell, strategy.Buy, strategy.Sell, strategy.Buy, strategy.Sell, strategy.Buy, strategy.Sell}
	fills := Simulate(candles, signals, 50)

	cash := 50.0
	for _, tr := range fills.Trades {
		if tr.Side == SideBuy {
			cash -= float64(tr.Quantity) * tr.Price
		} else {
			cash += float64(tr.Quantity) * tr.Price
		}
		assert.GreaterOrEqual(t, cash, 0.0)
	}
	assert.InDelta(t, cash, fills.FinalCash, 1e-9)
}

func TestSimulateEquityPointPerBar(t *testing.T) {
	candles := dailyCandles([]float64{5, 6, 7})
	fills := Simulate(candles, nil, 100)
	assert.Len(t, fills.EquityCurve, 3)
	assert.Empty(t, fills.Trades)
}
