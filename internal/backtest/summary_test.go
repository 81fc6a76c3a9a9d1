package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func curveOf(values ...float64) []EquityPoint {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]EquityPoint, len(values))
	for i, v := range values {
		out[i] = EquityPoint{Date: start.AddDate(0, 0, i), Equity: v}
	}
	return out
}

func TestSummarizeTotalReturn(t *testing.T) {
	stats := Summarize(nil, curveOf(1000, 1100, 1200), 1000)
	assert.InDelta(t, 0.2, stats.TotalReturn, 1e-9)
	assert.InDelta(t, 1200, stats.FinalEquity, 1e-9)
}

func TestMaxDrawdownNegativeFraction(t *testing.T) {
	stats := Summarize(nil, curveOf(100, 120, 90, 110, 80), 100)
	// worst dip: 80 against the 120 peak
	assert.InDelta(t, (80.0-120.0)/120.0, stats.MaxDrawdown, 1e-9)
	assert.LessOrEqual(t, stats.MaxDrawdown, 0.0)
}

func TestMaxDrawdownZeroWhenMonotonic(t *testing.T) {
	stats := Summarize(nil, curveOf(100, 110, 120, 130), 100)
	assert.Equal(t, 0.0, stats.MaxDrawdown)
}

func TestSharpeZeroOnFlatCurve(t *testing.T) {
	stats := Summarize(nil, curveOf(100, 100, 100), 100)
	assert.Equal(t, 0.0, stats.SharpeRatio)
}

func TestSharpeZeroOnShortCurve(t *testing.T) {
	stats := Summarize(nil, curveOf(100), 100)
	assert.Equal(t, 0.0, stats.SharpeRatio)
}

func TestSharpePositiveOnUptrend(t *testing.T) {
	stats := Summarize(nil, curveOf(100, 102, 103, 106, 107, 111, 112), 100)
	assert.Greater(t, stats.SharpeRatio, 0.0)
}

func TestTradeStatsCountSellsOnly(t *testing.T) {
	now := time.Now()
	trades := []Trade{
		{Date: now, Side: SideBuy, Price: 10, Quantity: 5},
		{Date: now, Side: SideSell, Price: 12, Quantity: 5, PnL: 10},
		{Date: now, Side: SideBuy, Price: 11, Quantity: 5},
		{Date: now, Side: SideSell, Price: 9, Quantity: 5, PnL: -10},
		{Date: now, Side: SideBuy, Price: 8, Quantity: 5},
		{Date: now, Side: SideSell, Price: 12, Quantity: 5, PnL: 20},
	}
	stats := Summarize(trades, curveOf(100, 110, 100, 120), 100)
	assert.Equal(t, 3, stats.TotalTrades)
	assert.InDelta(t, 2.0/3, stats.WinRate, 1e-9)
	assert.InDelta(t, 15.0, stats.AvgWin, 1e-9)
	assert.InDelta(t, -10.0, stats.AvgLoss, 1e-9)
}

func TestTradeStatsFlatRoundTripIsNeitherWinNorLoss(t *testing.T) {
	now := time.Now()
	trades := []Trade{
		{Date: now, Side: SideBuy, Price: 10, Quantity: 5},
		{Date: now, Side: SideSell, Price: 10, Quantity: 5, PnL: 0},
		{Date: now, Side: SideBuy, Price: 10, Quantity: 5},
		{Date: now, Side: SideSell, Price: 12, Quantity: 5, PnL: 10},
	}
	stats := Summarize(trades, curveOf(100, 100, 110), 100)
	assert.Equal(t, 2, stats.TotalTrades)
	assert.InDelta(t, 0.5, stats.WinRate, 1e-9)
	assert.InDelta(t, 10.0, stats.AvgWin, 1e-9)
	assert.Equal(t, 0.0, stats.AvgLoss, "a break-even exit must not drag the loss average")
}

func TestTradeStatsEmpty(t *testing.T) {
	stats := Summarize(nil, curveOf(100, 100), 100)
	assert.Equal(t, 0, stats.TotalTrades)
	assert.Equal(t, 0.0, stats.WinRate)
	assert.Equal(t, 0.0, stats.AvgWin)
	assert.Equal(t, 0.0, stats.AvgLoss)
}
