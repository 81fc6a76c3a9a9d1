package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowtrade/internal/market"
)

func trendCandles(start, dailyPct float64, n int) []market.Candle {
	const dayMs = int64(24 * time.Hour / time.Millisecond)
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC).UnixMilli()
	out := make([]market.Candle, n)
	price := start
	for i := range out {
		open := base + int64(i)*dayMs
		out[i] = market.Candle{
			OpenTime:  open,
			CloseTime: open + dayMs - 1,
			Open:      price,
			High:      price * 1.015,
			Low:       price * 0.985,
			Close:     price,
			Volume:    5000,
			Trades:    42,
		}
		price *= 1 + dailyPct
	}
	return out
}

func TestSnapshotEmptyCandles(t *testing.T) {
	_, err := Snapshot(nil, Settings{Symbol: "AAPL", Timeframe: "1d"})
	assert.ErrorIs(t, err, market.ErrNoData)
}

func TestSnapshotUptrend(t *testing.T) {
	candles := trendCandles(100, 0.01, 250)
	rep, err := Snapshot(candles, Settings{Symbol: "AAPL", Timeframe: "1d"})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", rep.Symbol)
	assert.Equal(t, 250, rep.Bars)
	for _, key := range []string{"ema_fast", "ema_mid", "ema_slow", "rsi", "macd", "roc", "stoch_k", "atr", "obv"} {
		assert.Contains(t, rep.Values, key)
	}

	// Price leads every EMA in a steady uptrend.
	assert.Equal(t, "above", rep.Values["ema_fast"].State)
	assert.Equal(t, "above", rep.Values["ema_slow"].State)

	rsi := rep.Values["rsi"]
	assert.Equal(t, "overbought", rsi.State)
	assert.Greater(t, rsi.Latest, 70.0)

	assert.Equal(t, "bullish", rep.Values["macd"].State)
	assert.Equal(t, "positive", rep.Values["roc"].State)
	assert.Greater(t, rep.Values["atr"].Latest, 0.0)
}

func TestSnapshotDowntrendStates(t *testing.T) {
	candles := trendCandles(500, -0.01, 250)
	rep, err := Snapshot(candles, Settings{Symbol: "MSFT", Timeframe: "1d"})
	require.NoError(t, err)

	assert.Equal(t, "below", rep.Values["ema_fast"].State)
	assert.Equal(t, "oversold", rep.Values["rsi"].State)
	assert.Equal(t, "bearish", rep.Values["macd"].State)
	assert.Equal(t, "negative", rep.Values["roc"].State)
}

func TestATRSeries(t *testing.T) {
	candles := trendCandles(100, 0.005, 60)
	series, err := ATRSeries(candles, 14)
	require.NoError(t, err)
	require.NotEmpty(t, series)
	for _, v := range series {
		assert.Greater(t, v, 0.0)
	}

	_, err = ATRSeries(nil, 14)
	assert.ErrorIs(t, err, market.ErrNoData)

	_, err = ATRSeries(candles[:5], 14)
	assert.Error(t, err, "too few candles for the period")
}
