package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowtrade/internal/strategy"
)

func newTestResultStore(t *testing.T) *ResultStore {
	t.Helper()
	s, err := NewResultStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun() Run {
	return Run{
		ID:       "run-1",
		Symbol:   "AAPL",
		Strategy: "momentum",
		Status:   RunStatusPending,
		Config: RunConfig{
			Symbol:         "AAPL",
			Timeframe:      "1d",
			Strategy:       "momentum",
			Params:         strategy.Params{"period": 10, "threshold": 0.02},
			StartTS:        0,
			EndTS:          86400000,
			InitialCapital: 10000,
		},
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := newTestResultStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertRun(ctx, sampleRun()))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, RunStatusPending, got.Status)
	assert.Equal(t, 10000.0, got.Config.InitialCapital)
	assert.Equal(t, 0.02, got.Config.Params["threshold"])
	assert.True(t, got.CompletedAt.IsZero())
}

func TestUpdateRunSummary(t *testing.T) {
	s := newTestResultStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertRun(ctx, sampleRun()))

	stats := Stats{FinalEquity: 12000, TotalReturn: 0.2, MaxDrawdown: -0.05, TotalTrades: 3, WinRate: 2.0 / 3}
	require.NoError(t, s.UpdateRunSummary(ctx, "run-1", RunStatusDone, stats, ""))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, got.Status)
	assert.InDelta(t, 0.2, got.Stats.TotalReturn, 1e-12)
	assert.Equal(t, 3, got.Stats.TotalTrades)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestTradesAndEquityPersistence(t *testing.T) {
	s := newTestResultStore(t)
	ctx := context.Background()
	require.NoError(t, s.InsertRun(ctx, sampleRun()))

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	trades := []Trade{
		{Date: day, Side: SideBuy, Price: 100, Quantity: 50},
		{Date: day.AddDate(0, 0, 3), Side: SideSell, Price: 110, Quantity: 50, PnL: 500},
	}
	curve := []EquityPoint{
		{Date: day, Cash: 5000, Shares: 50, Mark: 100, Equity: 10000},
		{Date: day.AddDate(0, 0, 1), Cash: 5000, Shares: 50, Mark: 105, Equity: 10250},
		{Date: day.AddDate(0, 0, 3), Cash: 10500, Shares: 0, Mark: 110, Equity: 10500},
	}
	require.NoError(t, s.InsertTrades(ctx, "run-1", trades))
	require.NoError(t, s.InsertEquity(ctx, "run-1", curve))

	gotTrades, err := s.ListTrades(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, gotTrades, 2)
	assert.Equal(t, SideBuy, gotTrades[0].Side)
	assert.Equal(t, int64(50), gotTrades[0].Quantity)
	assert.InDelta(t, 500, gotTrades[1].PnL, 1e-12)
	assert.True(t, gotTrades[0].Date.Equal(day))

	gotCurve, err := s.ListEquity(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, gotCurve, 3)
	assert.InDelta(t, 10250, gotCurve[1].Equity, 1e-12)
	assert.InDelta(t, 5000, gotCurve[1].Cash, 1e-12)
	assert.Equal(t, int64(50), gotCurve[1].Shares)
	assert.InDelta(t, 105, gotCurve[1].Mark, 1e-12)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestResultStore(t)
	ctx := context.Background()
	first := sampleRun()
	require.NoError(t, s.InsertRun(ctx, first))
	time.Sleep(5 * time.Millisecond)
	second := sampleRun()
	second.ID = "run-2"
	require.NoError(t, s.InsertRun(ctx, second))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
}
