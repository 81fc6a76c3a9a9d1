package backtest

import (
	"fmt"

	"shadowtrade/internal/market"
	"shadowtrade/internal/strategy"
)

// Engine owns one immutable price series and an initial capital
// figure. Every Run starts from fresh cash/position state, so repeated
// runs over the same data are independent and safe to issue from
// multiple goroutines.
type Engine struct {
	candles        []market.Candle
	initialCapital float64
}

// NewEngine validates the series up front; an empty series is
// market.ErrNoData and never produces an engine.
func NewEngine(candles []market.Candle, initialCapital float64) (*Engine, error) {
	if err := market.ValidateSeries(candles); err != nil {
		return nil, err
	}
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %.2f", initialCapital)
	}
	owned := make([]market.Candle, len(candles))
	copy(owned, candles)
	return &Engine{candles: owned, initialCapital: initialCapital}, nil
}

// Bars returns the number of candles the engine owns.
func (e *Engine) Bars() int {
	return len(e.candles)
}

// InitialCapital returns the configured starting cash.
func (e *Engine) InitialCapital() float64 {
	return e.initialCapital
}

// Run backtests one strategy. Explicit params overlay the strategy
// defaults; an unsupported name fails with strategy.ErrUnknownStrategy
// before any computation.
func (e *Engine) Run(name string, params strategy.Params) (Result, error) {
	kind, err := strategy.ParseKind(name)
	if err != nil {
		return Result{}, err
	}
	merged := strategy.Merge(kind, params)
	signals, err := strategy.Signals(e.candles, kind, merged)
	if err != nil {
		return Result{}, err
	}
	fills := Simulate(e.candles, signals, e.initialCapital)
	stats := Summarize(fills.Trades, fills.EquityCurve, e.initialCapital)
	return Result{
		Strategy:       kind,
		Params:         merged,
		InitialCapital: e.initialCapital,
		FinalEquity:    stats.FinalEquity,
		FinalCash:      fills.FinalCash,
		FinalPosition:  fills.FinalShares,
		TotalReturn:    stats.TotalReturn,
		MaxDrawdown:    stats.MaxDrawdown,
		SharpeRatio:    stats.SharpeRatio,
		TotalTrades:    stats.TotalTrades,
		WinRate:        stats.WinRate,
		AvgWin:         stats.AvgWin,
		AvgLoss:        stats.AvgLoss,
		Trades:         fills.Trades,
		EquityCurve:    fills.EquityCurve,
	}, nil
}
