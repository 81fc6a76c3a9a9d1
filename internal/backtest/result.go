// Package backtest runs trading strategies against historical candles
// in a shadow portfolio: fills are simulated, money never moves. The
// core pipeline is indicators -> signals -> simulated fills -> summary
// statistics, composed by Engine.
package backtest

import (
	"time"

	"shadowtrade/internal/strategy"
)

// Side labels a simulated fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is one executed fill. PnL is realized against the
// volume-weighted average cost of the position and is only meaningful
// on SELL fills. Trades are never mutated after creation.
type Trade struct {
	Date     time.Time `json:"date"`
	Side     Side      `json:"side"`
	Price    float64   `json:"price"`
	Quantity int64     `json:"quantity"`
	PnL      float64   `json:"pnl"`
}

// EquityPoint is the mark-to-market account snapshot after one bar.
// Equity is always Cash + Shares×Mark.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Cash   float64   `json:"cash"`
	Shares int64     `json:"shares"`
	Mark   float64   `json:"mark"`
	Equity float64   `json:"equity"`
}

// Result is the full outcome of one backtest run.
type Result struct {
	Strategy       strategy.Kind   `json:"strategy"`
	Params         strategy.Params `json:"params"`
	InitialCapital float64         `json:"initial_capital"`
	FinalEquity    float64         `json:"final_equity"`
	FinalCash      float64         `json:"final_cash"`
	FinalPosition  int64           `json:"final_position"`
	TotalReturn    float64         `json:"total_return"`
	MaxDrawdown    float64         `json:"max_drawdown"`
	SharpeRatio    float64         `json:"sharpe_ratio"`
	TotalTrades    int             `json:"total_trades"`
	WinRate        float64         `json:"win_rate"`
	AvgWin         float64         `json:"avg_win"`
	AvgLoss        float64         `json:"avg_loss"`
	Trades         []Trade         `json:"trades"`
	EquityCurve    []EquityPoint   `json:"equity_curve"`
}
