package backtest

import "math"

const tradingDaysPerYear = 252

// Stats are the summary metrics over one simulation.
type Stats struct {
	FinalEquity float64 `json:"final_equity"`
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	TotalTrades int     `json:"total_trades"`
	WinRate     float64 `json:"win_rate"`
	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
}

// Summarize reduces a trade log and equity curve to headline metrics.
// Trade statistics count completed round trips only, i.e. SELL fills
// carrying realized P&L. Max drawdown is reported as a fraction ≤ 0.
func Summarize(trades []Trade, curve []EquityPoint, initialCapital float64) Stats {
	stats := Stats{FinalEquity: initialCapital}
	if len(curve) > 0 {
		stats.FinalEquity = curve[len(curve)-1].Equity
	}
	if initialCapital > 0 {
		stats.TotalReturn = (stats.FinalEquity - initialCapital) / initialCapital
	}
	stats.MaxDrawdown = maxDrawdown(curve)
	stats.SharpeRatio = sharpe(curve)

	var wins, losses int
	var winSum, lossSum float64
	for _, t := range trades {
		if t.Side != SideSell {
			continue
		}
		stats.TotalTrades++
		// A flat round trip counts toward the total but is neither a
		// win nor a loss.
		if t.PnL > 0 {
			wins++
			winSum += t.PnL
		} else if t.PnL < 0 {
			losses++
			lossSum += t.PnL
		}
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(wins) / float64(stats.TotalTrades)
	}
	if wins > 0 {
		stats.AvgWin = winSum / float64(wins)
	}
	if losses > 0 {
		stats.AvgLoss = lossSum / float64(losses)
	}
	return stats
}

func maxDrawdown(curve []EquityPoint) float64 {
	dd := 0.0
	peak := math.Inf(-1)
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			if d := (p.Equity - peak) / peak; d < dd {
				dd = d
			}
		}
	}
	return dd
}

// sharpe annualizes the per-bar equity returns assuming daily bars.
// Zero when fewer than two points exist or returns never vary.
func sharpe(curve []EquityPoint) float64 {
	if len(curve) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, curve[i].Equity/prev-1)
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	if len(returns) < 2 {
		return 0
	}
	ss := 0.0
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean * tradingDaysPerYear / (std * math.Sqrt(tradingDaysPerYear))
}
