package backtest

import (
	"math"

	"shadowtrade/internal/market"
	"shadowtrade/internal/strategy"
)

// Fills is the output of one simulation pass.
type Fills struct {
	Trades      []Trade
	EquityCurve []EquityPoint
	FinalCash   float64
	FinalShares int64
}

// Simulate walks the candles with a FLAT/LONG state machine. A buy
// signal while flat converts all deployable cash into whole shares at
// the bar's close; a sell signal while long liquidates. Quantities
// truncate to whole shares, and a buy that truncates to zero shares is
// a silent skip, never an error. One equity point is appended per bar
// regardless of signal.
func Simulate(candles []market.Candle, signals []strategy.Signal, initialCapital float64) Fills {
	out := Fills{
		Trades:      []Trade{},
		EquityCurve: make([]EquityPoint, 0, len(candles)),
		FinalCash:   initialCapital,
	}
	cash := initialCapital
	var shares int64
	var costBasis float64 // cash spent on the open position

	for i, candle := range candles {
		price := candle.Close
		sig := strategy.Hold
		if i < len(signals) {
			sig = signals[i]
		}
		switch {
		case sig == strategy.Buy && shares == 0:
			qty := int64(math.Floor(cash / price))
			if qty >= 1 {
				spend := float64(qty) * price
				cash -= spend
				shares = qty
				costBasis = spend
				out.Trades = append(out.Trades, Trade{
					Date:     candle.Date(),
					Side:     SideBuy,
					Price:    price,
					Quantity: qty,
				})
			}
		case sig == strategy.Sell && shares > 0:
			avgCost := costBasis / float64(shares)
			pnl := (price - avgCost) * float64(shares)
			cash += float64(shares) * price
			out.Trades = append(out.Trades, Trade{
				Date:     candle.Date(),
				Side:     SideSell,
				Price:    price,
				Quantity: shares,
				PnL:      pnl,
			})
			shares = 0
			costBasis = 0
		}
		out.EquityCurve = append(out.EquityCurve, EquityPoint{
			Date:   candle.Date(),
			Cash:   cash,
			Shares: shares,
			Mark:   price,
			Equity: cash + float64(shares)*price,
		})
	}
	out.FinalCash = cash
	out.FinalShares = shares
	return out
}
