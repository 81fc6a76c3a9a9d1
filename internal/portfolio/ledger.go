// Package portfolio keeps the paper-trading account: decimal cash, a
// whole-share position and its volume-weighted cost. Decimal
// arithmetic keeps repeated fills from accumulating float drift.
package portfolio

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time account view marked at one price.
type Snapshot struct {
	Cash    float64 `json:"cash"`
	Shares  int64   `json:"shares"`
	AvgCost float64 `json:"avg_cost"`
	Mark    float64 `json:"mark"`
	Equity  float64 `json:"equity"`
}

// Ledger is a single-symbol cash/position account. All mutating calls
// are safe for concurrent use.
type Ledger struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	shares    int64
	costBasis decimal.Decimal // total cash spent on the open position
}

func NewLedger(initialCash float64) (*Ledger, error) {
	if initialCash <= 0 {
		return nil, fmt.Errorf("initial cash must be positive, got %.2f", initialCash)
	}
	return &Ledger{cash: decimal.NewFromFloat(initialCash)}, nil
}

// Buy converts all deployable cash into whole shares at price. It
// returns the filled quantity; zero (with ok=false) when already long,
// the price is invalid, or the cash buys less than one share.
func (l *Ledger) Buy(price float64) (int64, bool) {
	if price <= 0 {
		return 0, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.shares > 0 {
		return 0, false
	}
	p := decimal.NewFromFloat(price)
	qty := l.cash.Div(p).IntPart()
	if qty < 1 {
		return 0, false
	}
	spend := p.Mul(decimal.NewFromInt(qty))
	l.cash = l.cash.Sub(spend)
	l.shares = qty
	l.costBasis = spend
	return qty, true
}

// Sell liquidates the open position at price and returns the quantity
// and realized P&L against the volume-weighted cost. ok=false while
// flat.
func (l *Ledger) Sell(price float64) (int64, float64, bool) {
	if price <= 0 {
		return 0, 0, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.shares == 0 {
		return 0, 0, false
	}
	p := decimal.NewFromFloat(price)
	qty := l.shares
	proceeds := p.Mul(decimal.NewFromInt(qty))
	pnl, _ := proceeds.Sub(l.costBasis).Float64()
	l.cash = l.cash.Add(proceeds)
	l.shares = 0
	l.costBasis = decimal.Zero
	return qty, pnl, true
}

// Cash returns the free cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, _ := l.cash.Float64()
	return f
}

// Shares returns the open position size.
func (l *Ledger) Shares() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shares
}

// AvgCost returns the volume-weighted cost of the open position, 0
// while flat.
func (l *Ledger) AvgCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.shares == 0 {
		return 0
	}
	f, _ := l.costBasis.Div(decimal.NewFromInt(l.shares)).Float64()
	return f
}

// Equity marks the account at the given price.
func (l *Ledger) Equity(mark float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.equityLocked(mark)
}

func (l *Ledger) equityLocked(mark float64) float64 {
	eq := l.cash.Add(decimal.NewFromFloat(mark).Mul(decimal.NewFromInt(l.shares)))
	f, _ := eq.Float64()
	return f
}

// SnapshotAt captures the full account state marked at one price.
func (l *Ledger) SnapshotAt(mark float64) Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	cash, _ := l.cash.Float64()
	snap := Snapshot{
		Cash:   cash,
		Shares: l.shares,
		Mark:   mark,
		Equity: l.equityLocked(mark),
	}
	if l.shares > 0 {
		snap.AvgCost, _ = l.costBasis.Div(decimal.NewFromInt(l.shares)).Float64()
	}
	return snap
}
