// Package trader runs the paper trading bot: one bot per symbol wakes
// at bar close, pulls a lookback window from a market source, computes
// the latest strategy signal and fills it against a simulated ledger.
// Fills are persisted through the CRM store so account history survives
// restarts.
package trader

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"shadowtrade/internal/crm"
	"shadowtrade/internal/logger"
	"shadowtrade/internal/market"
	"shadowtrade/internal/marketdata"
	"shadowtrade/internal/portfolio"
	"shadowtrade/internal/scheduler"
	"shadowtrade/internal/strategy"
)

const defaultLookback = 200

// Config describes one paper trading bot.
type Config struct {
	Symbol         string          `mapstructure:"symbol"`
	Timeframe      string          `mapstructure:"timeframe"`
	Strategy       string          `mapstructure:"strategy"`
	Params         strategy.Params `mapstructure:"params"`
	Lookback       int             `mapstructure:"lookback"`
	InitialCapital float64         `mapstructure:"initial_capital"`
	AccountID      int64           `mapstructure:"account_id"`
	Offset         time.Duration   `mapstructure:"offset"`
	RunImmediately bool            `mapstructure:"run_immediately"`
}

// Status is a point-in-time view of a bot, safe to serve from the API.
type Status struct {
	Symbol     string             `json:"symbol"`
	Timeframe  string             `json:"timeframe"`
	Strategy   string             `json:"strategy"`
	LastSignal string             `json:"last_signal"`
	LastPrice  float64            `json:"last_price"`
	LastTickAt time.Time          `json:"last_tick_at,omitzero"`
	Ticks      int64              `json:"ticks"`
	Fills      int64              `json:"fills"`
	Portfolio  portfolio.Snapshot `json:"portfolio"`
	LastError  string             `json:"last_error,omitempty"`
}

// Bot is a single-symbol paper trading loop.
type Bot struct {
	cfg    Config
	tf     marketdata.Timeframe
	kind   strategy.Kind
	params strategy.Params

	source   marketdata.Source
	orders   crm.OrderRepository
	accounts crm.AccountRepository
	ledger   *portfolio.Ledger

	mu       sync.Mutex
	ticks    int64
	fills    int64
	lastSig  strategy.Signal
	lastPx   float64
	lastAt   time.Time
	lastErr  string
	snapshot atomic.Value

	wg sync.WaitGroup
}

// NewBot validates the config and builds a bot. The CRM store may be
// nil, in which case fills stay in memory only.
func NewBot(cfg Config, source marketdata.Source, store crm.Store) (*Bot, error) {
	if source == nil {
		return nil, fmt.Errorf("trader: source is required")
	}
	cfg.Symbol = strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("trader: symbol is required")
	}
	tf, err := marketdata.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return nil, err
	}
	kind, err := strategy.ParseKind(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 100000
	}
	ledger, err := portfolio.NewLedger(cfg.InitialCapital)
	if err != nil {
		return nil, err
	}

	b := &Bot{
		cfg:    cfg,
		tf:     tf,
		kind:   kind,
		params: strategy.Merge(kind, cfg.Params),
		source: source,
		ledger: ledger,
	}
	if store != nil {
		b.orders = store
		b.accounts = store
	}
	b.refreshSnapshot()
	return b, nil
}

// Start launches the aligned tick loop. It returns immediately; the
// loop exits when ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	sched := scheduler.NewAlignedScheduler(ctx, b.tf.Duration, b.cfg.Offset)
	sched.RunImmediately = b.cfg.RunImmediately

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sched.Start(func() { b.safeTick(ctx) })
		logger.Infof("trader[%s]: loop exited", b.cfg.Symbol)
	}()
	logger.Infof("trader[%s]: started strategy=%s timeframe=%s lookback=%d",
		b.cfg.Symbol, b.kind, b.tf.Key, b.cfg.Lookback)
}

// Wait blocks until the tick loop has exited.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// Status returns the latest published snapshot.
func (b *Bot) Status() Status {
	val := b.snapshot.Load()
	if val == nil {
		return Status{}
	}
	return val.(Status)
}

func (b *Bot) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("trader[%s]: tick panic: %v\n%s", b.cfg.Symbol, r, debug.Stack())
		}
	}()
	if err := b.tick(ctx); err != nil {
		logger.Warnf("trader[%s]: tick failed: %v", b.cfg.Symbol, err)
	}
}

// tick pulls the lookback window ending at the last closed bar and
// acts on the newest signal.
func (b *Bot) tick(ctx context.Context) error {
	now := time.Now().UnixMilli()
	step := b.tf.Duration.Milliseconds()
	end := (now/step)*step - 1 // last closed bar only
	start := end - int64(b.cfg.Lookback)*step

	candles, err := b.source.Fetch(ctx, marketdata.FetchRequest{
		Symbol:   b.cfg.Symbol,
		Interval: b.tf.SourceInterval,
		Start:    start,
		End:      end,
		Limit:    b.cfg.Lookback,
	})
	if err != nil {
		b.recordError(err)
		return err
	}
	return b.apply(ctx, candles)
}

// apply evaluates the strategy over the window and executes the last
// signal. Split from tick so tests can drive it with fixed candles.
func (b *Bot) apply(ctx context.Context, candles []market.Candle) error {
	if len(candles) == 0 {
		err := market.NoDataErrorf("trader: empty window for %s@%s", b.cfg.Symbol, b.tf.Key)
		b.recordError(err)
		return err
	}
	signals, err := strategy.Signals(candles, b.kind, b.params)
	if err != nil {
		b.recordError(err)
		return err
	}

	last := candles[len(candles)-1]
	sig := signals[len(signals)-1]

	b.mu.Lock()
	b.ticks++
	b.lastSig = sig
	b.lastPx = last.Close
	b.lastAt = time.Now().UTC()
	b.lastErr = ""
	b.mu.Unlock()

	switch sig {
	case strategy.Buy:
		if qty, ok := b.ledger.Buy(last.Close); ok {
			b.recordFill(ctx, "BUY", last.Close, qty, 0)
		}
	case strategy.Sell:
		if qty, pnl, ok := b.ledger.Sell(last.Close); ok {
			b.recordFill(ctx, "SELL", last.Close, qty, pnl)
		}
	}

	b.refreshSnapshot()
	return nil
}

func (b *Bot) recordFill(ctx context.Context, side string, price float64, qty int64, pnl float64) {
	b.mu.Lock()
	b.fills++
	b.mu.Unlock()
	logger.Infof("trader[%s]: %s qty=%d price=%.4f pnl=%.2f", b.cfg.Symbol, side, qty, price, pnl)

	if b.orders != nil {
		meta, _ := json.Marshal(map[string]any{"timeframe": b.tf.Key})
		order := &crm.PaperOrder{
			Account:  b.cfg.AccountID,
			Symbol:   b.cfg.Symbol,
			Side:     side,
			Price:    price,
			Quantity: qty,
			PnL:      pnl,
			Strategy: string(b.kind),
			Meta:     meta,
		}
		if err := b.orders.InsertOrder(ctx, order); err != nil {
			logger.Warnf("trader[%s]: order persist failed: %v", b.cfg.Symbol, err)
		}
	}
	b.syncAccount(ctx, price)
}

// syncAccount mirrors the ledger back onto the CRM account row.
func (b *Bot) syncAccount(ctx context.Context, mark float64) {
	if b.accounts == nil || b.cfg.AccountID == 0 {
		return
	}
	acct, err := b.accounts.GetAccount(ctx, b.cfg.AccountID)
	if err != nil {
		logger.Warnf("trader[%s]: account load failed: %v", b.cfg.Symbol, err)
		return
	}
	snap := b.ledger.SnapshotAt(mark)
	acct.Cash = snap.Cash
	acct.Shares = snap.Shares
	acct.AvgCost = snap.AvgCost
	if err := b.accounts.SaveAccount(ctx, &acct); err != nil {
		logger.Warnf("trader[%s]: account sync failed: %v", b.cfg.Symbol, err)
	}
}

func (b *Bot) recordError(err error) {
	b.mu.Lock()
	b.ticks++
	b.lastErr = err.Error()
	b.lastAt = time.Now().UTC()
	b.mu.Unlock()
	b.refreshSnapshot()
}

func (b *Bot) refreshSnapshot() {
	b.mu.Lock()
	st := Status{
		Symbol:     b.cfg.Symbol,
		Timeframe:  b.tf.Key,
		Strategy:   string(b.kind),
		LastSignal: b.lastSig.String(),
		LastPrice:  b.lastPx,
		LastTickAt: b.lastAt,
		Ticks:      b.ticks,
		Fills:      b.fills,
		Portfolio:  b.ledger.SnapshotAt(b.lastPx),
		LastError:  b.lastErr,
	}
	b.mu.Unlock()
	b.snapshot.Store(st)
}
