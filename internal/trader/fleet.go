package trader

import (
	"context"
	"fmt"
	"strings"

	"shadowtrade/internal/crm"
	"shadowtrade/internal/marketdata"
)

// Fleet groups the configured bots so the app and the API can treat
// them as one unit.
type Fleet struct {
	bots map[string]*Bot
	keys []string
}

// NewFleet builds one bot per config entry. Duplicate symbols are
// rejected since each bot owns its symbol's ledger.
func NewFleet(cfgs []Config, source marketdata.Source, store crm.Store) (*Fleet, error) {
	f := &Fleet{bots: make(map[string]*Bot, len(cfgs))}
	for _, cfg := range cfgs {
		bot, err := NewBot(cfg, source, store)
		if err != nil {
			return nil, fmt.Errorf("trader: bot %q: %w", cfg.Symbol, err)
		}
		key := strings.ToUpper(strings.TrimSpace(cfg.Symbol))
		if _, dup := f.bots[key]; dup {
			return nil, fmt.Errorf("trader: duplicate bot for symbol %s", key)
		}
		f.bots[key] = bot
		f.keys = append(f.keys, key)
	}
	return f, nil
}

// Start launches every bot. Safe on an empty fleet.
func (f *Fleet) Start(ctx context.Context) {
	for _, key := range f.keys {
		f.bots[key].Start(ctx)
	}
}

// Wait blocks until all bots have exited.
func (f *Fleet) Wait() {
	for _, key := range f.keys {
		f.bots[key].Wait()
	}
}

// Size reports the number of bots.
func (f *Fleet) Size() int {
	return len(f.keys)
}

// Status returns the snapshot for one symbol.
func (f *Fleet) Status(symbol string) (Status, bool) {
	bot, ok := f.bots[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Status{}, false
	}
	return bot.Status(), true
}

// Statuses returns the snapshots of all bots in config order.
func (f *Fleet) Statuses() []Status {
	out := make([]Status, 0, len(f.keys))
	for _, key := range f.keys {
		out = append(out, f.bots[key].Status())
	}
	return out
}
