package trader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowtrade/internal/crm"
	"shadowtrade/internal/market"
	"shadowtrade/internal/marketdata"
	"shadowtrade/internal/strategy"
)

const barMs = int64(24 * time.Hour / time.Millisecond)

func candlesFromCloses(closes []float64) []market.Candle {
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC).UnixMilli()
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		open := base + int64(i)*barMs
		out[i] = market.Candle{
			OpenTime:  open,
			CloseTime: open + barMs - 1,
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
			Trades:    10,
		}
	}
	return out
}

func trendCloses(start, dailyPct float64, n int) []float64 {
	out := make([]float64, n)
	v := start
	for i := range out {
		out[i] = v
		v *= 1 + dailyPct
	}
	return out
}

type fakeSource struct {
	mu      sync.Mutex
	candles []market.Candle
	calls   int
	lastReq marketdata.FetchRequest
}

func (f *fakeSource) Fetch(_ context.Context, req marketdata.FetchRequest) ([]market.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastReq = req
	return f.candles, nil
}

func (f *fakeSource) Name() string { return "fake" }

// memStore is a map-backed crm.Store for tests.
type memStore struct {
	mu        sync.Mutex
	agents    map[int64]crm.Agent
	customers map[int64]crm.Customer
	accounts  map[int64]crm.Account
	orders    []crm.PaperOrder
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{
		agents:    make(map[int64]crm.Agent),
		customers: make(map[int64]crm.Customer),
		accounts:  make(map[int64]crm.Account),
	}
}

func (m *memStore) id() int64 { m.nextID++; return m.nextID }

func (m *memStore) SaveAgent(_ context.Context, a *crm.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == 0 {
		a.ID = m.id()
	}
	m.agents[a.ID] = *a
	return nil
}

func (m *memStore) GetAgent(_ context.Context, id int64) (crm.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return crm.Agent{}, crm.ErrNotFound
	}
	return a, nil
}

func (m *memStore) ListAgents(context.Context) ([]crm.Agent, error) { return nil, nil }

func (m *memStore) DeleteAgent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.agents, id)
	return nil
}

func (m *memStore) SaveCustomer(_ context.Context, c *crm.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.id()
	}
	m.customers[c.ID] = *c
	return nil
}

func (m *memStore) GetCustomer(_ context.Context, id int64) (crm.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return crm.Customer{}, crm.ErrNotFound
	}
	return c, nil
}

func (m *memStore) ListCustomers(context.Context, int64) ([]crm.Customer, error) { return nil, nil }

func (m *memStore) DeleteCustomer(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.customers, id)
	return nil
}

func (m *memStore) SaveAccount(_ context.Context, a *crm.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == 0 {
		a.ID = m.id()
	}
	m.accounts[a.ID] = *a
	return nil
}

func (m *memStore) GetAccount(_ context.Context, id int64) (crm.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return crm.Account{}, crm.ErrNotFound
	}
	return a, nil
}

func (m *memStore) ListAccounts(context.Context, int64) ([]crm.Account, error) { return nil, nil }

func (m *memStore) InsertOrder(_ context.Context, o *crm.PaperOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		o.ID = m.id()
	}
	if o.PlacedAt.IsZero() {
		o.PlacedAt = time.Now().UTC()
	}
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memStore) ListOrders(_ context.Context, accountID int64, _ int) ([]crm.PaperOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []crm.PaperOrder
	for _, o := range m.orders {
		if o.Account == accountID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func newTestBot(t *testing.T, store crm.Store, accountID int64) (*Bot, *fakeSource) {
	t.Helper()
	src := &fakeSource{}
	bot, err := NewBot(Config{
		Symbol:         "aapl",
		Timeframe:      "1d",
		Strategy:       "momentum",
		Lookback:       30,
		InitialCapital: 10000,
		AccountID:      accountID,
	}, src, store)
	require.NoError(t, err)
	return bot, src
}

func TestNewBotValidation(t *testing.T) {
	src := &fakeSource{}
	_, err := NewBot(Config{Symbol: "AAPL", Timeframe: "7h", Strategy: "momentum"}, src, nil)
	assert.Error(t, err)

	_, err = NewBot(Config{Symbol: "AAPL", Timeframe: "1d", Strategy: "astrology"}, src, nil)
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)

	_, err = NewBot(Config{Timeframe: "1d", Strategy: "momentum"}, src, nil)
	assert.Error(t, err, "symbol required")

	_, err = NewBot(Config{Symbol: "AAPL", Timeframe: "1d", Strategy: "momentum"}, nil, nil)
	assert.Error(t, err, "source required")
}

func TestApplyBuyThenSellRecordsOrders(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	acct := &crm.Account{CustomerID: 1, Symbol: "AAPL", Cash: 10000}
	require.NoError(t, store.SaveAccount(ctx, acct))

	bot, _ := newTestBot(t, store, acct.ID)

	// 1%/day uptrend: 10-bar momentum well above the 2% threshold.
	up := candlesFromCloses(trendCloses(100, 0.01, 30))
	require.NoError(t, bot.apply(ctx, up))

	st := bot.Status()
	assert.Equal(t, "BUY", st.LastSignal)
	assert.Equal(t, int64(1), st.Fills)
	assert.Greater(t, st.Portfolio.Shares, int64(0))

	// Holding through another bullish window must not stack buys.
	require.NoError(t, bot.apply(ctx, up))
	assert.Equal(t, int64(1), bot.Status().Fills)

	down := candlesFromCloses(trendCloses(200, -0.01, 30))
	require.NoError(t, bot.apply(ctx, down))

	st = bot.Status()
	assert.Equal(t, "SELL", st.LastSignal)
	assert.Equal(t, int64(2), st.Fills)
	assert.Equal(t, int64(0), st.Portfolio.Shares)

	orders, err := store.ListOrders(ctx, acct.ID, 10)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "BUY", orders[0].Side)
	assert.Equal(t, "SELL", orders[1].Side)
	assert.Equal(t, "momentum", orders[0].Strategy)

	synced, err := store.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), synced.Shares)
	assert.InDelta(t, bot.Status().Portfolio.Cash, synced.Cash, 1e-9)
}

func TestApplyEmptyWindowFails(t *testing.T) {
	bot, _ := newTestBot(t, nil, 0)
	err := bot.apply(context.Background(), nil)
	assert.ErrorIs(t, err, market.ErrNoData)
	assert.NotEmpty(t, bot.Status().LastError)
}

func TestTickRequestsClosedBarsOnly(t *testing.T) {
	bot, src := newTestBot(t, nil, 0)
	src.candles = candlesFromCloses(trendCloses(100, 0.01, 30))

	require.NoError(t, bot.tick(context.Background()))

	src.mu.Lock()
	req := src.lastReq
	src.mu.Unlock()
	assert.Equal(t, "AAPL", req.Symbol)
	assert.Equal(t, "1d", req.Interval)
	assert.Less(t, req.End, time.Now().UnixMilli())
	assert.Equal(t, req.End-30*barMs, req.Start)
	assert.Equal(t, 30, req.Limit)
}

func TestFleetRejectsDuplicateSymbols(t *testing.T) {
	src := &fakeSource{}
	cfg := Config{Symbol: "AAPL", Timeframe: "1d", Strategy: "momentum"}
	_, err := NewFleet([]Config{cfg, cfg}, src, nil)
	assert.ErrorContains(t, err, "duplicate")
}

func TestFleetStatuses(t *testing.T) {
	src := &fakeSource{}
	fleet, err := NewFleet([]Config{
		{Symbol: "AAPL", Timeframe: "1d", Strategy: "momentum"},
		{Symbol: "MSFT", Timeframe: "1h", Strategy: "rsi_strategy"},
	}, src, nil)
	require.NoError(t, err)
	require.Equal(t, 2, fleet.Size())

	sts := fleet.Statuses()
	require.Len(t, sts, 2)
	assert.Equal(t, "AAPL", sts[0].Symbol)
	assert.Equal(t, "MSFT", sts[1].Symbol)

	_, ok := fleet.Status("msft")
	assert.True(t, ok)
	_, ok = fleet.Status("TSLA")
	assert.False(t, ok)
}
