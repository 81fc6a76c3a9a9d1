package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"shadowtrade/internal/market"
)

// AlpacaSource pulls US equity bars from the Alpaca market-data API.
type AlpacaSource struct {
	client *marketdata.Client
	feed   marketdata.Feed
}

// AlpacaConfig carries the Alpaca credentials and optional overrides.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Feed      string // sip or iex; iex is the free tier
}

func NewAlpacaSource(cfg AlpacaConfig) (*AlpacaSource, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("alpaca source requires api key and secret")
	}
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}
	feed := marketdata.IEX
	if strings.EqualFold(cfg.Feed, "sip") {
		feed = marketdata.SIP
	}
	return &AlpacaSource{client: marketdata.NewClient(opts), feed: feed}, nil
}

func (a *AlpacaSource) Name() string { return "alpaca" }

func (a *AlpacaSource) Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Symbol == "" || req.Interval == "" {
		return nil, fmt.Errorf("symbol/interval required")
	}
	tf, err := alpacaTimeFrame(req.Interval)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}
	barsReq := marketdata.GetBarsRequest{
		TimeFrame:  tf,
		Start:      time.UnixMilli(req.Start).UTC(),
		TotalLimit: limit,
		Feed:       a.feed,
	}
	if req.End > 0 {
		barsReq.End = time.UnixMilli(req.End).UTC().Add(time.Millisecond)
	}
	bars, err := a.client.GetBars(strings.ToUpper(req.Symbol), barsReq)
	if err != nil {
		return nil, fmt.Errorf("alpaca GetBars: %w", err)
	}
	step, err := ParseTimeframe(req.Interval)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(bars))
	for _, b := range bars {
		open := b.Timestamp.UTC().UnixMilli()
		out = append(out, market.Candle{
			OpenTime:  open,
			CloseTime: open + step.durationMillis() - 1,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    float64(b.Volume),
			Trades:    int64(b.TradeCount),
		})
	}
	return out, nil
}

func alpacaTimeFrame(interval string) (marketdata.TimeFrame, error) {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case "1m":
		return marketdata.OneMin, nil
	case "5m":
		return marketdata.NewTimeFrame(5, marketdata.Min), nil
	case "15m":
		return marketdata.NewTimeFrame(15, marketdata.Min), nil
	case "30m":
		return marketdata.NewTimeFrame(30, marketdata.Min), nil
	case "1h":
		return marketdata.OneHour, nil
	case "4h":
		return marketdata.NewTimeFrame(4, marketdata.Hour), nil
	case "1d":
		return marketdata.OneDay, nil
	}
	return marketdata.TimeFrame{}, fmt.Errorf("alpaca does not support interval %q", interval)
}
