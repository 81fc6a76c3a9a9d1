package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shadowtrade/internal/backtest"
	"shadowtrade/internal/config"
	"shadowtrade/internal/crm"
	"shadowtrade/internal/logger"
	"shadowtrade/internal/marketdata"
	"shadowtrade/internal/store/gormstore"
	"shadowtrade/internal/strategy"
	"shadowtrade/internal/trader"
	apihttp "shadowtrade/internal/transport/http"
)

// AppBuilder assembles the service graph from config. The *Fn fields
// exist so tests can swap construction of the heavier pieces.
type AppBuilder struct {
	cfg *config.Config

	sourcesFn  func(config.DataConfig) (map[string]marketdata.Source, error)
	crmStoreFn func(string) (crm.Store, error)
	profilesFn func(string) (*strategy.ProfileRegistry, error)
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		sourcesFn:  buildSources,
		crmStoreFn: buildCRMStore,
		profilesFn: strategy.NewProfileRegistry,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// WithSources overrides remote source construction, used by tests.
func WithSources(fn func(config.DataConfig) (map[string]marketdata.Source, error)) AppBuilderOption {
	return func(b *AppBuilder) { b.sourcesFn = fn }
}

func buildSources(cfg config.DataConfig) (map[string]marketdata.Source, error) {
	sources := make(map[string]marketdata.Source)
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.APISecret != "" {
		src, err := marketdata.NewAlpacaSource(marketdata.AlpacaConfig{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
			BaseURL:   cfg.Alpaca.BaseURL,
			Feed:      cfg.Alpaca.Feed,
		})
		if err != nil {
			return nil, err
		}
		sources["alpaca"] = src
	}
	// Binance klines are public, no credentials needed.
	sources["binance"] = marketdata.NewBinanceSource(cfg.Binance.APIKey, cfg.Binance.APISecret)

	if _, ok := sources[cfg.Exchange]; !ok {
		return nil, fmt.Errorf("data.exchange=%s but its credentials are not configured", cfg.Exchange)
	}
	return sources, nil
}

func buildCRMStore(path string) (crm.Store, error) {
	return gormstore.New(path)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	candleStore, err := marketdata.NewStore(cfg.Data.Dir)
	if err != nil {
		return nil, fmt.Errorf("candle store: %w", err)
	}
	sources, err := b.sourcesFn(cfg.Data)
	if err != nil {
		return nil, err
	}
	market, err := marketdata.NewService(marketdata.ServiceConfig{
		Store:           candleStore,
		Sources:         sources,
		DefaultExchange: cfg.Data.Exchange,
		RateLimitPerMin: int(cfg.Data.RatePerSec * 60),
		MaxBatch:        cfg.Data.MaxBatch,
		MaxConcurrent:   cfg.Data.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("market data service: %w", err)
	}

	results, err := backtest.NewResultStore(cfg.Backtest.ResultsDir)
	if err != nil {
		return nil, fmt.Errorf("result store: %w", err)
	}

	var profiles *strategy.ProfileRegistry
	if path := strings.TrimSpace(cfg.Strategy.ProfilesPath); path != "" {
		profiles, err = b.profilesFn(path)
		if err != nil {
			logger.Warnf("[app] strategy profiles unavailable (%s): %v", path, err)
			profiles = nil
		}
	}

	runs, err := backtest.NewRunService(backtest.RunServiceConfig{
		Market:         market,
		Results:        results,
		Profiles:       profiles,
		DefaultCapital: cfg.Backtest.DefaultCapital,
		MaxConcurrent:  cfg.Backtest.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("run service: %w", err)
	}

	crmStore, err := b.crmStoreFn(cfg.CRM.DBPath)
	if err != nil {
		return nil, fmt.Errorf("crm store: %w", err)
	}

	var fleet *trader.Fleet
	if cfg.Trader.Enabled && len(cfg.Trader.Bots) > 0 {
		defaultSource := sources[cfg.Data.Exchange]
		botCfgs := make([]trader.Config, 0, len(cfg.Trader.Bots))
		for _, bot := range cfg.Trader.Bots {
			botCfgs = append(botCfgs, trader.Config{
				Symbol:         bot.Symbol,
				Timeframe:      bot.Timeframe,
				Strategy:       bot.Strategy,
				Params:         bot.Params,
				Lookback:       bot.Lookback,
				InitialCapital: bot.InitialCapital,
				AccountID:      bot.AccountID,
				Offset:         time.Duration(bot.OffsetSeconds) * time.Second,
				RunImmediately: bot.RunImmediately,
			})
		}
		fleet, err = trader.NewFleet(botCfgs, defaultSource, crmStore)
		if err != nil {
			return nil, err
		}
	}

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:     cfg.HTTP.Addr,
		Market:   market,
		Runs:     runs,
		Profiles: profiles,
		CRM:      crmStore,
		Fleet:    fleet,
	})
	if err != nil {
		return nil, fmt.Errorf("http server: %w", err)
	}

	return &App{
		cfg:      cfg,
		market:   market,
		results:  results,
		runs:     runs,
		profiles: profiles,
		crm:      crmStore,
		fleet:    fleet,
		server:   server,
		candles:  candleStore,
	}, nil
}
