package config

import "strings"

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8090"
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "data/candles"
	}
	if c.Data.Exchange == "" {
		c.Data.Exchange = "alpaca"
	}
	c.Data.Exchange = strings.ToLower(strings.TrimSpace(c.Data.Exchange))
	if c.Data.MaxBatch <= 0 {
		c.Data.MaxBatch = 1000
	}
	if c.Data.RatePerSec <= 0 {
		c.Data.RatePerSec = 3
	}
	if c.Data.MaxConcurrent <= 0 {
		c.Data.MaxConcurrent = 2
	}
	if c.Data.Alpaca.Feed == "" {
		c.Data.Alpaca.Feed = "iex"
	}
	if c.Backtest.ResultsDir == "" {
		c.Backtest.ResultsDir = "data/backtests"
	}
	if c.Backtest.DefaultCapital <= 0 {
		c.Backtest.DefaultCapital = 100000
	}
	if c.Backtest.MaxConcurrent <= 0 {
		c.Backtest.MaxConcurrent = 2
	}
	if c.Strategy.ProfilesPath == "" {
		c.Strategy.ProfilesPath = "configs/profiles.yaml"
	}
	if c.CRM.DBPath == "" {
		c.CRM.DBPath = "data/crm.db"
	}
	for i := range c.Trader.Bots {
		bot := &c.Trader.Bots[i]
		if bot.Lookback <= 0 {
			bot.Lookback = 200
		}
		if bot.InitialCapital <= 0 {
			bot.InitialCapital = 100000
		}
		if bot.OffsetSeconds < 0 {
			bot.OffsetSeconds = 0
		}
	}
}
