package config

import (
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate rejects settings the services would trip over later.
func (c *Config) Validate() error {
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %q", c.App.LogLevel)
	}
	switch c.Data.Exchange {
	case "alpaca", "binance":
	default:
		return fmt.Errorf("data.exchange must be alpaca or binance, got %q", c.Data.Exchange)
	}
	switch strings.ToLower(c.Data.Alpaca.Feed) {
	case "", "iex", "sip":
	default:
		return fmt.Errorf("data.alpaca.feed must be iex or sip, got %q", c.Data.Alpaca.Feed)
	}
	seen := make(map[string]bool, len(c.Trader.Bots))
	for i, bot := range c.Trader.Bots {
		if strings.TrimSpace(bot.Symbol) == "" {
			return fmt.Errorf("trader.bots[%d].symbol is required", i)
		}
		key := strings.ToUpper(strings.TrimSpace(bot.Symbol))
		if seen[key] {
			return fmt.Errorf("trader.bots[%d]: duplicate symbol %s", i, key)
		}
		seen[key] = true
		if strings.TrimSpace(bot.Timeframe) == "" {
			return fmt.Errorf("trader.bots[%d].timeframe is required", i)
		}
		if strings.TrimSpace(bot.Strategy) == "" {
			return fmt.Errorf("trader.bots[%d].strategy is required", i)
		}
	}
	return nil
}
