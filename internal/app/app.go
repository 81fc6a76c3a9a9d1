// Package app wires configuration into the running platform: candle
// warehouse, backtest runner, paper trading fleet and the HTTP API.
package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"shadowtrade/internal/backtest"
	"shadowtrade/internal/config"
	"shadowtrade/internal/crm"
	"shadowtrade/internal/logger"
	"shadowtrade/internal/marketdata"
	"shadowtrade/internal/strategy"
	"shadowtrade/internal/trader"
	apihttp "shadowtrade/internal/transport/http"
)

// App holds the assembled services. Build with NewApp, then Run.
type App struct {
	cfg      *config.Config
	market   *marketdata.Service
	results  *backtest.ResultStore
	runs     *backtest.RunService
	profiles *strategy.ProfileRegistry
	crm      crm.Store
	fleet    *trader.Fleet
	server   *apihttp.Server
	candles  *marketdata.Store
}

// NewApp builds the application from config without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves until ctx is cancelled or a service fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	a.market.SetContext(ctx)
	a.runs.SetContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	if a.fleet != nil && a.fleet.Size() > 0 {
		group.Go(func() error {
			logger.Infof("[app] starting paper trading fleet (%d bots)", a.fleet.Size())
			a.fleet.Start(ctx)
			a.fleet.Wait()
			return nil
		})
	}

	err := group.Wait()
	a.close()
	return err
}

func (a *App) close() {
	if a.crm != nil {
		if cerr := a.crm.Close(); cerr != nil {
			logger.Warnf("[app] crm store close failed: %v", cerr)
		}
	}
	if a.results != nil {
		if cerr := a.results.Close(); cerr != nil {
			logger.Warnf("[app] result store close failed: %v", cerr)
		}
	}
	if a.candles != nil {
		if cerr := a.candles.Close(); cerr != nil {
			logger.Warnf("[app] candle store close failed: %v", cerr)
		}
	}
}

// Fleet exposes the trading fleet for harnesses.
func (a *App) Fleet() *trader.Fleet {
	if a == nil {
		return nil
	}
	return a.fleet
}
