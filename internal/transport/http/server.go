// Package apihttp serves the platform REST API with gin: data fetch
// jobs, backtest runs, analysis reports, CRM entities and the live
// paper trading status.
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shadowtrade/internal/backtest"
	"shadowtrade/internal/crm"
	"shadowtrade/internal/logger"
	"shadowtrade/internal/marketdata"
	"shadowtrade/internal/strategy"
	"shadowtrade/internal/trader"
)

// ServerConfig lists the service dependencies. Market and Runs are
// required; the rest degrade their routes to 503 when absent.
type ServerConfig struct {
	Addr     string
	Market   *marketdata.Service
	Runs     *backtest.RunService
	Profiles *strategy.ProfileRegistry
	CRM      crm.Store
	Fleet    *trader.Fleet
}

// Server is the gin front of the platform.
type Server struct {
	addr     string
	market   *marketdata.Service
	runs     *backtest.RunService
	profiles *strategy.ProfileRegistry
	crm      crm.Store
	fleet    *trader.Fleet
	router   *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Market == nil {
		return nil, errors.New("market data service required")
	}
	if cfg.Runs == nil {
		return nil, errors.New("backtest run service required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:     cfg.Addr,
		market:   cfg.Market,
		runs:     cfg.Runs,
		profiles: cfg.Profiles,
		crm:      cfg.CRM,
		fleet:    cfg.Fleet,
		router:   router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	data := s.router.Group("/api/data")
	data.POST("/fetch", s.handleFetch)
	data.GET("/fetch/:id", s.handleFetchStatus)
	data.GET("/jobs", s.handleJobs)
	data.GET("/manifest", s.handleManifest)
	data.GET("/candles", s.handleCandles)

	bt := s.router.Group("/api/backtest")
	bt.POST("/runs", s.handleRunStart)
	bt.GET("/runs", s.handleRunList)
	bt.GET("/runs/:id", s.handleRunDetail)
	bt.GET("/runs/:id/trades", s.handleRunTrades)
	bt.GET("/runs/:id/equity", s.handleRunEquity)

	analysis := s.router.Group("/api/analysis")
	analysis.GET("/indicators", s.handleIndicators)
	analysis.GET("/chart", s.handleChart)

	strategies := s.router.Group("/api/strategies")
	strategies.GET("", s.handleStrategies)
	strategies.GET("/profiles", s.handleProfiles)

	crmGroup := s.router.Group("/api/crm")
	crmGroup.POST("/agents", s.handleSaveAgent)
	crmGroup.GET("/agents", s.handleListAgents)
	crmGroup.GET("/agents/:id", s.handleGetAgent)
	crmGroup.DELETE("/agents/:id", s.handleDeleteAgent)
	crmGroup.POST("/customers", s.handleSaveCustomer)
	crmGroup.GET("/customers", s.handleListCustomers)
	crmGroup.POST("/accounts", s.handleSaveAccount)
	crmGroup.GET("/accounts", s.handleListAccounts)
	crmGroup.GET("/accounts/:id/orders", s.handleListOrders)

	portfolio := s.router.Group("/api/portfolio")
	portfolio.GET("/bots", s.handleBots)
	portfolio.GET("/bots/:symbol", s.handleBot)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("[http] listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
