package apihttp

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shadowtrade/internal/analysis/indicator"
	"shadowtrade/internal/analysis/visual"
	"shadowtrade/internal/market"
)

func (s *Server) handleIndicators(c *gin.Context) {
	symbol := c.Query("symbol")
	tf := c.Query("timeframe")
	if symbol == "" || tf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and timeframe are required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "300"))
	candles, err := s.market.QueryCandles(c.Request.Context(), symbol, tf, 0, 0, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := indicator.Snapshot(candles, indicator.Settings{Symbol: symbol, Timeframe: tf})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, market.ErrNoData) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// handleChart renders the price/volume page, optionally overlaying a
// persisted backtest run's equity curve. format=png needs headless
// Chrome on the host.
func (s *Server) handleChart(c *gin.Context) {
	symbol := c.Query("symbol")
	tf := c.Query("timeframe")
	if symbol == "" || tf == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol and timeframe are required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "300"))
	candles, err := s.market.QueryCandles(c.Request.Context(), symbol, tf, 0, 0, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report, err := indicator.Snapshot(candles, indicator.Settings{Symbol: symbol, Timeframe: tf})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, market.ErrNoData) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	input := visual.ChartInput{
		Symbol:    symbol,
		Timeframe: tf,
		Candles:   candles,
		Report:    report,
	}
	if runID := c.Query("run_id"); runID != "" {
		equity, err := s.runs.Equity(c.Request.Context(), runID, 0)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		trades, err := s.runs.Trades(c.Request.Context(), runID, 0)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		input.Equity = equity
		input.Trades = trades
	}

	switch c.DefaultQuery("format", "html") {
	case "png":
		img, err := visual.RenderPNG(c.Request.Context(), input)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "inline; filename="+img.Filename)
		c.Data(http.StatusOK, "image/png", img.Bytes)
	default:
		html, _, err := visual.RenderHTML(input)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", html)
	}
}
