package apihttp

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shadowtrade/internal/strategy"
)

func (s *Server) handleStrategies(c *gin.Context) {
	out := make([]gin.H, 0, len(strategy.Kinds()))
	for _, kind := range strategy.Kinds() {
		out = append(out, gin.H{
			"name":     string(kind),
			"defaults": strategy.Defaults(kind),
		})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": out})
}

func (s *Server) handleProfiles(c *gin.Context) {
	if s.profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profiles not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": s.profiles.Snapshot()})
}

func (s *Server) handleBots(c *gin.Context) {
	if s.fleet == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paper trading disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bots": s.fleet.Statuses()})
}

func (s *Server) handleBot(c *gin.Context) {
	if s.fleet == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "paper trading disabled"})
		return
	}
	status, ok := s.fleet.Status(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no bot for symbol"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bot": status})
}
