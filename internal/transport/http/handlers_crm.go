package apihttp

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"shadowtrade/internal/crm"
)

func (s *Server) crmReady(c *gin.Context) bool {
	if s.crm == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "crm store not configured"})
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func crmStatus(err error) int {
	if errors.Is(err, crm.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) handleSaveAgent(c *gin.Context) {
	if !s.crmReady(c) {
		return
	}
	var agent crm.Agent
	if err := c.ShouldBindJSON(&agent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.crm.SaveAgent(c.Request.Context(), &agent); err != nil {
		c.JSON(crmStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}

func (s *Server) handleListAgents(c *gin.Context) {
	if !s.crmReady(c) {
		return
	}
	agents, err := s.crm.ListAgents(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (s *Server) handleGetAgent(c *gin.Context) {
	if !s.crmReady(c) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	agent, err := s.crm.GetAgent(c.Request.Context(), id)
	if err != nil {
		c.JSON(crmStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}

func (s *Server) handleDeleteAgent(c *gin.Context) {
	if !s.crmReady(c) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.crm.DeleteAgent(c.Request.Context(), id); err != nil {
		c.JSON(crmStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) handleSaveCustomer(c *gin.Context) {
	if !s.crmReady(c) {
		return
	}
	var customer crm.Customer
	if err := c.ShouldBindJSON(&customer); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.crm.SaveCustomer(c.Request.Context(), &customer); err != nil {
		c.JSON(crmStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": customer})
}

func (s *Server) handleListCustomers(c *gin.Context) {
	if !s.crmReady(c) {
		return
	}
	agentID, _ := strconv.ParseInt(c.Query("agent_id"), 10, 64)
	customers, err := s.crm.ListCustomers(c.Request.Context(), agentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (s *Server) handleSaveAccount(c *gin.Context) {
	if !s.crmReady(c) {
		return
	}
	var account crm.Account
	if err := c.ShouldBindJSON(&account); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.crm.SaveAccount(c.Request.Context(), &account); err != nil {
		c.JSON(crmStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account})
}

func (s *Server) handleListAccounts(c *gin.Context) {
	if !s.crmReady(c) {
		return
	}
	customerID, _ := strconv.ParseInt(c.Query("customer_id"), 10, 64)
	accounts, err := s.crm.ListAccounts(c.Request.Context(), customerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (s *Server) handleListOrders(c *gin.Context) {
	if !s.crmReady(c) {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	orders, err := s.crm.ListOrders(c.Request.Context(), id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
