package handler

import (
	"net/http"

	"safecase/backend/internal/ledger"

	"github.com/gin-gonic/gin"
)

type registerAgentRequest struct {
	Agent  string `json:"agent" binding:"required,max=256"`
	Region string `json:"region" binding:"max=64"`
}

type setAgentActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// RegisterAgent handles POST /api/v1/agents. Coordinator only; the first
// coordinator-gated call on a fresh ledger designates its caller.
func (h *Handler) RegisterAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	agent := ledger.Identity(req.Agent)
	if err := h.Ledger.RegisterAgent(c.Request.Context(), Caller(c), agent, req.Region); err != nil {
		h.abortWithLedgerError(c, err)
		return
	}
	rec, _ := h.Ledger.Agent(agent)
	c.JSON(http.StatusCreated, rec)
}

// SetAgentActive handles PATCH /api/v1/agents/:id.
func (h *Handler) SetAgentActive(c *gin.Context) {
	var req setAgentActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	agent := ledger.Identity(c.Param("id"))
	if err := h.Ledger.SetAgentActive(c.Request.Context(), Caller(c), agent, *req.Active); err != nil {
		h.abortWithLedgerError(c, err)
		return
	}
	rec, _ := h.Ledger.Agent(agent)
	c.JSON(http.StatusOK, rec)
}

// GetAgent handles GET /api/v1/agents/:id.
func (h *Handler) GetAgent(c *gin.Context) {
	rec, ok := h.Ledger.Agent(ledger.Identity(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent_not_found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetCoordinator handles GET /api/v1/coordinator.
func (h *Handler) GetCoordinator(c *gin.Context) {
	coordinator, ok := h.Ledger.Coordinator()
	resp := gin.H{
		"designated":            ok,
		"caller_is_coordinator": h.Ledger.IsCoordinator(Caller(c)),
	}
	if ok {
		resp["coordinator"] = coordinator
	}
	c.JSON(http.StatusOK, resp)
}
