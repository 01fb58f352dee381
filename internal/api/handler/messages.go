package handler

import (
	"context"
	"net/http"
	"strconv"

	"safecase/backend/internal/config"
	"safecase/backend/internal/ledger"

	"github.com/gin-gonic/gin"
)

type sendMessageRequest struct {
	Content string `json:"content" binding:"max=4096"`
}

// SendCitizenMessage handles POST /api/v1/cases/:id/messages/citizen.
func (h *Handler) SendCitizenMessage(c *gin.Context) {
	h.sendMessage(c, h.Ledger.SendCitizenMessage)
}

// SendPoliceMessage handles POST /api/v1/cases/:id/messages/police.
func (h *Handler) SendPoliceMessage(c *gin.Context) {
	h.sendMessage(c, h.Ledger.SendPoliceMessage)
}

func (h *Handler) sendMessage(c *gin.Context, send func(ctx context.Context, caller ledger.Identity, caseID uint64, content string) (uint64, error)) {
	id, ok := caseIDParam(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	index, err := send(c.Request.Context(), Caller(c), id, req.Content)
	if err != nil {
		h.abortWithLedgerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"case_id": id, "index": index})
}

// ListMessages handles GET /api/v1/cases/:id/messages?from=&limit=.
func (h *Handler) ListMessages(c *gin.Context) {
	id, ok := caseIDParam(c)
	if !ok {
		return
	}
	from, err := uintQuery(c, "from", 0)
	if err != nil {
		badRequest(c, "from must be an unsigned integer")
		return
	}
	limit, err := uintQuery(c, "limit", config.DefaultPageSize)
	if err != nil || limit == 0 || limit > config.MaxPageSize {
		badRequest(c, "limit must be between 1 and "+strconv.Itoa(config.MaxPageSize))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"case_id":  id,
		"count":    h.Ledger.MessageCount(id),
		"messages": h.Ledger.Messages(id, from, limit),
	})
}

// GetMessageCount handles GET /api/v1/cases/:id/messages/count. Unknown
// cases count zero.
func (h *Handler) GetMessageCount(c *gin.Context) {
	id, ok := caseIDParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"case_id": id, "count": h.Ledger.MessageCount(id)})
}

// GetMessage handles GET /api/v1/cases/:id/messages/:index.
func (h *Handler) GetMessage(c *gin.Context) {
	id, ok := caseIDParam(c)
	if !ok {
		return
	}
	index, err := strconv.ParseUint(c.Param("index"), 10, 64)
	if err != nil {
		badRequest(c, "index must be an unsigned integer")
		return
	}

	msg, found := h.Ledger.Message(id, index)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "message_not_found"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func uintQuery(c *gin.Context, key string, fallback uint64) (uint64, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseUint(v, 10, 64)
}
