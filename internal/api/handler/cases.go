package handler

import (
	"net/http"
	"strconv"

	"safecase/backend/internal/commitment"
	"safecase/backend/internal/ledger"
	"safecase/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type openCaseRequest struct {
	Region  string `json:"region" binding:"max=64"`
	Subject string `json:"subject" binding:"max=200"`
	Details string `json:"details" binding:"max=4096"`
	// Secret is optional; when empty the server generates one.
	Secret string `json:"secret" binding:"omitempty,len=66,startswith=0x,hexadecimal"`
}

type openCaseResponse struct {
	CaseID             uint64                `json:"case_id"`
	ReporterCommitment commitment.Commitment `json:"reporter_commitment"`
	// Secret is only returned when the server generated it.
	Secret *commitment.Secret `json:"secret,omitempty"`
}

type assignCaseRequest struct {
	Agent string `json:"agent" binding:"required,max=256"`
}

// OpenCase handles POST /api/v1/cases. The caller's identity is not recorded.
func (h *Handler) OpenCase(c *gin.Context) {
	var req openCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	var (
		secret    commitment.Secret
		generated bool
		err       error
	)
	if req.Secret == "" {
		secret, err = commitment.NewSecret()
		if err != nil {
			h.logger.Error("failed to generate reporter secret", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		generated = true
	} else if secret, err = commitment.ParseSecret(req.Secret); err != nil {
		badRequest(c, "secret must be 32 bytes of hex")
		return
	}

	id, err := h.Ledger.OpenCase(c.Request.Context(), Caller(c), req.Region, req.Subject, req.Details, secret)
	if err != nil {
		h.abortWithLedgerError(c, err)
		return
	}

	resp := openCaseResponse{CaseID: id, ReporterCommitment: commitment.Commit(secret)}
	if generated {
		resp.Secret = &secret
	}
	c.JSON(http.StatusCreated, resp)
}

// ListCases handles GET /api/v1/cases?region=&agent=&status=.
func (h *Handler) ListCases(c *gin.Context) {
	if h.Index == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "index_unavailable"})
		return
	}

	filter := storage.CaseFilter{
		Region: c.Query("region"),
		Agent:  c.Query("agent"),
		Status: c.Query("status"),
	}
	switch filter.Status {
	case "", ledger.StatusOpen.String(), ledger.StatusClosed.String():
	default:
		badRequest(c, "status must be open or closed")
		return
	}

	cases, err := h.Index.ListCases(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list cases", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

// GetNextCaseID handles GET /api/v1/cases/next-id.
func (h *Handler) GetNextCaseID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"next_case_id": h.Ledger.NextCaseID()})
}

// GetCase handles GET /api/v1/cases/:id.
func (h *Handler) GetCase(c *gin.Context) {
	id, ok := caseIDParam(c)
	if !ok {
		return
	}
	rec, found := h.Ledger.Case(id)
	if !found {
		h.abortWithLedgerError(c, ledger.ErrCaseNotFound)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// AssignCase handles POST /api/v1/cases/:id/assign.
func (h *Handler) AssignCase(c *gin.Context) {
	id, ok := caseIDParam(c)
	if !ok {
		return
	}
	var req assignCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.Ledger.AssignCase(c.Request.Context(), Caller(c), id, ledger.Identity(req.Agent)); err != nil {
		h.abortWithLedgerError(c, err)
		return
	}
	rec, _ := h.Ledger.Case(id)
	c.JSON(http.StatusOK, rec)
}

// CloseCase handles POST /api/v1/cases/:id/close.
func (h *Handler) CloseCase(c *gin.Context) {
	id, ok := caseIDParam(c)
	if !ok {
		return
	}
	if err := h.Ledger.CloseCase(c.Request.Context(), Caller(c), id); err != nil {
		h.abortWithLedgerError(c, err)
		return
	}
	rec, _ := h.Ledger.Case(id)
	c.JSON(http.StatusOK, rec)
}

// caseIDParam parses :id, answering 400 itself when it is malformed.
func caseIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "case id must be an unsigned integer")
		return 0, false
	}
	return id, true
}
