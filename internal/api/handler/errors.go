package handler

import (
	"errors"
	"net/http"

	"safecase/backend/internal/ledger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps a ledger error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized),
		errors.Is(err, ledger.ErrNotAnAgent),
		errors.Is(err, ledger.ErrAgentInactive):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrCaseNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrCaseClosed),
		errors.Is(err, ledger.ErrRegionMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// abortWithLedgerError writes {"error": "<kind>"} for a failed ledger call.
func (h *Handler) abortWithLedgerError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("ledger operation failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": ledger.ErrorKind(err)})
}

func badRequest(c *gin.Context, detail string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": detail})
}
