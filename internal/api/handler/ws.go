package handler

import (
	"net/http"

	"safecase/backend/internal/casehub"
	"safecase/backend/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Streams are authenticated by token, not cookies.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeCaseStream upgrades GET /ws/cases/:id to a websocket carrying the
// case's message history followed by its live events. The token comes from
// the Authorization header or the token query parameter, since browsers
// cannot set headers on websocket requests.
func (h *Handler) ServeCaseStream(c *gin.Context) {
	token := extractBearerToken(c)
	if token == "" {
		token = c.Query("token")
	}
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
		return
	}
	if _, err := h.Tokens.Validate(token); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
		return
	}

	id, ok := caseIDParam(c)
	if !ok {
		return
	}
	if _, found := h.Ledger.Case(id); !found {
		h.abortWithLedgerError(c, ledger.ErrCaseNotFound)
		return
	}
	if h.Hub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "stream_unavailable"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := casehub.NewWebSocketClient(h.Hub, conn, id, h.logger)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	// Registered first so nothing committed after the history read is missed.
	client.SetBacklog(h.Ledger.Messages(id, 0, 0))
	client.Run()
}
