package handler

import (
	"net/http"

	"safecase/backend/internal/metrics"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with every route.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(h.logger))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws/cases/:id", h.ServeCaseStream)

	v1 := r.Group("/api/v1", h.RequireIdentity())

	v1.GET("/coordinator", h.GetCoordinator)
	v1.POST("/agents", h.RegisterAgent)
	v1.GET("/agents/:id", h.GetAgent)
	v1.PATCH("/agents/:id", h.SetAgentActive)

	v1.POST("/cases", h.OpenCase)
	v1.GET("/cases", h.ListCases)
	v1.GET("/cases/next-id", h.GetNextCaseID)
	v1.GET("/cases/:id", h.GetCase)
	v1.POST("/cases/:id/assign", h.AssignCase)
	v1.POST("/cases/:id/close", h.CloseCase)

	v1.POST("/cases/:id/messages/citizen", h.SendCitizenMessage)
	v1.POST("/cases/:id/messages/police", h.SendPoliceMessage)
	v1.GET("/cases/:id/messages", h.ListMessages)
	v1.GET("/cases/:id/messages/count", h.GetMessageCount)
	v1.GET("/cases/:id/messages/:index", h.GetMessage)

	return r
}
