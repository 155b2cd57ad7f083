package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"voicedash/internal/httpapi"
	"voicedash/pkg/utils"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, db *sql.DB) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	{
		callGroup := v1.Group("/calls")
		{
			callGroup.POST("", h.DispatchSingle)
			callGroup.POST("/bulk", h.DispatchBulk)
			callGroup.GET("", h.ListCalls)
			callGroup.DELETE("", h.ClearCalls)
			callGroup.POST("/:provider_call_id/refresh", h.RefreshCall)
			callGroup.GET("/:provider_call_id/recording", h.GetRecording)
		}

		v1.POST("/targets/parse", h.ParseTargets)

		v1.GET("/reports/calls", h.CallsReport)

		customers := v1.Group("/customers")
		{
			customers.GET("", h.ListCustomers)
			customers.POST("", h.CreateCustomer)
			customers.DELETE("/:id", h.DeleteCustomer)
		}
	}
}
