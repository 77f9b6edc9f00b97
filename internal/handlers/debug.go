package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"skill-exchange/internal/live"
	"skill-exchange/internal/telemetry"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, broker *live.Broker, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Forces every open live view to reload, as after a feed reconnect.
	router.POST("/debug/live/resync", func(c *gin.Context) {
		broker.NotifyAll()
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
