package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"skill-exchange/internal/middleware"
	"skill-exchange/internal/observability"
	"skill-exchange/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(middleware.RequestIDKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *string {
	if s, ok := middleware.SessionFrom(c); ok {
		userID := s.UserID
		return &userID
	}
	if header := c.GetHeader("X-User-ID"); header != "" {
		return &header
	}
	return nil
}

func emitAudit(c *gin.Context, audit *telemetry.AuditEmitter, level, text string) {
	if audit == nil {
		return
	}
	audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

// auditFailure records a failed operation at a level matching its status.
func auditFailure(c *gin.Context, audit *telemetry.AuditEmitter, err error) {
	status, msg := StatusFor(err)
	level := "WARN"
	if status >= 500 {
		level = "ERROR"
	}
	emitAudit(c, audit, level, msg)
}
