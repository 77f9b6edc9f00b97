package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"skill-exchange/internal/models"
	"skill-exchange/internal/services"
	"skill-exchange/internal/telemetry"
)

// SessionHandler manages skill session and chat endpoints.
type SessionHandler struct {
	registry *services.Registry
	stream   *services.Stream
	audit    *telemetry.AuditEmitter
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(registry *services.Registry, stream *services.Stream, audit *telemetry.AuditEmitter) *SessionHandler {
	return &SessionHandler{registry: registry, stream: stream, audit: audit}
}

// List returns the caller's sessions; ?status=completed switches from the
// default active list.
func (h *SessionHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var (
		sessions []models.SkillSession
		err      error
	)
	switch models.SessionStatus(c.DefaultQuery("status", string(models.SessionStatusActive))) {
	case models.SessionStatusActive:
		sessions, err = h.registry.ListActive(c.Request.Context(), user.UserID)
	case models.SessionStatusCompleted:
		sessions, err = h.registry.ListCompleted(c.Request.Context(), user.UserID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be active or completed"})
		return
	}
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": ViewsFor(user.UserID, sessions)})
}

func (h *SessionHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	s, err := h.registry.Get(c.Request.Context(), user.UserID, c.Param("session_id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	view, _ := s.ViewFor(user.UserID)
	c.JSON(http.StatusOK, view)
}

// Complete marks the session completed.
func (h *SessionHandler) Complete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	s, err := h.registry.MarkCompleted(c.Request.Context(), user, c.Param("session_id"))
	if err != nil {
		auditFailure(c, h.audit, err)
		RespondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Skill session completed")
	view, _ := s.ViewFor(user.UserID)
	c.JSON(http.StatusOK, view)
}

// Messages returns the session chat, oldest first.
func (h *SessionHandler) Messages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	msgs, err := h.stream.History(c.Request.Context(), user.UserID, c.Param("session_id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage appends a chat message; live views pick it up from the feed.
func (h *SessionHandler) PostMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "WARN", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.stream.Send(c.Request.Context(), user, c.Param("session_id"), req.Text)
	if err != nil {
		auditFailure(c, h.audit, err)
		RespondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "Session message sent")
	c.JSON(http.StatusCreated, msg)
}
