package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"skill-exchange/internal/models"
	"skill-exchange/internal/services"
	"skill-exchange/internal/telemetry"
)

// RequestHandler manages skill request endpoints.
type RequestHandler struct {
	ledger *services.Ledger
	audit  *telemetry.AuditEmitter
}

// NewRequestHandler builds a RequestHandler.
func NewRequestHandler(ledger *services.Ledger, audit *telemetry.AuditEmitter) *RequestHandler {
	return &RequestHandler{ledger: ledger, audit: audit}
}

// Submit sends a new skill request from the caller.
func (h *RequestHandler) Submit(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		ToUser         string `json:"to_user" binding:"required"`
		SkillRequested string `json:"skill_requested" binding:"required"`
		SkillOffered   string `json:"skill_offered" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "WARN", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.ledger.Submit(c.Request.Context(), user, req.ToUser, req.SkillRequested, req.SkillOffered)
	if err != nil {
		auditFailure(c, h.audit, err)
		RespondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "Skill request sent")
	c.JSON(http.StatusCreated, created)
}

// ListIncoming returns requests addressed to the caller.
func (h *RequestHandler) ListIncoming(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	reqs, err := h.ledger.ListIncoming(c.Request.Context(), user.UserID, StatusFilter(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

// ListOutgoing returns requests the caller sent.
func (h *RequestHandler) ListOutgoing(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	reqs, err := h.ledger.ListOutgoing(c.Request.Context(), user.UserID, StatusFilter(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (h *RequestHandler) Get(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	req, err := h.ledger.Get(c.Request.Context(), user.UserID, c.Param("request_id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// Respond accepts or rejects a pending request addressed to the caller.
func (h *RequestHandler) Respond(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Decision models.Decision `json:"decision" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "WARN", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resolved, session, err := h.ledger.Respond(c.Request.Context(), user, c.Param("request_id"), req.Decision)
	if err != nil {
		auditFailure(c, h.audit, err)
		RespondError(c, err)
		return
	}

	resp := gin.H{"request": resolved}
	if session != nil {
		view, _ := session.ViewFor(user.UserID)
		resp["session"] = view
		emitAudit(c, h.audit, "INFO", "Skill request accepted")
	} else {
		emitAudit(c, h.audit, "INFO", "Skill request rejected")
	}
	c.JSON(http.StatusOK, resp)
}
