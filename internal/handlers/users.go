package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"skill-exchange/internal/models"
	"skill-exchange/internal/services"
)

const maxBrowseLimit = 100

// UserHandler lets the caller browse the directory for partners.
type UserHandler struct {
	ledger *services.Ledger
}

func NewUserHandler(ledger *services.Ledger) *UserHandler {
	return &UserHandler{ledger: ledger}
}

// Browse lists users by skill: ?skill=Spanish&kind=teach&limit=20.
func (h *UserHandler) Browse(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	limit := maxBrowseLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if n < limit {
			limit = n
		}
	}

	users, err := h.ledger.BrowseUsers(c.Request.Context(), user, models.UserQuery{
		Skill: c.Query("skill"),
		Kind:  models.SkillKind(c.Query("kind")),
		Limit: limit,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
