package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"skill-exchange/internal/auth"
	"skill-exchange/internal/middleware"
	"skill-exchange/internal/models"
)

func currentUser(c *gin.Context) (auth.Session, bool) {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return s, ok
}

// StatusFilter reads the optional "status" query parameter. Values may be
// repeated or comma separated; an absent parameter means every status.
func StatusFilter(c *gin.Context) []models.RequestStatus {
	var out []models.RequestStatus
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, models.RequestStatus(strings.ToLower(part)))
			}
		}
	}
	return out
}

// ViewsFor presents sessions from userID's side.
func ViewsFor(userID string, sessions []models.SkillSession) []models.SessionView {
	views := make([]models.SessionView, 0, len(sessions))
	for _, s := range sessions {
		if v, ok := s.ViewFor(userID); ok {
			views = append(views, v)
		}
	}
	return views
}
