package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"skill-exchange/internal/services"
)

// StatusFor maps a service error to an HTTP status and client message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict, "invalid state"
	case errors.Is(err, services.ErrTransient):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// RespondError writes err as a JSON error body.
func RespondError(c *gin.Context, err error) {
	status, msg := StatusFor(err)
	c.JSON(status, gin.H{"error": msg})
}
