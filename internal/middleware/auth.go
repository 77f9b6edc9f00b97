package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"skill-exchange/internal/auth"
	"skill-exchange/internal/observability"
)

const (
	// SessionKey holds the auth.Session in the gin context.
	SessionKey   = "session"
	RequestIDKey = "request_id"
)

// Authenticator validates a bearer token.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (auth.Session, error)
}

// RequestID tags every request with X-Request-ID, generating one when the
// client sent none.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := observability.RequestIDFromRequest(c.Request)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(observability.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// AuthMiddleware validates the Authorization header. Browsers cannot set
// headers on a websocket upgrade, so a "token" query parameter is accepted
// as well.
func AuthMiddleware(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}

		session, err := authenticator.ValidateToken(c.Request.Context(), token)
		if err != nil || !session.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(SessionKey, session)
		c.Request = c.Request.WithContext(auth.WithSession(c.Request.Context(), session))
		c.Next()
		session.Clear()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// SessionFrom returns the session stored by AuthMiddleware.
func SessionFrom(c *gin.Context) (auth.Session, bool) {
	if val, ok := c.Get(SessionKey); ok {
		if s, ok := val.(auth.Session); ok && s.Valid() {
			return s, true
		}
	}
	return auth.FromContext(c.Request.Context())
}
