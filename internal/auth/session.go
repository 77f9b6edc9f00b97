// Package auth holds the authenticated caller for the duration of a
// request. Components receive the Session explicitly; the context helpers
// only carry it from the middleware to the handler.
package auth

import (
	"context"
	"strings"
	"time"
)

// Session identifies the signed-in user.
type Session struct {
	UserID          string
	DisplayName     string
	Email           string
	AuthenticatedAt time.Time
}

// Valid reports whether the session names a user.
func (s Session) Valid() bool {
	return strings.TrimSpace(s.UserID) != ""
}

// Name returns the display name, falling back to the email.
func (s Session) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Email
}

// Clear signs the session out.
func (s *Session) Clear() {
	*s = Session{}
}

type contextKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	if !ok || !s.Valid() {
		return Session{}, false
	}
	return s, true
}
