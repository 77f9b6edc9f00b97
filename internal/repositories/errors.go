package repositories

import (
	"context"
	"errors"

	"skill-exchange/internal/models"
)

var (
	ErrRequestNotFound   = errors.New("skill request not found")
	ErrRequestNotPending = errors.New("skill request already resolved")
	ErrSessionNotFound   = errors.New("skill session not found")
	ErrSessionNotActive  = errors.New("skill session not active")
)

// SessionDeriver builds the session that accompanies an accepted request.
// It runs inside the resolving transaction.
type SessionDeriver func(req models.SkillRequest) models.SkillSession

// RequestRepository abstracts skill request persistence.
type RequestRepository interface {
	CreateRequest(ctx context.Context, req models.SkillRequest) (models.SkillRequest, error)
	GetRequest(ctx context.Context, requestID string) (models.SkillRequest, error)
	ListIncoming(ctx context.Context, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error)
	ListOutgoing(ctx context.Context, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error)
	// Resolve moves a pending request to status. When derive is non-nil the
	// derived session is inserted in the same transaction.
	Resolve(ctx context.Context, requestID string, status models.RequestStatus, derive SessionDeriver) (models.SkillRequest, *models.SkillSession, error)
	ListAcceptedWithoutSession(ctx context.Context, limit int) ([]models.SkillRequest, error)
}

// SessionRepository abstracts skill session persistence.
type SessionRepository interface {
	// CreateSession inserts s unless a session for s.RequestID exists, in
	// which case the existing one is returned.
	CreateSession(ctx context.Context, s models.SkillSession) (models.SkillSession, error)
	GetSession(ctx context.Context, sessionID string) (models.SkillSession, error)
	ListSessionsForUser(ctx context.Context, userID string, status models.SessionStatus) ([]models.SkillSession, error)
	CompleteSession(ctx context.Context, sessionID string) (models.SkillSession, error)
}

// MessageRepository abstracts chat message persistence.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListSessionMessages(ctx context.Context, sessionID string) ([]models.Message, error)
}
