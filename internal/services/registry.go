package services

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"skill-exchange/internal/auth"
	"skill-exchange/internal/live"
	"skill-exchange/internal/models"
	"skill-exchange/internal/observability"
	"skill-exchange/internal/repositories"
)

// Registry owns skill sessions: creation from accepted requests,
// per-user listings and completion.
type Registry struct {
	sessions repositories.SessionRepository
	notifier
}

func NewRegistry(sessions repositories.SessionRepository, opts Options) *Registry {
	return &Registry{sessions: sessions, notifier: notifier{opts: opts.withDefaults()}}
}

// Derive builds the session for an accepted request. The recipient
// teaches the skill that was asked for; the requester teaches the skill
// they offered.
func (r *Registry) Derive(req models.SkillRequest) models.SkillSession {
	return models.SkillSession{
		ID:             r.opts.NewID(),
		RequestID:      req.ID,
		Participants:   pq.StringArray{req.FromUser, req.ToUser},
		TeacherUserID:  req.ToUser,
		LearnerUserID:  req.FromUser,
		TeacherName:    req.ToUserName,
		LearnerName:    req.FromUserName,
		TeacherTeaches: req.SkillRequested,
		LearnerTeaches: req.SkillOffered,
		Status:         models.SessionStatusActive,
	}
}

// CreateFromRequest stores the session for an accepted request. Calling it
// again for the same request returns the session already stored.
func (r *Registry) CreateFromRequest(ctx context.Context, req models.SkillRequest) (models.SkillSession, error) {
	if req.Status != models.RequestStatusAccepted {
		return models.SkillSession{}, ErrInvalidState
	}
	s, err := r.sessions.CreateSession(ctx, r.Derive(req))
	if err != nil {
		return models.SkillSession{}, storeError("create session", err)
	}
	r.changed(ctx, live.SessionsTopic(s.TeacherUserID), live.SessionsTopic(s.LearnerUserID))
	return s, nil
}

// Get returns a session the viewer takes part in.
func (r *Registry) Get(ctx context.Context, viewerID, sessionID string) (models.SkillSession, error) {
	s, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return models.SkillSession{}, ErrNotFound
		}
		return models.SkillSession{}, storeError("get session", err)
	}
	if !s.HasParticipant(viewerID) {
		return models.SkillSession{}, ErrForbidden
	}
	return s, nil
}

// ListActive returns userID's active sessions, newest first.
func (r *Registry) ListActive(ctx context.Context, userID string) ([]models.SkillSession, error) {
	return r.list(ctx, userID, models.SessionStatusActive)
}

// ListCompleted returns userID's completed sessions, newest first.
func (r *Registry) ListCompleted(ctx context.Context, userID string) ([]models.SkillSession, error) {
	return r.list(ctx, userID, models.SessionStatusCompleted)
}

func (r *Registry) list(ctx context.Context, userID string, status models.SessionStatus) ([]models.SkillSession, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("user id is required")
	}
	sessions, err := r.sessions.ListSessionsForUser(ctx, userID, status)
	if err != nil {
		return nil, storeError("list sessions", err)
	}
	return sessions, nil
}

// WatchActive pushes userID's active sessions now and after every change.
func (r *Registry) WatchActive(ctx context.Context, userID string, onUpdate func([]models.SkillSession), onError ErrorFunc) (live.Cancel, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("user id is required")
	}
	load := func(ctx context.Context) ([]models.SkillSession, error) {
		return r.ListActive(ctx, userID)
	}
	return live.Watch(ctx, r.opts.Broker, live.SessionsTopic(userID), load, onUpdate, r.watchOptions("sessions", onError)), nil
}

// MarkCompleted ends an active session on behalf of one of its
// participants.
func (r *Registry) MarkCompleted(ctx context.Context, actor auth.Session, sessionID string) (models.SkillSession, error) {
	s, err := r.Get(ctx, actor.UserID, sessionID)
	if err != nil {
		return models.SkillSession{}, err
	}
	if !s.IsActive() {
		return models.SkillSession{}, ErrInvalidState
	}

	done, err := r.sessions.CompleteSession(ctx, sessionID)
	switch {
	case errors.Is(err, repositories.ErrSessionNotFound):
		return models.SkillSession{}, ErrNotFound
	case errors.Is(err, repositories.ErrSessionNotActive):
		return models.SkillSession{}, ErrInvalidState
	case err != nil:
		return models.SkillSession{}, storeError("complete session", err)
	}

	observability.IncSessionCompleted()
	r.opts.Logger.Info("session completed", zap.String("session_id", done.ID), zap.String("user_id", actor.UserID))
	r.changed(ctx, live.SessionsTopic(done.TeacherUserID), live.SessionsTopic(done.LearnerUserID), live.MessagesTopic(done.ID))
	r.emit(ctx, "skill_session.completed", actor.UserID, done)
	return done, nil
}
