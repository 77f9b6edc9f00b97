package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"skill-exchange/internal/models"
)

const sessionColumns = `id, request_id, participants, teacher_user_id, learner_user_id, teacher_name, learner_name,
    teacher_teaches, learner_teaches, status, created_at, completed_at`

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// CreateSession inserts the session or returns the one already recorded
// for the same request.
func (r *SessionRepo) CreateSession(ctx context.Context, s models.SkillSession) (models.SkillSession, error) {
	return insertSession(ctx, r.db, s)
}

func insertSession(ctx context.Context, q sqlx.QueryerContext, s models.SkillSession) (models.SkillSession, error) {
	var created models.SkillSession
	err := sqlx.GetContext(ctx, q, &created, `INSERT INTO skill_sessions
        (id, request_id, participants, teacher_user_id, learner_user_id, teacher_name, learner_name,
         teacher_teaches, learner_teaches, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (request_id) DO NOTHING
        RETURNING `+sessionColumns,
		s.ID, s.RequestID, s.Participants, s.TeacherUserID, s.LearnerUserID, s.TeacherName, s.LearnerName,
		s.TeacherTeaches, s.LearnerTeaches, s.Status)
	if errors.Is(err, sql.ErrNoRows) {
		if err := sqlx.GetContext(ctx, q, &created, `SELECT `+sessionColumns+` FROM skill_sessions WHERE request_id=$1`, s.RequestID); err != nil {
			return models.SkillSession{}, fmt.Errorf("load existing session: %w", err)
		}
		return created, nil
	}
	if err != nil {
		return models.SkillSession{}, fmt.Errorf("insert skill session: %w", err)
	}
	return created, nil
}

// GetSession fetches a session by id.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID string) (models.SkillSession, error) {
	var s models.SkillSession
	err := r.db.GetContext(ctx, &s, `SELECT `+sessionColumns+` FROM skill_sessions WHERE id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SkillSession{}, ErrSessionNotFound
	}
	return s, err
}

// ListSessionsForUser returns the user's sessions in status, newest first.
func (r *SessionRepo) ListSessionsForUser(ctx context.Context, userID string, status models.SessionStatus) ([]models.SkillSession, error) {
	sessions := []models.SkillSession{}
	err := r.db.SelectContext(ctx, &sessions, `SELECT `+sessionColumns+` FROM skill_sessions
        WHERE $1 = ANY(participants) AND status=$2
        ORDER BY created_at DESC, id DESC`, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list skill sessions: %w", err)
	}
	return sessions, nil
}

// CompleteSession marks an active session completed.
func (r *SessionRepo) CompleteSession(ctx context.Context, sessionID string) (models.SkillSession, error) {
	var s models.SkillSession
	err := r.db.GetContext(ctx, &s, `UPDATE skill_sessions
        SET status='completed', completed_at=NOW()
        WHERE id=$1 AND status='active'
        RETURNING `+sessionColumns, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM skill_sessions WHERE id=$1)`, sessionID); err != nil {
			return models.SkillSession{}, err
		}
		if !exists {
			return models.SkillSession{}, ErrSessionNotFound
		}
		return models.SkillSession{}, ErrSessionNotActive
	}
	if err != nil {
		return models.SkillSession{}, fmt.Errorf("complete skill session: %w", err)
	}
	return s, nil
}
