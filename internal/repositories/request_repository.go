package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"skill-exchange/internal/models"
)

const requestColumns = `id, from_user, from_user_name, to_user, to_user_name, skill_requested, skill_offered, status, created_at, responded_at, updated_at`

// RequestRepo is a sqlx implementation of RequestRepository.
type RequestRepo struct {
	db *sqlx.DB
}

// NewRequestRepo constructs a RequestRepo.
func NewRequestRepo(db *sqlx.DB) *RequestRepo {
	return &RequestRepo{db: db}
}

// CreateRequest stores a new request and returns it with server timestamps.
func (r *RequestRepo) CreateRequest(ctx context.Context, req models.SkillRequest) (models.SkillRequest, error) {
	var created models.SkillRequest
	err := r.db.GetContext(ctx, &created, `INSERT INTO skill_requests
        (id, from_user, from_user_name, to_user, to_user_name, skill_requested, skill_offered, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING `+requestColumns,
		req.ID, req.FromUser, req.FromUserName, req.ToUser, req.ToUserName, req.SkillRequested, req.SkillOffered, req.Status)
	if err != nil {
		return models.SkillRequest{}, fmt.Errorf("insert skill request: %w", err)
	}
	return created, nil
}

// GetRequest fetches a request by id.
func (r *RequestRepo) GetRequest(ctx context.Context, requestID string) (models.SkillRequest, error) {
	var req models.SkillRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM skill_requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SkillRequest{}, ErrRequestNotFound
	}
	return req, err
}

// ListIncoming returns requests addressed to userID, newest first.
func (r *RequestRepo) ListIncoming(ctx context.Context, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error) {
	return r.list(ctx, "to_user", userID, statuses)
}

// ListOutgoing returns requests sent by userID, newest first.
func (r *RequestRepo) ListOutgoing(ctx context.Context, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error) {
	return r.list(ctx, "from_user", userID, statuses)
}

func (r *RequestRepo) list(ctx context.Context, column, userID string, statuses []models.RequestStatus) ([]models.SkillRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM skill_requests WHERE ` + column + `=$1`
	args := []any{userID}
	if len(statuses) > 0 {
		names := make([]string, 0, len(statuses))
		for _, s := range statuses {
			names = append(names, string(s))
		}
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(names))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	reqs := []models.SkillRequest{}
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, fmt.Errorf("list skill requests by %s: %w", column, err)
	}
	return reqs, nil
}

// Resolve performs the guarded pending -> status transition. Concurrent
// resolvers serialise on the row lock; the loser sees ErrRequestNotPending.
func (r *RequestRepo) Resolve(ctx context.Context, requestID string, status models.RequestStatus, derive SessionDeriver) (models.SkillRequest, *models.SkillSession, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.SkillRequest{}, nil, fmt.Errorf("begin resolve: %w", err)
	}
	defer tx.Rollback()

	var req models.SkillRequest
	err = tx.GetContext(ctx, &req, `UPDATE skill_requests
        SET status=$2, responded_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND status='pending'
        RETURNING `+requestColumns, requestID, status)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM skill_requests WHERE id=$1)`, requestID); err != nil {
			return models.SkillRequest{}, nil, err
		}
		if !exists {
			return models.SkillRequest{}, nil, ErrRequestNotFound
		}
		return models.SkillRequest{}, nil, ErrRequestNotPending
	}
	if err != nil {
		return models.SkillRequest{}, nil, fmt.Errorf("update skill request: %w", err)
	}

	var session *models.SkillSession
	if derive != nil {
		created, err := insertSession(ctx, tx, derive(req))
		if err != nil {
			return models.SkillRequest{}, nil, err
		}
		session = &created
	}

	if err := tx.Commit(); err != nil {
		return models.SkillRequest{}, nil, fmt.Errorf("commit resolve: %w", err)
	}
	return req, session, nil
}

// ListAcceptedWithoutSession finds accepted requests whose session is
// missing, oldest response first.
func (r *RequestRepo) ListAcceptedWithoutSession(ctx context.Context, limit int) ([]models.SkillRequest, error) {
	query := `SELECT r.id, r.from_user, r.from_user_name, r.to_user, r.to_user_name, r.skill_requested,
            r.skill_offered, r.status, r.created_at, r.responded_at, r.updated_at
        FROM skill_requests r
        LEFT JOIN skill_sessions s ON s.request_id = r.id
        WHERE r.status='accepted' AND s.id IS NULL
        ORDER BY r.responded_at ASC NULLS FIRST
        LIMIT $1`
	reqs := []models.SkillRequest{}
	if err := r.db.SelectContext(ctx, &reqs, query, limit); err != nil {
		return nil, fmt.Errorf("list orphaned accepted requests: %w", err)
	}
	return reqs, nil
}
