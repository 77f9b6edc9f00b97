package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"skill-exchange/internal/models"
)

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message; the database assigns created_at and seq.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var created models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, session_id, sender_id, sender_name, text)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, session_id, sender_id, sender_name, text, seq, created_at`,
		msg.ID, msg.SessionID, msg.SenderID, msg.SenderName, msg.Text).
		Scan(&created.ID, &created.SessionID, &created.SenderID, &created.SenderName, &created.Text, &created.Seq, &created.CreatedAt)
	if err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return created, nil
}

// ListSessionMessages returns the session's messages in stream order.
func (r *MessageRepo) ListSessionMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT id, session_id, sender_id, sender_name, text, seq, created_at
        FROM messages
        WHERE session_id=$1
        ORDER BY created_at ASC, seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session messages: %w", err)
	}
	return msgs, nil
}
