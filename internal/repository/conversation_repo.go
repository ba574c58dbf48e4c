package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-presence/internal/domain"
)

type ConversationRepository interface {
	Create(ctx context.Context, participantAID, participantBID int64) (domain.Conversation, error)
	GetByID(ctx context.Context, id int64) (domain.Conversation, error)
	FindActiveBetween(ctx context.Context, userA, userB int64) (domain.Conversation, error)
	ListByParticipant(ctx context.Context, userID int64) ([]domain.Conversation, error)
	Deactivate(ctx context.Context, id int64) error
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

const conversationColumns = `id, participant_a_id, participant_b_id, last_message, last_message_at, unread_a, unread_b, is_active, created_at`

func (r *PgConversationRepository) Create(ctx context.Context, participantAID, participantBID int64) (domain.Conversation, error) {
	const query = `
		INSERT INTO conversations (participant_a_id, participant_b_id)
		VALUES ($1, $2)
		RETURNING ` + conversationColumns
	return scanConversation(r.pool.QueryRow(ctx, query, participantAID, participantBID))
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id int64) (domain.Conversation, error) {
	const query = `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1
	`
	return scanConversation(r.pool.QueryRow(ctx, query, id))
}

func (r *PgConversationRepository) FindActiveBetween(ctx context.Context, userA, userB int64) (domain.Conversation, error) {
	const query = `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE is_active
		  AND ((participant_a_id = $1 AND participant_b_id = $2)
		    OR (participant_a_id = $2 AND participant_b_id = $1))
		ORDER BY id DESC
		LIMIT 1
	`
	return scanConversation(r.pool.QueryRow(ctx, query, userA, userB))
}

func (r *PgConversationRepository) ListByParticipant(ctx context.Context, userID int64) ([]domain.Conversation, error) {
	const query = `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE is_active AND (participant_a_id = $1 OR participant_b_id = $1)
		ORDER BY last_message_at DESC NULLS LAST, id DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PgConversationRepository) Deactivate(ctx context.Context, id int64) error {
	const query = `UPDATE conversations SET is_active = FALSE WHERE id = $1`
	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(
		&c.ID,
		&c.ParticipantAID,
		&c.ParticipantBID,
		&c.LastMessage,
		&c.LastMessageAt,
		&c.UnreadA,
		&c.UnreadB,
		&c.IsActive,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, err
	}
	return c, err
}
