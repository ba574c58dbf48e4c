package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-presence/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)
	ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, recipientID int64) error
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
}

type PgNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPgNotificationRepository(pool *pgxpool.Pool) *PgNotificationRepository {
	return &PgNotificationRepository{pool: pool}
}

func (r *PgNotificationRepository) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	const query = `
		INSERT INTO notifications (recipient_id, category, heading, body, link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.pool.QueryRow(ctx, query,
		n.RecipientID,
		n.Category,
		n.Heading,
		n.Body,
		n.Link,
		n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}

func (r *PgNotificationRepository) ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, recipient_id, category, heading, body, link, is_read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY id DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Category, &n.Heading, &n.Body, &n.Link, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead solo afecta notificaciones del propio destinatario.
func (r *PgNotificationRepository) MarkRead(ctx context.Context, id, recipientID int64) error {
	const query = `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`
	ct, err := r.pool.Exec(ctx, query, id, recipientID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgNotificationRepository) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	const query = `UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read`
	ct, err := r.pool.Exec(ctx, query, recipientID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
