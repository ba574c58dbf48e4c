package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-presence/internal/db"
	"chat-presence/internal/domain"
)

// MessageRepository persiste mensajes y las transiciones Sent -> Delivered -> Read.
type MessageRepository interface {
	// CreateInConversation inserta el mensaje, actualiza el resumen de la conversacion e
	// incrementa el contador de no leidos del destinatario en una sola transaccion.
	CreateInConversation(ctx context.Context, msg domain.Message, recipientID int64, preview string) (domain.Message, error)
	// MarkDelivered marca como entregados los mensajes pendientes dirigidos a recipientID
	// y devuelve el sender de cada fila que cambio.
	MarkDelivered(ctx context.Context, conversationID, recipientID int64, at time.Time) ([]int64, error)
	// MarkRead marca como leidos (y entregados) los mensajes dirigidos a readerID y
	// pone a cero su contador de no leidos.
	MarkRead(ctx context.Context, conversationID, readerID int64, at time.Time) ([]int64, error)
	ListByConversation(ctx context.Context, conversationID, beforeID int64, limit int) ([]domain.Message, error)
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) CreateInConversation(ctx context.Context, msg domain.Message, recipientID int64, preview string) (domain.Message, error) {
	const insertQuery = `
		INSERT INTO messages (conversation_id, sender_id, body, type, attachment_url, is_delivered, delivered_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	// El incremento es atomico en SQL; dos envios concurrentes no pierden actualizaciones.
	const touchQuery = `
		UPDATE conversations
		SET last_message = $2,
		    last_message_at = $3,
		    unread_a = unread_a + CASE WHEN participant_a_id = $4 THEN 1 ELSE 0 END,
		    unread_b = unread_b + CASE WHEN participant_b_id = $4 THEN 1 ELSE 0 END
		WHERE id = $1
	`

	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertQuery,
			msg.ConversationID,
			msg.SenderID,
			msg.Body,
			msg.Type,
			msg.AttachmentURL,
			msg.IsDelivered,
			msg.DeliveredAt,
			msg.CreatedAt,
		).Scan(&msg.ID); err != nil {
			return err
		}

		ct, err := tx.Exec(ctx, touchQuery, msg.ConversationID, preview, msg.CreatedAt, recipientID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

func (r *PgMessageRepository) MarkDelivered(ctx context.Context, conversationID, recipientID int64, at time.Time) ([]int64, error) {
	const query = `
		UPDATE messages
		SET is_delivered = TRUE, delivered_at = $3
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND NOT is_delivered
		RETURNING sender_id
	`
	rows, err := r.pool.Query(ctx, query, conversationID, recipientID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (r *PgMessageRepository) MarkRead(ctx context.Context, conversationID, readerID int64, at time.Time) ([]int64, error) {
	const readQuery = `
		UPDATE messages
		SET is_read = TRUE,
		    read_at = $3,
		    is_delivered = TRUE,
		    delivered_at = COALESCE(delivered_at, $3)
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND NOT is_read
		RETURNING sender_id
	`
	const resetQuery = `
		UPDATE conversations
		SET unread_a = CASE WHEN participant_a_id = $2 THEN 0 ELSE unread_a END,
		    unread_b = CASE WHEN participant_b_id = $2 THEN 0 ELSE unread_b END
		WHERE id = $1
	`

	var senders []int64
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, readQuery, conversationID, readerID, at)
		if err != nil {
			return err
		}
		senders, err = scanIDs(rows)
		rows.Close()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, resetQuery, conversationID, readerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return senders, nil
}

func (r *PgMessageRepository) ListByConversation(ctx context.Context, conversationID, beforeID int64, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, conversation_id, sender_id, body, type, attachment_url, is_delivered, delivered_at, is_read, read_at, created_at
		FROM messages
		WHERE conversation_id = $1
		  AND ($2::bigint = 0 OR id < $2)
		ORDER BY id DESC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, conversationID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgxRows) ([]domain.Message, error) {
	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.Body,
			&m.Type,
			&m.AttachmentURL,
			&m.IsDelivered,
			&m.DeliveredAt,
			&m.IsRead,
			&m.ReadAt,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func scanIDs(rows pgxRows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// pgxRows is a minimal interface to allow scanning from pgx rows and simplify testing.
type pgxRows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
	Close()
}
