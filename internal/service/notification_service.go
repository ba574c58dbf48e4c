package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"chat-presence/internal/domain"
	"chat-presence/internal/repository"
)

const maxNotificationPage = 100

// NotificationService expone la bandeja de notificaciones del propio destinatario.
type NotificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

func (s *NotificationService) List(ctx context.Context, recipientID int64, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > maxNotificationPage {
		limit = maxNotificationPage / 2
	}
	out, err := s.repo.ListByRecipient(ctx, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	if out == nil {
		out = []domain.Notification{}
	}
	return out, nil
}

// MarkRead responde NotFound tambien cuando la notificacion es de otro usuario.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, recipientID int64) error {
	if notificationID <= 0 {
		return fmt.Errorf("%w: notification id must be positive", ErrInvalidArgument)
	}
	if err := s.repo.MarkRead(ctx, notificationID, recipientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return n, nil
}
