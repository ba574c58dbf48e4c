package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"chat-presence/internal/domain"
	"chat-presence/internal/email"
	"chat-presence/internal/repository"
)

const notificationPreviewLength = 100

// OfflineMessage describe el mensaje que un destinatario desconectado no pudo ver.
type OfflineMessage struct {
	RecipientID    int64
	SenderName     string
	Preview        string
	ConversationID int64
}

// OfflineNotifier es lo que el chat invoca cuando el destinatario no tiene sesiones.
type OfflineNotifier interface {
	Dispatch(ctx context.Context, msg OfflineMessage) error
}

// OfflineDispatcher crea la notificacion persistente y encola el correo de aviso.
// Cada paso es independiente: un fallo no impide el otro.
type OfflineDispatcher struct {
	logger        *zap.Logger
	notifications repository.NotificationRepository
	users         repository.UserRepository
	mailer        email.Sender
	push          email.PushNotifier
	baseURL       string
	now           func() time.Time
}

func NewOfflineDispatcher(
	logger *zap.Logger,
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	mailer email.Sender,
	push email.PushNotifier,
	baseURL string,
) *OfflineDispatcher {
	if push == nil {
		push = email.NewLogPushNotifier(logger)
	}
	return &OfflineDispatcher{
		logger:        logger,
		notifications: notifications,
		users:         users,
		mailer:        mailer,
		push:          push,
		baseURL:       strings.TrimRight(baseURL, "/"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (d *OfflineDispatcher) Dispatch(ctx context.Context, msg OfflineMessage) error {
	link := d.conversationLink(msg.ConversationID)
	preview := domain.Preview(msg.Preview, notificationPreviewLength)

	errNotify := d.createNotification(ctx, msg, preview, link)
	if errNotify != nil {
		d.logger.Warn("offline notification record failed",
			zap.Error(errNotify),
			zap.Int64("user_id", msg.RecipientID),
			zap.Int64("conversation_id", msg.ConversationID),
		)
	}

	errMail := d.sendMail(ctx, msg, preview, link)
	if errMail != nil {
		d.logger.Warn("offline email failed",
			zap.Error(errMail),
			zap.Int64("user_id", msg.RecipientID),
			zap.Int64("conversation_id", msg.ConversationID),
		)
	}

	if err := errors.Join(errNotify, errMail); err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationDispatch, err)
	}
	return nil
}

func (d *OfflineDispatcher) createNotification(ctx context.Context, msg OfflineMessage, preview, link string) error {
	if d.notifications == nil {
		return errors.New("notification repository not configured")
	}
	heading := fmt.Sprintf("New message from %s", msg.SenderName)
	n, err := d.notifications.Create(ctx, domain.Notification{
		RecipientID: msg.RecipientID,
		Category:    domain.NotificationCategoryNewChatMessage,
		Heading:     heading,
		Body:        preview,
		Link:        link,
		CreatedAt:   d.now(),
	})
	if err != nil {
		return err
	}

	if err := d.push.Push(ctx, msg.RecipientID, n.Heading, n.Body); err != nil {
		d.logger.Warn("push notification failed", zap.Error(err), zap.Int64("user_id", msg.RecipientID))
	}
	return nil
}

func (d *OfflineDispatcher) sendMail(ctx context.Context, msg OfflineMessage, preview, link string) error {
	if d.users == nil || d.mailer == nil {
		return errors.New("email path not configured")
	}
	recipient, err := d.users.GetByID(ctx, msg.RecipientID)
	if err != nil {
		return fmt.Errorf("lookup recipient: %w", err)
	}
	if strings.TrimSpace(recipient.Email) == "" {
		return errors.New("recipient has no email address")
	}
	return d.mailer.Send(ctx, email.NewChatMessageMail(recipient.Email, recipient.DisplayName, msg.SenderName, preview, link))
}

func (d *OfflineDispatcher) conversationLink(conversationID int64) string {
	return fmt.Sprintf("%s/chat/%d", d.baseURL, conversationID)
}
