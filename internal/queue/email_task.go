package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chat-presence/internal/email"
)

const (
	TaskTypeEmail      = "notify:email"
	QueueNotifications = "notifications"
)

type emailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// QueuedSender implementa email.Sender encolando el correo para el worker.
type QueuedSender struct {
	client Client
}

var _ email.Sender = (*QueuedSender)(nil)

func NewQueuedSender(client Client) *QueuedSender {
	return &QueuedSender{client: client}
}

func (s *QueuedSender) Send(ctx context.Context, mail email.Mail) error {
	payload, err := json.Marshal(emailPayload{To: mail.To, Subject: mail.Subject, Body: mail.Body})
	if err != nil {
		return err
	}
	_, err = s.client.Enqueue(ctx, Task{Type: TaskTypeEmail, Payload: payload}, EnqueueOption{
		Queue:    QueueNotifications,
		MaxRetry: 5,
		Timeout:  30 * time.Second,
	})
	return err
}

// NewEmailHandler entrega los correos encolados usando el sender real.
func NewEmailHandler(sender email.Sender, logger *zap.Logger) Handler {
	return func(ctx context.Context, task Task) error {
		var p emailPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if p.To == "" {
			return fmt.Errorf("%w: empty recipient", ErrMalformedPayload)
		}
		if err := sender.Send(ctx, email.Mail{To: p.To, Subject: p.Subject, Body: p.Body}); err != nil {
			return err
		}
		logger.Info("email delivered", zap.String("subject", p.Subject))
		return nil
	}
}

// RegisterEmailTask binds the email handler to the provided server.
func RegisterEmailTask(srv Server, sender email.Sender, logger *zap.Logger) {
	srv.Register(TaskTypeEmail, NewEmailHandler(sender, logger))
}
