package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Mail es un correo de texto plano ya renderizado.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Sender define la interfaz para el envio de correos salientes.
type Sender interface {
	Send(ctx context.Context, mail Mail) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _ Mail) error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}

// NewChatMessageMail arma el aviso de mensaje nuevo para un destinatario desconectado.
func NewChatMessageMail(to, recipientName, senderName, preview, link string) Mail {
	greeting := "Hi"
	if name := strings.TrimSpace(recipientName); name != "" {
		greeting = "Hi " + name
	}
	return Mail{
		To:      to,
		Subject: fmt.Sprintf("New message from %s", senderName),
		Body: fmt.Sprintf(
			"%s,\n\n%s sent you a message while you were away:\n\n  \"%s\"\n\nReply here: %s\n",
			greeting,
			senderName,
			preview,
			link,
		),
	}
}

// PushNotifier es el punto de extension para notificaciones push moviles.
type PushNotifier interface {
	Push(ctx context.Context, userID int64, title, body string) error
}

type logPushNotifier struct {
	logger *zap.Logger
}

// NewLogPushNotifier solo deja registro; no hay proveedor push configurado.
func NewLogPushNotifier(logger *zap.Logger) PushNotifier {
	return &logPushNotifier{logger: logger}
}

func (p *logPushNotifier) Push(_ context.Context, userID int64, title, _ string) error {
	if p.logger != nil {
		p.logger.Debug("push notification skipped", zap.Int64("user_id", userID), zap.String("title", title))
	}
	return nil
}
