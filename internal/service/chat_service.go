package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"chat-presence/internal/domain"
	"chat-presence/internal/realtime"
	"chat-presence/internal/repository"
)

const (
	lastMessagePreviewLength = 100
	maxMessageBodyLength     = 4000
	offlineDispatchTimeout   = 30 * time.Second
)

// SendInput es un envio ya autenticado; OriginSessionID no recibe el eco del canal.
type SendInput struct {
	ConversationID  int64
	SenderID        int64
	SenderName      string
	Body            string
	Type            domain.MessageType
	AttachmentURL   *string
	OriginSessionID string
}

// ChatService implementa el ciclo Sent -> Delivered -> Read y el reparto a los canales.
type ChatService struct {
	logger        *zap.Logger
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	registry      *realtime.Registry
	channels      *realtime.Channels
	offline       OfflineNotifier
	limiter       SendLimiter

	locks    *keyedMutex
	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
	now      func() time.Time
}

func NewChatService(
	logger *zap.Logger,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	registry *realtime.Registry,
	channels *realtime.Channels,
	offline OfflineNotifier,
	limiter SendLimiter,
) *ChatService {
	return &ChatService{
		logger:        logger,
		conversations: conversations,
		messages:      messages,
		registry:      registry,
		channels:      channels,
		offline:       offline,
		limiter:       limiter,
		locks:         newKeyedMutex(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Send persiste el mensaje y lo reparte. Si el destinatario no tiene ninguna sesion
// se lanza el aviso offline en segundo plano.
func (s *ChatService) Send(ctx context.Context, in SendInput) (domain.Message, error) {
	conv, err := s.participantConversation(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return domain.Message{}, err
	}

	body := strings.TrimSpace(in.Body)
	if body == "" {
		return domain.Message{}, fmt.Errorf("%w: message body is empty", ErrInvalidArgument)
	}
	if len([]rune(body)) > maxMessageBodyLength {
		return domain.Message{}, fmt.Errorf("%w: message body exceeds %d characters", ErrInvalidArgument, maxMessageBodyLength)
	}
	msgType := in.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if !msgType.Valid() {
		return domain.Message{}, fmt.Errorf("%w: unknown message type %q", ErrInvalidArgument, msgType)
	}
	// Solo los envios validos gastan cupo.
	if s.limiter != nil && !s.limiter.Allow(strconv.FormatInt(in.SenderID, 10)) {
		return domain.Message{}, ErrRateLimited
	}

	recipientID := conv.OtherParticipant(in.SenderID)

	unlock := s.locks.Lock(conv.ID)
	now := s.now()
	msg := domain.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Body:           body,
		Type:           msgType,
		AttachmentURL:  in.AttachmentURL,
		CreatedAt:      now,
	}
	// Entregado solo si el destinatario tiene abierta esta conversacion.
	if s.channels.HasUser(conv.ID, recipientID) {
		msg.MarkDelivered(now)
	}

	saved, err := s.messages.CreateInConversation(ctx, msg, recipientID, domain.Preview(body, lastMessagePreviewLength))
	if err != nil {
		unlock()
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, ErrNotFound
		}
		s.logger.Error("message persist failed", zap.Error(err), zap.Int64("conversation_id", conv.ID))
		return domain.Message{}, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}

	payload := domain.NewMessagePayload{
		ConversationID: conv.ID,
		Message:        saved,
		Sender:         domain.UserSummary{ID: in.SenderID, DisplayName: in.SenderName},
	}
	s.channels.Broadcast(conv.ID, domain.Event{Type: domain.EventNewMessage, Data: payload}, in.OriginSessionID)
	unlock()

	s.registry.BroadcastToUser(recipientID, domain.Event{Type: domain.EventNewMessageNotification, Data: payload})

	if !s.registry.IsOnline(recipientID) {
		s.dispatchOffline(OfflineMessage{
			RecipientID:    recipientID,
			SenderName:     in.SenderName,
			Preview:        body,
			ConversationID: conv.ID,
		})
	}
	return saved, nil
}

// Join suscribe la sesion al canal y marca como entregado lo pendiente para su usuario.
func (s *ChatService) Join(ctx context.Context, session realtime.Session, conversationID int64) error {
	conv, err := s.participantConversation(ctx, conversationID, session.UserID())
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(conv.ID)
	s.channels.Join(conv.ID, session)
	now := s.now()
	senders, err := s.messages.MarkDelivered(ctx, conv.ID, session.UserID(), now)
	unlock()
	if err != nil {
		s.logger.Warn("catch-up delivery failed",
			zap.Error(err),
			zap.Int64("conversation_id", conv.ID),
			zap.String("session_id", session.ID()),
		)
		return nil
	}

	s.notifySenders(conv.ID, session.UserID(), senders, domain.EventMessagesDelivered, now)
	return nil
}

func (s *ChatService) Leave(session realtime.Session, conversationID int64) bool {
	unlock := s.locks.Lock(conversationID)
	defer unlock()
	return s.channels.Leave(conversationID, session.ID())
}

// LeaveAll saca la sesion de sus canales, cada uno bajo el lock de su conversacion.
func (s *ChatService) LeaveAll(session realtime.Session) int {
	left := 0
	for _, conversationID := range s.channels.ConversationsOf(session.ID()) {
		if s.Leave(session, conversationID) {
			left++
		}
	}
	return left
}

// MarkDelivered devuelve cuantos mensajes cambiaron de estado.
func (s *ChatService) MarkDelivered(ctx context.Context, conversationID, readerID int64) (int, error) {
	conv, err := s.participantConversation(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	senders, err := s.messages.MarkDelivered(ctx, conv.ID, readerID, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	s.notifySenders(conv.ID, readerID, senders, domain.EventMessagesDelivered, now)
	return len(senders), nil
}

// MarkRead marca como leido, pone a cero el contador del lector y avisa a los remitentes.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, readerID int64) (int, error) {
	conv, err := s.participantConversation(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	senders, err := s.messages.MarkRead(ctx, conv.ID, readerID, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	s.notifySenders(conv.ID, readerID, senders, domain.EventMessagesRead, now)
	return len(senders), nil
}

// Typing reenvia el indicador al resto del canal; no se persiste.
func (s *ChatService) Typing(session realtime.Session, conversationID int64, isTyping bool) error {
	if !s.channels.IsMember(conversationID, session.ID()) {
		return fmt.Errorf("%w: join the conversation first", ErrAccessDenied)
	}
	s.channels.Broadcast(conversationID, domain.Event{
		Type: domain.EventUserTyping,
		Data: domain.TypingPayload{
			ConversationID: conversationID,
			UserID:         session.UserID(),
			IsTyping:       isTyping,
		},
	}, session.ID())
	return nil
}

// Drain deja de aceptar avisos offline y espera a que terminen los que estan en curso.
func (s *ChatService) Drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.inflight.Wait()
}

func (s *ChatService) participantConversation(ctx context.Context, conversationID, userID int64) (domain.Conversation, error) {
	if conversationID <= 0 {
		return domain.Conversation{}, fmt.Errorf("%w: conversation id must be positive", ErrInvalidArgument)
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Conversation{}, ErrNotFound
		}
		return domain.Conversation{}, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	if !conv.HasParticipant(userID) {
		return domain.Conversation{}, ErrAccessDenied
	}
	if !conv.IsActive {
		return domain.Conversation{}, fmt.Errorf("%w: conversation is disabled", ErrAccessDenied)
	}
	return conv, nil
}

func (s *ChatService) notifySenders(conversationID, readerID int64, senders []int64, eventType string, at time.Time) {
	for senderID, count := range lo.CountValues(senders) {
		s.registry.BroadcastToUser(senderID, domain.Event{
			Type: eventType,
			Data: domain.ReceiptPayload{
				ConversationID: conversationID,
				ReaderID:       readerID,
				Count:          count,
				At:             at,
			},
		})
	}
}

func (s *ChatService) dispatchOffline(msg OfflineMessage) {
	if s.offline == nil {
		return
	}
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		s.logger.Warn("offline dispatch skipped during shutdown",
			zap.Int64("user_id", msg.RecipientID),
			zap.Int64("conversation_id", msg.ConversationID),
		)
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), offlineDispatchTimeout)
		defer cancel()
		if err := s.offline.Dispatch(ctx, msg); err != nil {
			s.logger.Warn("offline dispatch failed",
				zap.Error(err),
				zap.Int64("user_id", msg.RecipientID),
				zap.Int64("conversation_id", msg.ConversationID),
			)
		}
	}()
}
