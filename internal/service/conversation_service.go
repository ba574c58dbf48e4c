package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"

	"chat-presence/internal/domain"
	"chat-presence/internal/realtime"
	"chat-presence/internal/repository"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

// ConversationView es la conversacion vista desde uno de sus participantes.
type ConversationView struct {
	ID                 int64      `json:"id"`
	OtherParticipantID int64      `json:"other_participant_id"`
	OtherIsOnline      bool       `json:"other_is_online"`
	LastMessage        string     `json:"last_message,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	Unread             int        `json:"unread"`
	CreatedAt          time.Time  `json:"created_at"`
}

// ConversationService provisiona conversaciones y sirve historial.
type ConversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	registry      *realtime.Registry
}

func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	registry *realtime.Registry,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		registry:      registry,
	}
}

// Provision devuelve la conversacion activa entre ambos o crea una nueva.
func (s *ConversationService) Provision(ctx context.Context, participantAID, participantBID int64) (domain.Conversation, bool, error) {
	if participantAID <= 0 || participantBID <= 0 {
		return domain.Conversation{}, false, fmt.Errorf("%w: participant ids must be positive", ErrInvalidArgument)
	}
	if participantAID == participantBID {
		return domain.Conversation{}, false, fmt.Errorf("%w: a conversation needs two different users", ErrInvalidArgument)
	}

	existing, err := s.conversations.FindActiveBetween(ctx, participantAID, participantBID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, false, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}

	for _, id := range []int64{participantAID, participantBID} {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.Conversation{}, false, fmt.Errorf("%w: user %d", ErrNotFound, id)
			}
			return domain.Conversation{}, false, fmt.Errorf("%w: %v", ErrTransientStore, err)
		}
	}

	conv, err := s.conversations.Create(ctx, participantAID, participantBID)
	if err != nil {
		return domain.Conversation{}, false, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return conv, true, nil
}

// Deactivate deshabilita la conversacion; solo un participante puede hacerlo.
func (s *ConversationService) Deactivate(ctx context.Context, conversationID, callerID int64) error {
	conv, err := s.get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(callerID) {
		return ErrAccessDenied
	}
	if err := s.conversations.Deactivate(ctx, conv.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return nil
}

func (s *ConversationService) List(ctx context.Context, userID int64) ([]ConversationView, error) {
	convs, err := s.conversations.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	return lo.Map(convs, func(c domain.Conversation, _ int) ConversationView {
		other := c.OtherParticipant(userID)
		return ConversationView{
			ID:                 c.ID,
			OtherParticipantID: other,
			OtherIsOnline:      s.registry != nil && s.registry.IsOnline(other),
			LastMessage:        c.LastMessage,
			LastMessageAt:      c.LastMessageAt,
			Unread:             c.UnreadFor(userID),
			CreatedAt:          c.CreatedAt,
		}
	}), nil
}

// History devuelve mensajes del mas nuevo al mas viejo; beforeID pagina hacia atras.
func (s *ConversationService) History(ctx context.Context, conversationID, userID, beforeID int64, limit int) ([]domain.Message, error) {
	conv, err := s.get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrAccessDenied
	}
	if beforeID < 0 {
		return nil, fmt.Errorf("%w: before must not be negative", ErrInvalidArgument)
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	msgs, err := s.messages.ListByConversation(ctx, conv.ID, beforeID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientStore, err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

func (s *ConversationService) get(ctx context.Context, conversationID int64) (domain.Conversation, error) {
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
	return conv, nil
}
