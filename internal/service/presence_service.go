package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"chat-presence/internal/domain"
	"chat-presence/internal/realtime"
)

const maxStatusBatch = 200

// PresenceService anuncia conexiones y desconexiones y responde consultas de estado.
type PresenceService struct {
	logger   *zap.Logger
	registry *realtime.Registry
	channels *realtime.Channels
	lastSeen LastSeenStore
	users    *keyedMutex
	now      func() time.Time
}

func NewPresenceService(logger *zap.Logger, registry *realtime.Registry, channels *realtime.Channels, lastSeen LastSeenStore) *PresenceService {
	if lastSeen == nil {
		lastSeen = NewMemoryLastSeenStore()
	}
	return &PresenceService{
		logger:   logger,
		registry: registry,
		channels: channels,
		lastSeen: lastSeen,
		users:    newKeyedMutex(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Connect admite la sesion y avisa al resto de sesiones conectadas.
func (s *PresenceService) Connect(session realtime.Session) {
	unlock := s.users.Lock(session.UserID())
	defer unlock()

	if !s.registry.Admit(session) {
		return
	}
	s.registry.BroadcastAll(domain.Event{
		Type: domain.EventPresenceOnline,
		Data: s.payload(session),
	}, session.ID())
	s.logger.Info("session admitted",
		zap.String("session_id", session.ID()),
		zap.Int64("user_id", session.UserID()),
	)
}

// Disconnect saca la sesion de todos los canales y del registro. Solo anuncia
// presence.offline cuando no le quedan sesiones al usuario.
func (s *PresenceService) Disconnect(ctx context.Context, session realtime.Session) {
	s.channels.LeaveAll(session.ID())

	// Baja y anuncio bajo el mismo lock que Connect; last seen se guarda fuera.
	unlock := s.users.Lock(session.UserID())
	_, remaining, ok := s.registry.Remove(session.ID())
	if !ok {
		unlock()
		return
	}
	s.logger.Info("session removed",
		zap.String("session_id", session.ID()),
		zap.Int64("user_id", session.UserID()),
		zap.Int("remaining", remaining),
	)
	if remaining > 0 || s.registry.IsOnline(session.UserID()) {
		unlock()
		return
	}
	payload := s.payload(session)
	s.registry.BroadcastAll(domain.Event{Type: domain.EventPresenceOffline, Data: payload}, "")
	unlock()

	if err := s.lastSeen.Touch(ctx, session.UserID(), payload.Timestamp); err != nil {
		s.logger.Warn("last seen update failed", zap.Error(err), zap.Int64("user_id", session.UserID()))
	}
}

func (s *PresenceService) Status(ctx context.Context, userID int64) (domain.PresenceStatus, error) {
	if userID <= 0 {
		return domain.PresenceStatus{}, fmt.Errorf("%w: user id must be positive", ErrInvalidArgument)
	}
	return s.status(ctx, userID), nil
}

// StatusBatch responde en el orden pedido, sin duplicados.
func (s *PresenceService) StatusBatch(ctx context.Context, userIDs []int64) ([]domain.PresenceStatus, error) {
	ids := lo.Uniq(userIDs)
	if len(ids) > maxStatusBatch {
		return nil, fmt.Errorf("%w: at most %d user ids per batch", ErrInvalidArgument, maxStatusBatch)
	}
	if lo.SomeBy(ids, func(id int64) bool { return id <= 0 }) {
		return nil, fmt.Errorf("%w: user id must be positive", ErrInvalidArgument)
	}
	return lo.Map(ids, func(id int64, _ int) domain.PresenceStatus {
		return s.status(ctx, id)
	}), nil
}

func (s *PresenceService) status(ctx context.Context, userID int64) domain.PresenceStatus {
	st := domain.PresenceStatus{UserID: userID, IsOnline: s.registry.IsOnline(userID)}
	if st.IsOnline {
		return st
	}
	at, ok, err := s.lastSeen.Get(ctx, userID)
	if err != nil {
		s.logger.Warn("last seen lookup failed", zap.Error(err), zap.Int64("user_id", userID))
		return st
	}
	if ok {
		st.LastSeenAt = &at
	}
	return st
}

func (s *PresenceService) payload(session realtime.Session) domain.PresencePayload {
	return domain.PresencePayload{
		UserID:      session.UserID(),
		DisplayName: session.DisplayName(),
		Timestamp:   s.now(),
	}
}
