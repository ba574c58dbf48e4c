package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"chat-presence/internal/domain"
	"chat-presence/internal/realtime"
	"chat-presence/internal/service"
)

const testSecret = "test-secret"

type memStore struct {
	mu            sync.Mutex
	users         map[int64]domain.User
	conversations map[int64]domain.Conversation
	messages      []domain.Message
	notifications []domain.Notification
}

func newMemStore() *memStore {
	return &memStore{
		users: map[int64]domain.User{
			1: {ID: 1, Email: "alice@example.com", DisplayName: "Alice"},
			2: {ID: 2, Email: "bob@example.com", DisplayName: "Bob"},
			3: {ID: 3, Email: "carol@example.com", DisplayName: "Carol"},
		},
		conversations: map[int64]domain.Conversation{
			10: {ID: 10, ParticipantAID: 1, ParticipantBID: 2, IsActive: true},
		},
	}
}

func (m *memStore) GetByID(_ context.Context, id int64) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return domain.Conversation{}, pgx.ErrNoRows
	}
	return c, nil
}

func (m *memStore) Create(_ context.Context, a, b int64) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := domain.Conversation{ID: int64(len(m.conversations) + 100), ParticipantAID: a, ParticipantBID: b, IsActive: true}
	m.conversations[c.ID] = c
	return c, nil
}

func (m *memStore) FindActiveBetween(_ context.Context, a, b int64) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conversations {
		if c.IsActive && c.HasParticipant(a) && c.HasParticipant(b) {
			return c, nil
		}
	}
	return domain.Conversation{}, pgx.ErrNoRows
}

func (m *memStore) ListByParticipant(_ context.Context, userID int64) ([]domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Conversation
	for _, c := range m.conversations {
		if c.IsActive && c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) Deactivate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.IsActive = false
	m.conversations[id] = c
	return nil
}

func (m *memStore) CreateInConversation(_ context.Context, msg domain.Message, recipientID int64, preview string) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = int64(len(m.messages) + 1)
	m.messages = append(m.messages, msg)
	c := m.conversations[msg.ConversationID]
	c.LastMessage = preview
	if recipientID == c.ParticipantAID {
		c.UnreadA++
	} else {
		c.UnreadB++
	}
	m.conversations[c.ID] = c
	return msg, nil
}

func (m *memStore) MarkDelivered(_ context.Context, conversationID, recipientID int64, at time.Time) ([]int64, error) {
	return m.transition(conversationID, recipientID, at, false), nil
}

func (m *memStore) MarkRead(_ context.Context, conversationID, readerID int64, at time.Time) ([]int64, error) {
	return m.transition(conversationID, readerID, at, true), nil
}

func (m *memStore) transition(conversationID, readerID int64, at time.Time, read bool) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var senders []int64
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.ConversationID != conversationID || msg.SenderID == readerID {
			continue
		}
		switch {
		case read && !msg.IsRead:
			msg.MarkRead(at)
			senders = append(senders, msg.SenderID)
		case !read && !msg.IsDelivered:
			msg.MarkDelivered(at)
			senders = append(senders, msg.SenderID)
		}
	}
	return senders
}

func (m *memStore) ListByConversation(_ context.Context, conversationID, _ int64, limit int) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if m.messages[i].ConversationID == conversationID {
			out = append(out, m.messages[i])
		}
	}
	return out, nil
}

type memUsers struct{ store *memStore }

func (u memUsers) GetByID(_ context.Context, id int64) (domain.User, error) {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	user, ok := u.store.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

type memNotifications struct{ store *memStore }

func (n memNotifications) Create(_ context.Context, notif domain.Notification) (domain.Notification, error) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	notif.ID = int64(len(n.store.notifications) + 1)
	n.store.notifications = append(n.store.notifications, notif)
	return notif, nil
}

func (n memNotifications) ListByRecipient(_ context.Context, recipientID int64, _ int) ([]domain.Notification, error) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	var out []domain.Notification
	for _, notif := range n.store.notifications {
		if notif.RecipientID == recipientID {
			out = append(out, notif)
		}
	}
	return out, nil
}

func (n memNotifications) MarkRead(_ context.Context, id, recipientID int64) error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	for i := range n.store.notifications {
		if n.store.notifications[i].ID == id && n.store.notifications[i].RecipientID == recipientID {
			n.store.notifications[i].IsRead = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (n memNotifications) MarkAllRead(_ context.Context, recipientID int64) (int64, error) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	var count int64
	for i := range n.store.notifications {
		if n.store.notifications[i].RecipientID == recipientID && !n.store.notifications[i].IsRead {
			n.store.notifications[i].IsRead = true
			count++
		}
	}
	return count, nil
}

type testServer struct {
	store    *memStore
	registry *realtime.Registry
	jwt      *service.JWTService
	chat     *service.ChatService
	ws       *WSHandler
	router   *gin.Engine
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	store := newMemStore()
	users := memUsers{store: store}
	registry := realtime.NewRegistry()
	channels := realtime.NewChannels()
	jwtSvc := service.NewJWTService(testSecret, time.Hour)

	presence := service.NewPresenceService(logger, registry, channels, nil)
	chat := service.NewChatService(logger, store, store, registry, channels, nil, nil)
	conversations := service.NewConversationService(store, store, users, registry)
	notifications := service.NewNotificationService(memNotifications{store: store})

	ws := NewWSHandler(logger, jwtSvc, users, registry, presence, chat, nil)
	router := NewRouter(
		logger,
		jwtSvc,
		func(context.Context) error { return nil },
		ws,
		NewConversationHandler(logger, conversations),
		NewNotificationHandler(logger, notifications),
		NewPresenceHandler(logger, presence),
	)
	return &testServer{store: store, registry: registry, jwt: jwtSvc, chat: chat, ws: ws, router: router}
}

func (s *testServer) token(userID int64) string {
	tok, err := s.jwt.IssueAccessToken(s.store.users[userID])
	if err != nil {
		panic(err)
	}
	return tok
}

func performRequest(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func frame(eventType string, data any) []byte {
	raw, _ := json.Marshal(map[string]any{"type": eventType, "data": data})
	return raw
}
