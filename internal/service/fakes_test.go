package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"chat-presence/internal/domain"
	"chat-presence/internal/email"
)

var errStoreDown = errors.New("store down")

// fakeChatStore implementa ConversationRepository y MessageRepository en memoria.
type fakeChatStore struct {
	mu            sync.Mutex
	conversations map[int64]domain.Conversation
	messages      []domain.Message
	nextConvID    int64
	nextMsgID     int64
	createErr     error
	markErr       error
}

func newFakeChatStore(convs ...domain.Conversation) *fakeChatStore {
	s := &fakeChatStore{conversations: make(map[int64]domain.Conversation), nextConvID: 100}
	for _, c := range convs {
		s.conversations[c.ID] = c
	}
	return s
}

func activeConversation(id, a, b int64) domain.Conversation {
	return domain.Conversation{ID: id, ParticipantAID: a, ParticipantBID: b, IsActive: true}
}

func (s *fakeChatStore) Create(_ context.Context, a, b int64) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextConvID++
	c := activeConversation(s.nextConvID, a, b)
	s.conversations[c.ID] = c
	return c, nil
}

func (s *fakeChatStore) GetByID(_ context.Context, id int64) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return domain.Conversation{}, pgx.ErrNoRows
	}
	return c, nil
}

func (s *fakeChatStore) FindActiveBetween(_ context.Context, a, b int64) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.IsActive && c.HasParticipant(a) && c.HasParticipant(b) {
			return c, nil
		}
	}
	return domain.Conversation{}, pgx.ErrNoRows
}

func (s *fakeChatStore) ListByParticipant(_ context.Context, userID int64) ([]domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Conversation
	for _, c := range s.conversations {
		if c.IsActive && c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *fakeChatStore) Deactivate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.IsActive = false
	s.conversations[id] = c
	return nil
}

func (s *fakeChatStore) CreateInConversation(_ context.Context, msg domain.Message, recipientID int64, preview string) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return domain.Message{}, s.createErr
	}
	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		return domain.Message{}, pgx.ErrNoRows
	}
	s.nextMsgID++
	msg.ID = s.nextMsgID
	s.messages = append(s.messages, msg)

	at := msg.CreatedAt
	c.LastMessage = preview
	c.LastMessageAt = &at
	switch recipientID {
	case c.ParticipantAID:
		c.UnreadA++
	case c.ParticipantBID:
		c.UnreadB++
	}
	s.conversations[c.ID] = c
	return msg, nil
}

func (s *fakeChatStore) MarkDelivered(_ context.Context, conversationID, recipientID int64, at time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return nil, s.markErr
	}
	var senders []int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ConversationID == conversationID && m.SenderID != recipientID && !m.IsDelivered {
			m.MarkDelivered(at)
			senders = append(senders, m.SenderID)
		}
	}
	return senders, nil
}

func (s *fakeChatStore) MarkRead(_ context.Context, conversationID, readerID int64, at time.Time) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return nil, s.markErr
	}
	var senders []int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ConversationID == conversationID && m.SenderID != readerID && !m.IsRead {
			m.MarkRead(at)
			senders = append(senders, m.SenderID)
		}
	}
	c := s.conversations[conversationID]
	switch readerID {
	case c.ParticipantAID:
		c.UnreadA = 0
	case c.ParticipantBID:
		c.UnreadB = 0
	}
	s.conversations[conversationID] = c
	return senders, nil
}

func (s *fakeChatStore) ListByConversation(_ context.Context, conversationID, beforeID int64, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.messages[i]
		if m.ConversationID == conversationID && (beforeID == 0 || m.ID < beforeID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeChatStore) conversation(id int64) domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversations[id]
}

func (s *fakeChatStore) allMessages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

type fakeUserRepo struct {
	users map[int64]domain.User
	err   error
}

func newFakeUserRepo(users ...domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int64]domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	if r.err != nil {
		return domain.User{}, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return u, nil
}

type fakeNotificationRepo struct {
	mu        sync.Mutex
	created   []domain.Notification
	createErr error
	markErr   error
	markAll   int64
}

func (r *fakeNotificationRepo) Create(_ context.Context, n domain.Notification) (domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return domain.Notification{}, r.createErr
	}
	n.ID = int64(len(r.created) + 1)
	r.created = append(r.created, n)
	return n, nil
}

func (r *fakeNotificationRepo) ListByRecipient(_ context.Context, recipientID int64, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.created {
		if n.RecipientID == recipientID && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, recipientID int64) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.created {
		if r.created[i].ID == id && r.created[i].RecipientID == recipientID {
			r.created[i].IsRead = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, _ int64) (int64, error) {
	if r.markErr != nil {
		return 0, r.markErr
	}
	return r.markAll, nil
}

func (r *fakeNotificationRepo) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Notification, len(r.created))
	copy(out, r.created)
	return out
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []email.Mail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, mail email.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return m.err
}

func (m *recordingMailer) all() []email.Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]email.Mail, len(m.sent))
	copy(out, m.sent)
	return out
}

type recordingOfflineNotifier struct {
	mu    sync.Mutex
	calls []OfflineMessage
	err   error
}

func (n *recordingOfflineNotifier) Dispatch(_ context.Context, msg OfflineMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, msg)
	return n.err
}

func (n *recordingOfflineNotifier) all() []OfflineMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]OfflineMessage, len(n.calls))
	copy(out, n.calls)
	return out
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

type countingLimiter struct {
	mu    sync.Mutex
	calls int
}

func (l *countingLimiter) Allow(string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return true
}

func (l *countingLimiter) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// blockingOfflineNotifier retiene cada Dispatch hasta que se cierra release.
type blockingOfflineNotifier struct {
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	done    int
}

func (n *blockingOfflineNotifier) Dispatch(context.Context, OfflineMessage) error {
	n.entered <- struct{}{}
	<-n.release
	n.mu.Lock()
	n.done++
	n.mu.Unlock()
	return nil
}

func (n *blockingOfflineNotifier) finished() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.done
}
