// Package realtimetest ofrece una Session en memoria que guarda los eventos recibidos.
package realtimetest

import (
	"sync"

	"github.com/google/uuid"

	"chat-presence/internal/domain"
	"chat-presence/internal/realtime"
)

type Session struct {
	id          string
	userID      int64
	displayName string

	mu     sync.Mutex
	events []domain.Event
	err    error
}

var _ realtime.Session = (*Session)(nil)

func NewSession(userID int64, displayName string) *Session {
	return &Session{id: uuid.NewString(), userID: userID, displayName: displayName}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) UserID() int64       { return s.userID }
func (s *Session) DisplayName() string { return s.displayName }

func (s *Session) Send(evt domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, evt)
	return nil
}

// Fail hace que los Send siguientes devuelvan err.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Session) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}

// EventsOfType filtra los eventos guardados por tipo.
func (s *Session) EventsOfType(eventType string) []domain.Event {
	var out []domain.Event
	for _, evt := range s.Events() {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
