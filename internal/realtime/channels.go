package realtime

import (
	"sync"

	"chat-presence/internal/domain"
)

// Channels guarda las sesiones suscritas a cada conversacion. La comprobacion de
// participante se hace antes de llamar a Join.
type Channels struct {
	mu        sync.RWMutex
	members   map[int64]map[string]Session
	bySession map[string]map[int64]struct{}
}

func NewChannels() *Channels {
	return &Channels{
		members:   make(map[int64]map[string]Session),
		bySession: make(map[string]map[int64]struct{}),
	}
}

// Join suscribe s a la conversacion; devuelve false si ya estaba suscrita.
func (c *Channels) Join(conversationID int64, s Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	room := c.members[conversationID]
	if room == nil {
		room = make(map[string]Session)
		c.members[conversationID] = room
	}
	if _, ok := room[s.ID()]; ok {
		return false
	}
	room[s.ID()] = s

	joined := c.bySession[s.ID()]
	if joined == nil {
		joined = make(map[int64]struct{})
		c.bySession[s.ID()] = joined
	}
	joined[conversationID] = struct{}{}
	return true
}

func (c *Channels) Leave(conversationID int64, sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaveLocked(conversationID, sessionID)
}

// LeaveAll saca la sesion de todos los canales y devuelve las conversaciones que dejo.
func (c *Channels) LeaveAll(sessionID string) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	joined := c.bySession[sessionID]
	left := make([]int64, 0, len(joined))
	for conversationID := range joined {
		if c.leaveLocked(conversationID, sessionID) {
			left = append(left, conversationID)
		}
	}
	delete(c.bySession, sessionID)
	return left
}

// ConversationsOf devuelve los canales a los que esta suscrita la sesion.
func (c *Channels) ConversationsOf(sessionID string) []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	joined := c.bySession[sessionID]
	out := make([]int64, 0, len(joined))
	for conversationID := range joined {
		out = append(out, conversationID)
	}
	return out
}

func (c *Channels) Members(conversationID int64) []Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	room := c.members[conversationID]
	out := make([]Session, 0, len(room))
	for _, s := range room {
		out = append(out, s)
	}
	return out
}

func (c *Channels) IsMember(conversationID int64, sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.members[conversationID][sessionID]
	return ok
}

// HasUser indica si alguna sesion de userID esta suscrita a la conversacion.
func (c *Channels) HasUser(conversationID, userID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, s := range c.members[conversationID] {
		if s.UserID() == userID {
			return true
		}
	}
	return false
}

// Broadcast envia evt a todos los miembros salvo exceptSessionID.
func (c *Channels) Broadcast(conversationID int64, evt domain.Event, exceptSessionID string) int {
	c.mu.RLock()
	room := c.members[conversationID]
	targets := make([]Session, 0, len(room))
	for id, s := range room {
		if id == exceptSessionID {
			continue
		}
		targets = append(targets, s)
	}
	c.mu.RUnlock()

	return sendAll(targets, evt)
}

func (c *Channels) leaveLocked(conversationID int64, sessionID string) bool {
	room := c.members[conversationID]
	if room == nil {
		return false
	}
	if _, ok := room[sessionID]; !ok {
		return false
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(c.members, conversationID)
	}
	if joined, ok := c.bySession[sessionID]; ok {
		delete(joined, conversationID)
		if len(joined) == 0 {
			delete(c.bySession, sessionID)
		}
	}
	return true
}
