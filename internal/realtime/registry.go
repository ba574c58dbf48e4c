package realtime

import (
	"sync"

	"chat-presence/internal/domain"
)

// Registry indexa las sesiones vivas por handle y por usuario. Un usuario esta
// online mientras tenga al menos una sesion registrada.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	byUser   map[int64]map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		byUser:   make(map[int64]map[string]Session),
	}
}

// Admit registra s. Admitir dos veces el mismo handle devuelve false.
func (r *Registry) Admit(s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID()]; ok {
		return false
	}
	r.sessions[s.ID()] = s
	set := r.byUser[s.UserID()]
	if set == nil {
		set = make(map[string]Session)
		r.byUser[s.UserID()] = set
	}
	set[s.ID()] = s
	return true
}

// Remove da de baja el handle e informa cuantas sesiones le quedan al usuario.
func (r *Registry) Remove(sessionID string) (removed Session, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, 0, false
	}
	delete(r.sessions, sessionID)

	set := r.byUser[s.UserID()]
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.byUser, s.UserID())
	}
	return s, len(set), true
}

func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) SessionCount(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

func (r *Registry) SessionsOf(userID int64) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byUser[userID]
	out := make([]Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// Sessions devuelve una copia de las sesiones registradas.
func (r *Registry) Sessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

func (r *Registry) OnlineUsers() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int64, 0, len(r.byUser))
	for id := range r.byUser {
		out = append(out, id)
	}
	return out
}

// BroadcastToUser envia evt a todas las sesiones de userID.
func (r *Registry) BroadcastToUser(userID int64, evt domain.Event) int {
	return sendAll(r.SessionsOf(userID), evt)
}

// BroadcastAll envia evt a todas las sesiones salvo exceptSessionID.
func (r *Registry) BroadcastAll(evt domain.Event, exceptSessionID string) int {
	r.mu.RLock()
	targets := make([]Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == exceptSessionID {
			continue
		}
		targets = append(targets, s)
	}
	r.mu.RUnlock()

	return sendAll(targets, evt)
}
