package realtime

import (
	"errors"

	"chat-presence/internal/domain"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrBufferFull    = errors.New("session send buffer exceeded")
)

// Session es lo minimo que registro y canales necesitan de una conexion viva.
// Send nunca bloquea; la implementacion corta a los clientes lentos.
type Session interface {
	ID() string
	UserID() int64
	DisplayName() string
	Send(evt domain.Event) error
}

// sendAll devuelve cuantas sesiones aceptaron el evento.
func sendAll(sessions []Session, evt domain.Event) int {
	delivered := 0
	for _, s := range sessions {
		if err := s.Send(evt); err == nil {
			delivered++
		}
	}
	return delivered
}
