package domain

import "time"

// Conversation es siempre entre exactamente dos participantes.
type Conversation struct {
	ID             int64      `json:"id"`
	ParticipantAID int64      `json:"participant_a_id"`
	ParticipantBID int64      `json:"participant_b_id"`
	LastMessage    string     `json:"last_message,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	UnreadA        int        `json:"unread_a"`
	UnreadB        int        `json:"unread_b"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (c Conversation) HasParticipant(userID int64) bool {
	return userID != 0 && (c.ParticipantAID == userID || c.ParticipantBID == userID)
}

// OtherParticipant devuelve el id del otro lado, o 0 si userID no participa.
func (c Conversation) OtherParticipant(userID int64) int64 {
	switch userID {
	case c.ParticipantAID:
		return c.ParticipantBID
	case c.ParticipantBID:
		return c.ParticipantAID
	}
	return 0
}

// UnreadFor devuelve el contador propio del participante.
func (c Conversation) UnreadFor(userID int64) int {
	switch userID {
	case c.ParticipantAID:
		return c.UnreadA
	case c.ParticipantBID:
		return c.UnreadB
	}
	return 0
}
