package domain

import (
	"time"
	"unicode/utf8"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

// MessageStatus es el estado derivado del ciclo Sent -> Delivered -> Read.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

type Message struct {
	ID             int64       `json:"id"`
	ConversationID int64       `json:"conversation_id"`
	SenderID       int64       `json:"sender_id"`
	Body           string      `json:"body"`
	Type           MessageType `json:"type"`
	AttachmentURL  *string     `json:"attachment_url,omitempty"`
	IsDelivered    bool        `json:"is_delivered"`
	DeliveredAt    *time.Time  `json:"delivered_at,omitempty"`
	IsRead         bool        `json:"is_read"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (m Message) Status() MessageStatus {
	switch {
	case m.IsRead:
		return StatusRead
	case m.IsDelivered:
		return StatusDelivered
	}
	return StatusSent
}

// MarkDelivered avanza a Delivered; nunca retrocede.
func (m *Message) MarkDelivered(at time.Time) {
	if m.IsDelivered {
		return
	}
	m.IsDelivered = true
	m.DeliveredAt = &at
}

// MarkRead avanza a Read forzando Delivered si todavia no lo estaba.
func (m *Message) MarkRead(at time.Time) {
	m.MarkDelivered(at)
	if m.IsRead {
		return
	}
	m.IsRead = true
	m.ReadAt = &at
}

// Preview recorta el cuerpo a max runas para resumenes y notificaciones.
func Preview(body string, max int) string {
	if max <= 0 || utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	return string(runes[:max]) + "..."
}
