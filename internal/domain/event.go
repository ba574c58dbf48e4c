package domain

import "time"

// Eventos entrantes por websocket.
const (
	EventJoinConversation      = "join_conversation"
	EventLeaveConversation     = "leave_conversation"
	EventSendMessage           = "send_message"
	EventMarkAsDelivered       = "mark_as_delivered"
	EventMarkAsRead            = "mark_as_read"
	EventTyping                = "typing"
	EventStopTyping            = "stop_typing"
	EventCheckUserStatus       = "check_user_status"
	EventCheckMultipleStatuses = "check_multiple_users_status"
)

// Eventos salientes.
const (
	EventConnected              = "connected"
	EventJoined                 = "joined"
	EventLeft                   = "left"
	EventMessageSent            = "message_sent"
	EventNewMessage             = "new_message"
	EventNewMessageNotification = "new_message_notification"
	EventMessagesDelivered      = "messages_delivered"
	EventMessagesRead           = "messages_read"
	EventUserTyping             = "user_typing"
	EventPresenceOnline         = "presence.online"
	EventPresenceOffline        = "presence.offline"
	EventUserStatusResponse     = "user_status_response"
	EventMultipleStatusResponse = "multiple_users_status_response"
	EventError                  = "error"
)

// Event es el sobre que se serializa hacia cada sesion.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type NewMessagePayload struct {
	ConversationID int64       `json:"conversation_id"`
	Message        Message     `json:"message"`
	Sender         UserSummary `json:"sender"`
}

type ConversationPayload struct {
	ConversationID int64 `json:"conversation_id"`
}

type ReceiptPayload struct {
	ConversationID int64     `json:"conversation_id"`
	ReaderID       int64     `json:"reader_id"`
	Count          int       `json:"count"`
	At             time.Time `json:"at"`
}

type TypingPayload struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
	IsTyping       bool  `json:"is_typing"`
}

type PresencePayload struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Timestamp   time.Time `json:"timestamp"`
}

type ConnectedPayload struct {
	SessionID string `json:"session_id"`
	UserID    int64  `json:"user_id"`
}

type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
