package domain

import "time"

const NotificationCategoryNewChatMessage = "new_chat_message"

type Notification struct {
	ID          int64     `json:"id"`
	RecipientID int64     `json:"recipient_id"`
	Category    string    `json:"category"`
	Heading     string    `json:"heading"`
	Body        string    `json:"body"`
	Link        string    `json:"link,omitempty"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}
