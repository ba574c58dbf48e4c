package domain

import "time"

// Session es una conexion viva de un usuario; un usuario puede tener varias.
type Session struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// PresenceStatus responde a las consultas de estado.
type PresenceStatus struct {
	UserID     int64      `json:"user_id"`
	IsOnline   bool       `json:"is_online"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}
