package domain

import "time"

// User es la identidad verificada leida desde el directorio de usuarios.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary reduce el usuario a lo que viaja en los eventos de chat.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, DisplayName: u.DisplayName}
}

type UserSummary struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}
