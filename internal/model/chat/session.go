package chat

import "time"

// Session describes one conversation owned by the chat service.
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	UserID    string    `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
