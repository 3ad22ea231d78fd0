package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation groups the messages of one chat thread between a user and
// the assistant. Conversations are created lazily on a user's first message
// and are never deleted by this service; retention is handled elsewhere.
type Conversation struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
