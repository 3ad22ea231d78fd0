package models

import (
	"github.com/google/uuid"
)

// User is the authenticated caller as established by the auth middleware.
// Identity management itself lives outside this service; only the verified
// token claims are carried here.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
}
