package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account registered with the identity provider.
type User struct {
	// ID is the stable opaque identifier (UUID format).
	// Budget items are partitioned by this value.
	ID string `json:"id"`

	// Email is the login name (unique).
	Email string `json:"email"`

	// DisplayName defaults to the local part of the email address.
	DisplayName string `json:"displayName,omitempty"`

	// PasswordHash is the bcrypt hash. Never serialised.
	PasswordHash string `json:"-"`

	// CreatedAt and UpdatedAt are Unix timestamps.
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt,omitempty"`
}

// NewUser creates a user with a new ID and timestamps set to now.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
