package auth

import (
	"context"

	"github.com/Kale254/final/internal/models"
)

// Authenticator defines the interface for credential checks behind the
// identity provider endpoints. Implementations can be swapped (password,
// OAuth, etc.) without changing the HTTP layer.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the credentials and returns the user if they match.
	// Any mismatch is reported as ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
