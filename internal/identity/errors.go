package identity

import (
	"errors"
	"fmt"
	"net/http"
)

// Messages shown to a person after a failed identity operation.
const (
	InvalidCredentialsMessage = "Invalid username/password. Try again!"
	GenericFailureMessage     = "Something went wrong. Please try again."
)

// AuthError is a rejection from the identity provider.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("identity provider returned %d", e.Code)
	}
	return fmt.Sprintf("identity provider returned %d: %s", e.Code, e.Message)
}

// IsInvalidCredentials reports whether err is a 401 from the identity provider.
func IsInvalidCredentials(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Code == http.StatusUnauthorized
}

// UserMessage maps an identity failure to what the login and signup screens show.
func UserMessage(err error) string {
	if IsInvalidCredentials(err) {
		return InvalidCredentialsMessage
	}
	return GenericFailureMessage
}
