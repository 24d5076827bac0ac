package models

// Credentials is the email/password pair exchanged for a session.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is the session material handed out on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresAt is the Unix time at which AccessToken stops being accepted.
	ExpiresAt int64 `json:"expiresAt"`
}

// SessionResponse is returned by the login and refresh endpoints.
type SessionResponse struct {
	User *User `json:"user"`
	TokenPair
}
