package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Kale254/final/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrMissingToken = errors.New("authorization token required")
)

// TokenKind separates access tokens from refresh tokens so one cannot be
// presented in place of the other.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// JWTManager handles JWT token generation and validation.
type JWTManager struct {
	secretKey       []byte
	accessDuration  time.Duration
	refreshDuration time.Duration
	now             func() time.Time
}

// Claims represents the custom JWT claims for a user session.
type Claims struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Kind   TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a new JWT manager.
// secretKey should be a strong random string (e.g., 32 bytes).
func NewJWTManager(secretKey string, accessDuration, refreshDuration time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:       []byte(secretKey),
		accessDuration:  accessDuration,
		refreshDuration: refreshDuration,
		now:             time.Now,
	}
}

// Issue creates an access/refresh token pair for the given user.
func (m *JWTManager) Issue(user *models.User) (models.TokenPair, error) {
	now := m.now()

	access, err := m.sign(user, AccessToken, now, m.accessDuration)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := m.sign(user, RefreshToken, now, m.refreshDuration)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(m.accessDuration).Unix(),
	}, nil
}

func (m *JWTManager) sign(user *models.User, kind TokenKind, now time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}

	return signed, nil
}

// Validate parses and validates a token of the expected kind, returning its claims.
func (m *JWTManager) Validate(tokenString string, kind TokenKind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return m.secretKey, nil
		},
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: got %s token, want %s", ErrInvalidToken, claims.Kind, kind)
	}

	return claims, nil
}
