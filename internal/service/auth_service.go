package service

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Kale254/final/internal/auth"
	"github.com/Kale254/final/internal/metrics"
	"github.com/Kale254/final/internal/middleware"
	"github.com/Kale254/final/internal/models"
	"github.com/Kale254/final/internal/storage"
)

// AuthService serves the identity provider endpoints.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	users         storage.UserStore
	metrics       *metrics.Collector
	logger        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager, users storage.UserStore, collector *metrics.Collector, logger *slog.Logger) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		users:         users,
		metrics:       collector,
		logger:        logger,
	}
}

type userResponse struct {
	User *models.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (s *AuthService) record(operation, outcome string) {
	s.metrics.AuthAttempts.WithLabelValues(operation, outcome).Inc()
}

// Signup handles POST /auth/signup. It registers the account only; clients
// log in afterwards.
func (s *AuthService) Signup(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(creds); err != nil {
		s.record("signup", "invalid")
		writeError(w, http.StatusBadRequest, formatValidationError(err))
		return
	}

	user, err := s.authenticator.Register(r.Context(), creds.Email, "", creds.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			s.record("signup", "conflict")
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, auth.ErrWeakPassword):
			s.record("signup", "invalid")
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.record("signup", "error")
			s.logger.ErrorContext(r.Context(), "Registration failed", "email", creds.Email, "error", err)
			writeError(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	s.record("signup", "ok")
	s.logger.InfoContext(r.Context(), "User registered", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusCreated, userResponse{User: user})
}

// Login handles POST /auth/login.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if creds.Email == "" || creds.Password == "" {
		s.record("login", "invalid")
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.authenticator.Authenticate(r.Context(), creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.record("login", "rejected")
			s.logger.WarnContext(r.Context(), "Login failed", "email", creds.Email)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		s.record("login", "error")
		s.logger.ErrorContext(r.Context(), "Login errored", "email", creds.Email, "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	s.record("login", "ok")
	s.issue(w, r, user)
}

// Refresh handles POST /auth/refresh, rotating both tokens.
func (s *AuthService) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, formatValidationError(err))
		return
	}

	claims, err := s.jwtManager.Validate(req.RefreshToken, auth.RefreshToken)
	if err != nil {
		s.record("refresh", "rejected")
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}

	user, ok := s.lookup(w, r, claims.UserID)
	if !ok {
		s.record("refresh", "rejected")
		return
	}

	s.record("refresh", "ok")
	s.issue(w, r, user)
}

// Me handles GET /auth/me. Requires middleware.RequireAuth.
func (s *AuthService) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := s.lookup(w, r, middleware.GetUserID(r.Context()))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// Logout handles POST /auth/logout. Tokens are stateless, so the client
// discarding them is what ends the session.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	s.record("logout", "ok")
	s.logger.InfoContext(r.Context(), "User logged out", "user_id", middleware.GetUserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// lookup loads the user behind a token, writing 401 when it no longer exists.
func (s *AuthService) lookup(w http.ResponseWriter, r *http.Request, userID string) (*models.User, bool) {
	user, err := s.users.GetUserByID(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "GetUserByID failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return nil, false
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return nil, false
	}
	return user, true
}

func (s *AuthService) issue(w http.ResponseWriter, r *http.Request, user *models.User) {
	pair, err := s.jwtManager.Issue(user)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to generate token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to issue session")
		return
	}

	s.logger.InfoContext(r.Context(), "Session issued", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusOK, models.SessionResponse{User: user, TokenPair: pair})
}
