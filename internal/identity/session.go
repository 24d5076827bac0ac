// Package identity is the client side of the identity provider. A Session
// holds at most one logged-in user and the tokens that go with it; each
// Session is independent, so several can coexist in one process.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/Kale254/final/internal/models"
)

// Session is safe for concurrent use.
type Session struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.RWMutex
	user   *models.User
	tokens models.TokenPair
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Session) { s.httpClient = hc }
}

// WithLogger sets the session's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// New creates a logged-out session against the provider at baseURL.
func New(baseURL string, opts ...Option) *Session {
	s := &Session{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type userEnvelope struct {
	User *models.User `json:"user"`
}

// Login exchanges credentials for a session. On failure the session is left
// exactly as it was.
func (s *Session) Login(ctx context.Context, email, password string) (*models.User, error) {
	var resp models.SessionResponse
	if err := s.call(ctx, http.MethodPost, "/auth/login", "", models.Credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if resp.User == nil || resp.User.ID == "" || resp.AccessToken == "" {
		return nil, errors.New("login: identity provider returned an incomplete session")
	}

	s.mu.Lock()
	s.user = resp.User
	s.tokens = resp.TokenPair
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Logged in", "user_id", resp.User.ID)
	return cloneUser(resp.User), nil
}

// Signup registers the account and then logs in with the same credentials.
func (s *Session) Signup(ctx context.Context, email, password string) (*models.User, error) {
	var resp userEnvelope
	if err := s.call(ctx, http.MethodPost, "/auth/signup", "", models.Credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	s.logger.InfoContext(ctx, "Account registered", "email", email)

	return s.Login(ctx, email, password)
}

// CurrentUser returns the logged-in user, or nil.
func (s *Session) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// Token returns the current access token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken
}

// Refresh rotates the session's tokens and reloads the user. It returns
// (nil, nil) when nobody is logged in. A 401 means the refresh token is no
// longer accepted, which ends the session.
func (s *Session) Refresh(ctx context.Context) (*models.User, error) {
	s.mu.RLock()
	current, refreshToken := s.user, s.tokens.RefreshToken
	s.mu.RUnlock()

	if current == nil {
		return nil, nil
	}

	var resp models.SessionResponse
	err := s.call(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": refreshToken}, &resp)
	if err != nil {
		if IsInvalidCredentials(err) {
			s.reset(current)
			s.logger.WarnContext(ctx, "Session expired", "user_id", current.ID)
		}
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if resp.User == nil || resp.AccessToken == "" {
		return nil, errors.New("refresh: identity provider returned an incomplete session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A logout or a different login while the call was in flight wins.
	if s.user != current {
		return cloneUser(s.user), nil
	}
	s.user = resp.User
	s.tokens = resp.TokenPair
	return cloneUser(resp.User), nil
}

// Logout ends the session. It reports false when nobody was logged in.
// Local state is cleared even when the provider cannot be reached; that
// failure is returned alongside true.
func (s *Session) Logout(ctx context.Context) (bool, error) {
	s.mu.Lock()
	current, token := s.user, s.tokens.AccessToken
	s.user = nil
	s.tokens = models.TokenPair{}
	s.mu.Unlock()

	if current == nil {
		return false, nil
	}

	s.logger.InfoContext(ctx, "Logged out", "user_id", current.ID)
	if err := s.call(ctx, http.MethodPost, "/auth/logout", token, nil, nil); err != nil {
		s.logger.WarnContext(ctx, "Logout was not acknowledged", "user_id", current.ID, "error", err)
		return true, fmt.Errorf("logout: %w", err)
	}
	return true, nil
}

// reset logs out locally if expected is still the current user.
func (s *Session) reset(expected *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == expected {
		s.user = nil
		s.tokens = models.TokenPair{}
	}
}

func (s *Session) call(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4<<10)).Decode(&envelope)
		return &AuthError{Code: resp.StatusCode, Message: envelope.Error}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
