// Package gate decides whether a protected screen may be shown.
package gate

import (
	"net/url"

	"github.com/Kale254/final/internal/models"
)

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// Session supplies the logged-in user, or nil.
type Session interface {
	CurrentUser() *models.User
}

// Decision is the outcome of Check: exactly one of User and Redirect is set.
type Decision struct {
	User     *models.User
	Redirect string
}

// Allowed reports whether the protected content may be rendered.
func (d Decision) Allowed() bool {
	return d.User != nil
}

// Gate guards protected destinations.
type Gate struct {
	session Session
}

// New creates a gate backed by session.
func New(session Session) *Gate {
	return &Gate{session: session}
}

// Check lets the current user through to destination, or redirects to the
// login screen carrying destination as redirectTo.
func (g *Gate) Check(destination string) Decision {
	if user := g.session.CurrentUser(); user != nil {
		return Decision{User: user}
	}
	return Decision{Redirect: LoginPath + "?" + url.Values{"redirectTo": {destination}}.Encode()}
}

// RedirectTarget is where to go after logging in: the redirectTo value in
// rawQuery, or "/" when there is none.
func RedirectTarget(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "/"
	}
	if target := values.Get("redirectTo"); target != "" {
		return target
	}
	return "/"
}
