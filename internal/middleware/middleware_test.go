package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Kale254/final/internal/auth"
	"github.com/Kale254/final/internal/metrics"
	"github.com/Kale254/final/internal/models"
	"github.com/Kale254/final/pkg/logging"
)

func issueToken(t *testing.T, m *auth.JWTManager) models.TokenPair {
	t.Helper()
	pair, err := m.Issue(&models.User{ID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return pair
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserID(r.Context()) + "|" + GetEmail(r.Context())))
	})
}

func TestRequireAuth(t *testing.T) {
	manager := auth.NewJWTManager("middleware-test-secret", time.Minute, time.Hour)
	pair := issueToken(t, manager)
	handler := RequireAuth(manager)(echoUser())

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantBody: "authorization token required"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantBody: "invalid or expired token"},
		{name: "refresh token", header: "Bearer " + pair.RefreshToken, wantStatus: http.StatusUnauthorized, wantBody: "invalid or expired token"},
		{name: "valid access token", header: "Bearer " + pair.AccessToken, wantStatus: http.StatusOK, wantBody: "u1|u1@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want containing %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	manager := auth.NewJWTManager("middleware-test-secret", time.Minute, time.Hour)
	pair := issueToken(t, manager)
	handler := OptionalAuth(manager)(echoUser())

	t.Run("anonymous passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/budgetItems", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "|" {
			t.Errorf("got %d %q, want 200 with empty identity", rec.Code, rec.Body.String())
		}
	})

	t.Run("invalid token passes through anonymously", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/budgetItems", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Body.String() != "|" {
			t.Errorf("body = %q, want empty identity", rec.Body.String())
		}
	})

	t.Run("valid token attaches identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/budgetItems", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Body.String() != "u1|u1@example.com" {
			t.Errorf("body = %q", rec.Body.String())
		}
	})
}

func TestRequestLoggerSeesInnerIdentity(t *testing.T) {
	manager := auth.NewJWTManager("middleware-test-secret", time.Minute, time.Hour)
	pair := issueToken(t, manager)

	var buf bytes.Buffer
	logger := logging.New(logging.Options{Format: "json", Writer: &buf})

	handler := RequestLogger(logger)(OptionalAuth(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	req := httptest.NewRequest(http.MethodDelete, "/budgetItems/42", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{`"msg":"Request rejected"`, `"status":404`, `"user_id":"u1"`, `"path":"/budgetItems/42"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	collector := metrics.NewCollector("test")

	r := chi.NewRouter()
	r.Use(Instrument(collector))
	r.Delete("/budgetItems/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/budgetItems/"+id, nil))
	}

	got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("DELETE", "/budgetItems/{id}", "404"))
	if got != 3 {
		t.Errorf("requests for route pattern = %v, want 3", got)
	}
}
