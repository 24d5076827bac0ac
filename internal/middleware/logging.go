package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs every request with its status and duration.
// Server errors log at error level, client errors at warn.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// OptionalAuth runs inside route groups, so the user is read
			// from a holder filled in further down the chain.
			holder := &userHolder{}
			next.ServeHTTP(ww, r.WithContext(withUserHolder(r.Context(), holder)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
				"user_id", holder.userID,
			}

			switch {
			case status >= 500:
				logger.ErrorContext(r.Context(), "Request failed", attrs...)
			case status >= 400:
				logger.WarnContext(r.Context(), "Request rejected", attrs...)
			default:
				logger.InfoContext(r.Context(), "Request completed", attrs...)
			}
		})
	}
}
