// Package middleware holds the HTTP middleware: bearer-token authentication,
// request logging, and the client-IP context plumbing used by audit logging.
package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"docshare/internal/httpx"
	"docshare/internal/security"
)

type contextKey struct{ name string }

var (
	userIDKey   = contextKey{"user_id"}
	clientIPKey = contextKey{"client_ip"}
)

const bearerPrefix = "bearer "

// WithUserID returns a context with the authenticated user id set.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the user id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	return v, ok
}

// RequireAuth validates the Bearer session token and sets the user id in the
// request context. Requests without a valid token get 401.
func RequireAuth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			userID, err := tokens.ValidateSession(token)
			if err != nil {
				if errors.Is(err, security.ErrExpiredToken) {
					httpx.Error(w, http.StatusUnauthorized, "session expired")
					return
				}
				httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// ClientIP stashes the request's remote IP in the context so audit logging
// can read it without holding the request.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIPKey, ip)))
	})
}

// ClientIPFromContext returns the remote IP recorded by ClientIP, or "unknown".
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
