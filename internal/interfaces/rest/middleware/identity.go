package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/application"
	"github.com/DanielPopoola/ficmart-marketplace-payments/internal/interfaces/rest"
)

const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"
	RoleAdmin      = "admin"
)

// Caller is the identity the upstream auth gateway forwards in headers.
type Caller struct {
	UserID string
	Role   string
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

type callerKey struct{}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// RequireUser rejects requests without X-User-ID with 401.
func RequireUser(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				rest.WriteError(w, application.NewUnauthorizedError("missing "+UserIDHeader+" header"), logger)
				return
			}
			caller := Caller{
				UserID: userID,
				Role:   strings.ToLower(strings.TrimSpace(r.Header.Get(UserRoleHeader))),
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireAdmin must run after RequireUser.
func RequireAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFrom(r.Context())
			if !ok {
				rest.WriteError(w, application.NewUnauthorizedError("missing "+UserIDHeader+" header"), logger)
				return
			}
			if !caller.IsAdmin() {
				rest.WriteError(w, application.NewForbiddenError("admin role required"), logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
