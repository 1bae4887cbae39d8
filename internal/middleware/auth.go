package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/artvision/curator/backend/internal/storage/sqlite"
	"github.com/artvision/curator/backend/pkg/utils"
)

// SessionCookieName is the cookie carrying the login session id.
const SessionCookieName = "curator_session"

type contextKey string

const userContextKey contextKey = "user"

// UserResolver maps a session cookie value to its user.
type UserResolver interface {
	UserForSession(ctx context.Context, sessionID string) (*sqlite.User, error)
}

// LoadUser attaches the signed-in user, if any, to the request context.
func LoadUser(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := resolver.UserForSession(r.Context(), cookie.Value)
			if err != nil {
				slog.Debug("session cookie rejected", "component", "auth", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireAuth answers 401 when LoadUser found no user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			utils.RespondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser returns a context carrying user.
func WithUser(ctx context.Context, user *sqlite.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the signed-in user attached by LoadUser.
func UserFromContext(ctx context.Context) (*sqlite.User, bool) {
	user, ok := ctx.Value(userContextKey).(*sqlite.User)
	return user, ok && user != nil
}

// UserID returns the signed-in user's id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if user, ok := UserFromContext(ctx); ok {
		return user.ID
	}
	return ""
}
