package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/recipe-box/internal/model"
)

// contextKey is unexported so no other package can collide with our keys.
type contextKey string

const sessionKey contextKey = "session"

// LoadSession resolves the session on every request and stores it in the
// context. Anonymous requests pass through untouched. A broken session store
// is logged and also treated as anonymous: the listing page still renders
// its login prompt instead of a 500.
func LoadSession(sessions *SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := sessions.FromRequest(r)
			if err != nil {
				logger.Error("failed to load session", slog.String("error", err.Error()))
			}
			if s != nil {
				r = r.WithContext(WithSession(r.Context(), s))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession sends anonymous requests to /login.
// It must run after LoadSession.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session LoadSession stored, if any.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*model.Session)
	return s, ok && s != nil
}

// IdentityFromContext is a shortcut for handlers that only need the caller.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return model.Identity{}, false
	}
	return s.Identity(), true
}
