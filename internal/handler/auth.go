package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/recipe-box/internal/auth"
	"github.com/sakif/recipe-box/internal/service"
)

// stateCookie carries the OAuth state between /login and the callback.
const stateCookie = "oauth_state"

// AuthHandler drives the OIDC login flow and logout.
//
//   - HandleLogin    → redirect the browser to the provider
//   - HandleCallback → verify state, finish the login, set the session cookie
//   - HandleLogout   → destroy the session, clear the cookie
type AuthHandler struct {
	logins   *service.AuthService
	sessions *auth.SessionManager
	render   *Renderer
	logger   *slog.Logger
	secure   bool
}

func NewAuthHandler(
	authService *service.AuthService,
	sessions *auth.SessionManager,
	render *Renderer,
	logger *slog.Logger,
	secure bool,
) *AuthHandler {
	return &AuthHandler{
		logins:   authService,
		sessions: sessions,
		render:   render,
		logger:   logger,
		secure:   secure,
	}
}

// HandleLogin handles GET /login.
//
// The state is random and kept in a short-lived HttpOnly cookie; the callback
// only proceeds when the provider echoes the same value back.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.logins.LoginURL(state), http.StatusFound)
}

// HandleCallback handles GET /auth?code=...&state=...
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || q.Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Redirect(w, r, "/?auth=failed", http.StatusSeeOther)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
	})

	if reason := q.Get("error"); reason != "" {
		h.logins.Denied(reason)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	session, err := h.logins.CompleteLogin(r.Context(), q.Get("code"))
	if err != nil {
		h.render.renderError(w, r, err)
		return
	}

	if err := h.sessions.SetCookie(w, session); err != nil {
		h.render.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout handles GET /logout. Logging out without a session, or twice,
// is not an error.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Destroy(r); err != nil {
		h.logger.Error("failed to destroy session", slog.String("error", err.Error()))
	}
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
