package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository"
)

// SessionCookie is the cookie holding the signed session reference.
const SessionCookie = "session"

// SessionManager ties the cookie (TokenService) to the server-side record
// (SessionRepository).
type SessionManager struct {
	store  repository.SessionRepository
	tokens *TokenService
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager builds a manager. secure sets the cookie's Secure flag
// and should be true whenever the site is served over https.
func NewSessionManager(store repository.SessionRepository, tokens *TokenService, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{store: store, tokens: tokens, ttl: ttl, secure: secure, now: time.Now}
}

// Create stores a new session holding the user's identity snapshot.
func (m *SessionManager) Create(ctx context.Context, user *model.User) (*model.Session, error) {
	now := m.now()
	s := &model.Session{
		ID:         xid.New().String(),
		UserID:     user.ID,
		Name:       user.Name,
		ProfilePic: user.ProfilePic,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.store.CreateSession(ctx, s); err != nil {
		return nil, fmt.Errorf("auth: creating session: %w", err)
	}
	return s, nil
}

// SetCookie writes the cookie pointing at s.
func (m *SessionManager) SetCookie(w http.ResponseWriter, s *model.Session) error {
	ttl := s.ExpiresAt.Sub(m.now())
	token, err := m.tokens.Generate(s.ID, ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie expires the session cookie in the browser.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionID returns the verified session ID from the request cookie.
func (m *SessionManager) sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	id, err := m.tokens.Validate(cookie.Value)
	if err != nil {
		return "", false
	}
	return id, true
}

// FromRequest resolves the request's session. A missing, forged or expired
// cookie, or one pointing at a deleted session, yields (nil, nil): the
// caller is simply anonymous. Only store failures are errors.
func (m *SessionManager) FromRequest(r *http.Request) (*model.Session, error) {
	id, ok := m.sessionID(r)
	if !ok {
		return nil, nil
	}
	s, err := m.store.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("auth: loading session: %w", err)
	}
	return s, nil
}

// Destroy deletes the session the request points at, if any. Calling it
// without a session, or twice, is fine.
func (m *SessionManager) Destroy(r *http.Request) error {
	id, ok := m.sessionID(r)
	if !ok {
		return nil
	}
	if err := m.store.DeleteSession(r.Context(), id); err != nil {
		return fmt.Errorf("auth: deleting session: %w", err)
	}
	return nil
}

// AddFlash queues a message for the next rendered page.
func (m *SessionManager) AddFlash(ctx context.Context, s *model.Session, kind, message string) error {
	s.Flashes = append(s.Flashes, model.Flash{Kind: kind, Message: message})
	if err := m.store.SaveSession(ctx, s); err != nil {
		return fmt.Errorf("auth: saving flash: %w", err)
	}
	return nil
}

// PopFlashes returns and clears the queued messages. The store is only
// written when there was something to clear.
func (m *SessionManager) PopFlashes(ctx context.Context, s *model.Session) ([]model.Flash, error) {
	if len(s.Flashes) == 0 {
		return nil, nil
	}
	flashes := s.Flashes
	s.Flashes = nil
	if err := m.store.SaveSession(ctx, s); err != nil {
		return flashes, fmt.Errorf("auth: clearing flashes: %w", err)
	}
	return flashes, nil
}
