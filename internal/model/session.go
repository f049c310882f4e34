package model

import "time"

// Flash kinds. They double as CSS classes in the templates.
const (
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Session is the server-side login state. The cookie only carries a signed
// reference to ID; everything else lives in the session store.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	ProfilePic string    `json:"profilePic"`
	Flashes    []Flash   `json:"flashes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Identity returns the caller identity carried by the session.
func (s *Session) Identity() Identity {
	return Identity{UserID: s.UserID, Name: s.Name, ProfilePic: s.ProfilePic}
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
