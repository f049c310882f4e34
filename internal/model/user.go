// Package model defines the data structures used throughout the application.
package model

import "time"

// User is an account created the first time an identity provider vouches for
// a subject.
//
// WHY ID string?
// The primary key is the provider's "sub" claim, not a generated value. The
// same person logging in twice must land on the same row, and "sub" is the
// only claim OIDC guarantees to be stable.
//
// A user row is never updated after creation. If the person changes their
// name or picture at the provider, we keep the first snapshot.
type User struct {
	ID         string    `json:"id"         db:"id"`
	Name       string    `json:"name"       db:"name"`
	Email      string    `json:"email"      db:"email"`       // unique across users
	ProfilePic string    `json:"profilePic" db:"profile_pic"` // avatar URL, may be empty
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
}

// Identity is the authenticated caller, passed explicitly into every service
// call instead of being read from some request-global.
type Identity struct {
	UserID     string
	Name       string
	ProfilePic string
}
