// Package repository declares the storage contracts the services depend on.
// Implementations live in sub-packages (sqlite, redis); services only ever
// see these interfaces, which keeps them testable with in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/recipe-box/internal/model"
)

// RecipeRepository stores recipes. It knows nothing about ownership rules;
// the service checks those before calling in.
type RecipeRepository interface {
	// Create inserts the recipe and fills in ID and timestamps.
	Create(ctx context.Context, recipe *model.Recipe) error
	GetByID(ctx context.Context, id int64) (*model.Recipe, error)
	// ListByUser returns every recipe owned by userID ordered by title.
	ListByUser(ctx context.Context, userID string) ([]model.Recipe, error)
	// Update overwrites every mutable column, image_filename included.
	Update(ctx context.Context, recipe *model.Recipe) error
	Delete(ctx context.Context, id int64) error
	// GetByImage returns the recipe whose image_filename is name.
	GetByImage(ctx context.Context, name string) (*model.Recipe, error)
	// ListImageFilenames returns every non-null image_filename in the table.
	ListImageFilenames(ctx context.Context) ([]string, error)
}

type UserRepository interface {
	// CreateIfNotExists inserts user unless a row with the same ID exists.
	// It never updates an existing row. created reports whether a row was
	// inserted; the returned user is always the stored one.
	CreateIfNotExists(ctx context.Context, user *model.User) (stored *model.User, created bool, err error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository persists server-side login sessions.
// GetSession returns apperror.ErrNotFound for unknown or expired sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	SaveSession(ctx context.Context, session *model.Session) error
	// DeleteSession is idempotent: deleting an unknown ID is not an error.
	DeleteSession(ctx context.Context, id string) error
}
