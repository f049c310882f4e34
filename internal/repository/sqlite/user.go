package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateIfNotExists inserts the user unless its ID is already taken.
//
// ON CONFLICT(id) DO NOTHING:
// Two callbacks for the same subject racing each other both succeed; the
// loser's insert becomes a no-op and it reads back the winner's row. Only the
// id conflict is absorbed. A different subject claiming an email that is
// already registered still fails the UNIQUE(email) constraint, which we
// report as apperror.ErrConflict.
func (db *DB) CreateIfNotExists(ctx context.Context, user *model.User) (*model.User, bool, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, profile_pic, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		user.ID,
		user.Name,
		user.Email,
		user.ProfilePic,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users.email") {
			return nil, false, apperror.Conflict("user", user.Email)
		}
		return nil, false, fmt.Errorf("sqlite: inserting user %s: %w", user.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 1 {
		return user, true, nil
	}

	stored, err := db.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, profile_pic, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.ProfilePic, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}

	return &u, nil
}

// DeleteUser removes the user. Their recipes and sessions go with them
// through ON DELETE CASCADE.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
