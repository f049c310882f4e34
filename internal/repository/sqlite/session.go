package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

func (db *DB) CreateSession(ctx context.Context, s *model.Session) error {
	flashes, err := encodeFlashes(s.Flashes)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, name, profile_pic, flashes, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Name, s.ProfilePic, flashes, s.CreatedAt.UTC(), s.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating session: %w", err)
	}
	return nil
}

// GetSession treats an expired row like a missing one and removes it on the
// way out. There is no background reaper.
func (db *DB) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var (
		s       model.Session
		flashes string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, name, profile_pic, flashes, created_at, expires_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(&s.ID, &s.UserID, &s.Name, &s.ProfilePic, &flashes, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}

	if s.Expired(time.Now()) {
		if err := db.DeleteSession(ctx, id); err != nil {
			return nil, err
		}
		return nil, apperror.NotFound("session", id)
	}

	if err := json.Unmarshal([]byte(flashes), &s.Flashes); err != nil {
		return nil, fmt.Errorf("sqlite: decoding session flashes: %w", err)
	}
	return &s, nil
}

// SaveSession persists the mutable part of a session (its flash queue).
func (db *DB) SaveSession(ctx context.Context, s *model.Session) error {
	flashes, err := encodeFlashes(s.Flashes)
	if err != nil {
		return err
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE sessions SET flashes = ? WHERE id = ?`, flashes, s.ID)
	if err != nil {
		return fmt.Errorf("sqlite: saving session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("session", s.ID)
	}
	return nil
}

func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

func encodeFlashes(flashes []model.Flash) (string, error) {
	if len(flashes) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(flashes)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding session flashes: %w", err)
	}
	return string(b), nil
}
