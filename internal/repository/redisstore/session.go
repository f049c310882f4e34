// Package redisstore keeps login sessions in Redis instead of SQLite, so
// several server instances can share them.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository"
)

var _ repository.SessionRepository = (*SessionRepository)(nil)

// SessionRepository stores each session as JSON under "<prefix><id>" with a
// TTL equal to the time left until ExpiresAt. Redis drops expired sessions
// on its own.
type SessionRepository struct {
	client *redis.Client
	prefix string
}

// NewSessionRepository wraps client. An empty prefix defaults to "session:".
func NewSessionRepository(client *redis.Client, prefix string) *SessionRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &SessionRepository{client: client, prefix: prefix}
}

func (r *SessionRepository) key(id string) string {
	return r.prefix + id
}

func (r *SessionRepository) CreateSession(ctx context.Context, s *model.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: encoding session: %w", err)
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		// a zero expiration would mean "keep forever"
		ttl = time.Second
	}
	if err := r.client.Set(ctx, r.key(s.ID), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis: creating session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, id string) (*model.Session, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("redis: getting session: %w", err)
	}

	var s model.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("redis: decoding session: %w", err)
	}
	if s.Expired(time.Now()) {
		_ = r.client.Del(ctx, r.key(id)).Err()
		return nil, apperror.NotFound("session", id)
	}
	return &s, nil
}

// SaveSession rewrites the stored value without touching its TTL. XX makes
// it a no-op for a session that already expired, which we report as
// not found rather than resurrecting it.
func (r *SessionRepository) SaveSession(ctx context.Context, s *model.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: encoding session: %w", err)
	}
	err = r.client.SetArgs(ctx, r.key(s.ID), b, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return apperror.NotFound("session", s.ID)
		}
		return fmt.Errorf("redis: saving session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis: deleting session: %w", err)
	}
	return nil
}
