package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/recipe-box/internal/apperror"
	"github.com/sakif/recipe-box/internal/auth"
	"github.com/sakif/recipe-box/internal/metrics"
	"github.com/sakif/recipe-box/internal/model"
	"github.com/sakif/recipe-box/internal/repository"
)

// AuthService runs the server side of the OIDC login.
type AuthService struct {
	provider auth.IdentityProvider
	users    repository.UserRepository
	sessions *auth.SessionManager
	logger   *slog.Logger
}

func NewAuthService(
	provider auth.IdentityProvider,
	users repository.UserRepository,
	sessions *auth.SessionManager,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		provider: provider,
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// LoginURL is the provider URL that starts a login bound to state.
func (s *AuthService) LoginURL(state string) string {
	return s.provider.AuthURL(state)
}

// CompleteLogin finishes a callback: exchange and verify the code, create the
// user on first sight and open a session. Every failure comes back as an
// apperror.ErrAuth; the cause is kept in the chain for logs.
//
// An existing user row is never changed, even if the provider now reports a
// different name or picture. The session snapshot comes from the stored row.
func (s *AuthService) CompleteLogin(ctx context.Context, code string) (*model.Session, error) {
	if code == "" {
		return nil, s.fail(errors.New("missing authorization code"))
	}

	claims, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, s.fail(err)
	}
	if err := claims.Validate(); err != nil {
		return nil, s.fail(err)
	}

	user, created, err := s.users.CreateIfNotExists(ctx, &model.User{
		ID:         claims.Subject,
		Name:       claims.Name,
		Email:      claims.Email,
		ProfilePic: claims.Picture,
	})
	if err != nil {
		return nil, s.fail(fmt.Errorf("creating user %s: %w", claims.Subject, err))
	}
	if created {
		s.logger.Info("user registered",
			slog.String("userID", user.ID),
			slog.String("email", user.Email),
		)
	}

	session, err := s.sessions.Create(ctx, user)
	if err != nil {
		return nil, s.fail(err)
	}

	metrics.Logins.WithLabelValues("success").Inc()
	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return session, nil
}

// Denied records a login the user declined at the provider.
func (s *AuthService) Denied(reason string) {
	metrics.Logins.WithLabelValues("denied").Inc()
	s.logger.Info("login denied at provider", slog.String("reason", reason))
}

func (s *AuthService) fail(cause error) error {
	metrics.Logins.WithLabelValues("failed").Inc()
	s.logger.Warn("login failed", slog.String("error", cause.Error()))
	return apperror.Auth(cause)
}
