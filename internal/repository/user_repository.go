package repository

import (
	"context"
	"time"

	"github.com/fjmerc/softvault/internal/models"
)

// UserRepository provides access to user accounts and login sessions.
type UserRepository interface {
	// Upsert creates the user or, when the email already exists, updates its
	// name, password hash and role. Returns the stored user.
	Upsert(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID returns the user or ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByEmail returns the user or ErrNotFound. Email matching is case-insensitive.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// CreateSession stores a session keyed by the hash of its token.
	CreateSession(ctx context.Context, session *models.UserSession) error

	// GetSession returns an unexpired session or ErrNotFound.
	GetSession(ctx context.Context, tokenHash string) (*models.UserSession, error)

	// DeleteSession removes a session. Deleting a missing session is not an error.
	DeleteSession(ctx context.Context, tokenHash string) error

	// DeleteExpiredSessions removes sessions that expired before now.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
