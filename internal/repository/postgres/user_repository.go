package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

// UserRepository implements repository.UserRepository for PostgreSQL.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Input validation constants.
const (
	maxNameLen  = 128
	maxEmailLen = 254
)

const userColumns = `id, email, name, password_hash, role, created_at, updated_at`

// Upsert creates the user or updates the account with the same email.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: user cannot be nil", repository.ErrInvalidInput)
	}
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" || len(email) > maxEmailLen {
		return nil, fmt.Errorf("%w: email must be 1-%d characters", repository.ErrInvalidInput, maxEmailLen)
	}
	if len(user.Name) > maxNameLen {
		return nil, fmt.Errorf("%w: name must be at most %d characters", repository.ErrInvalidInput, maxNameLen)
	}
	if !user.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", repository.ErrInvalidInput, user.Role)
	}
	if user.PasswordHash == "" {
		return nil, fmt.Errorf("%w: password hash cannot be empty", repository.ErrInvalidInput)
	}

	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	stored, err := withRetry(ctx, defaultMaxRetries, func() (*models.User, error) {
		return scanUser(r.pool.QueryRow(ctx, query, id, email, user.Name, user.PasswordHash, string(user.Role), now))
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return stored, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// CreateSession stores a new login session.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.UserSession) error {
	if session == nil || session.TokenHash == "" || session.UserID == "" {
		return fmt.Errorf("%w: session requires token hash and user id", repository.ErrInvalidInput)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO user_sessions (token_hash, user_id, created_at, expires_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		session.TokenHash,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
		session.IPAddress,
		session.UserAgent,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown user", repository.ErrInvalidInput)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves an unexpired session by token hash.
func (r *UserRepository) GetSession(ctx context.Context, tokenHash string) (*models.UserSession, error) {
	query := `SELECT token_hash, user_id, created_at, expires_at, ip_address, user_agent
		FROM user_sessions WHERE token_hash = $1 AND expires_at > $2`

	var s models.UserSession
	err := r.pool.QueryRow(ctx, query, tokenHash, time.Now().UTC()).Scan(
		&s.TokenHash,
		&s.UserID,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.IPAddress,
		&s.UserAgent,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &s, nil
}

// DeleteSession removes a session.
func (r *UserRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM user_sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now.
func (r *UserRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string

	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	u.Role = models.Role(role)
	return &u, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
