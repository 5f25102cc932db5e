package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

// UserRepository implements repository.UserRepository for SQLite.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
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

	tx, err := beginImmediateTx(ctx, r.db)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())

	var existingID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ?`, email).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id := user.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, email, user.Name, user.PasswordHash, string(user.Role), now, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, repository.ErrDuplicateKey
			}
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		existingID = id
	case err != nil:
		return nil, fmt.Errorf("failed to look up user: %w", err)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET name = ?, password_hash = ?, role = ?, updated_at = ? WHERE id = ?`,
			user.Name, user.PasswordHash, string(user.Role), now, existingID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	}

	stored, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, existingID))
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return stored, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
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

	user, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
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
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		session.TokenHash,
		session.UserID,
		formatTime(session.CreatedAt),
		formatTime(session.ExpiresAt),
		session.IPAddress,
		session.UserAgent,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateKey
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves an unexpired session by token hash.
func (r *UserRepository) GetSession(ctx context.Context, tokenHash string) (*models.UserSession, error) {
	query := `SELECT token_hash, user_id, created_at, expires_at, ip_address, user_agent
		FROM user_sessions WHERE token_hash = ? AND expires_at > ?`

	var s models.UserSession
	var createdAt, expiresAt string

	err := r.db.QueryRowContext(ctx, query, tokenHash, formatTime(time.Now())).Scan(
		&s.TokenHash,
		&s.UserID,
		&createdAt,
		&expiresAt,
		&s.IPAddress,
		&s.UserAgent,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if s.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("invalid expires_at: %w", err)
	}

	return &s, nil
}

// DeleteSession removes a session.
func (r *UserRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now.
func (r *UserRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var role, createdAt, updatedAt string

	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	u.Role = models.Role(role)

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &u, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
