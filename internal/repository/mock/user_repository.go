package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fjmerc/softvault/internal/models"
	"github.com/fjmerc/softvault/internal/repository"
)

// UserRepository is a mock implementation of repository.UserRepository.
// Users are keyed by ID with a lowercased email index; sessions by token hash.
type UserRepository struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	byEmail  map[string]string
	sessions map[string]*models.UserSession

	// Error injection
	UpsertError        error
	GetByIDError       error
	GetByEmailError    error
	CreateSessionError error
	GetSessionError    error
	DeleteSessionError error
}

// NewUserRepository creates an empty mock UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:    make(map[string]*models.User),
		byEmail:  make(map[string]string),
		sessions: make(map[string]*models.UserSession),
	}
}

var _ repository.UserRepository = (*UserRepository)(nil)

// Reset clears all users, sessions and errors.
func (r *UserRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users = make(map[string]*models.User)
	r.byEmail = make(map[string]string)
	r.sessions = make(map[string]*models.UserSession)
	r.UpsertError = nil
	r.GetByIDError = nil
	r.GetByEmailError = nil
	r.CreateSessionError = nil
	r.GetSessionError = nil
	r.DeleteSessionError = nil
}

// AddUser stores a user directly for test setup.
func (r *UserRepository) AddUser(u *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	cp.Email = strings.ToLower(cp.Email)
	r.users[u.ID] = &cp
	r.byEmail[cp.Email] = u.ID
}

// AddSession stores a session directly for test setup.
func (r *UserRepository) AddSession(s *models.UserSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *s
	r.sessions[s.TokenHash] = &cp
}

// SessionCount returns the number of stored sessions, expired ones included.
func (r *UserRepository) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Upsert implements repository.UserRepository.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	if r.UpsertError != nil {
		return nil, r.UpsertError
	}
	if user == nil || user.Email == "" || !user.Role.Valid() || user.PasswordHash == "" {
		return nil, fmt.Errorf("%w: email, role and password hash are required", repository.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	now := time.Now().UTC()

	if id, ok := r.byEmail[email]; ok {
		stored := r.users[id]
		stored.Name = user.Name
		stored.PasswordHash = user.PasswordHash
		stored.Role = user.Role
		stored.UpdatedAt = now
		cp := *stored
		return &cp, nil
	}

	cp := *user
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.Email = email
	cp.CreatedAt = now
	cp.UpdatedAt = now
	r.users[cp.ID] = &cp
	r.byEmail[email] = cp.ID

	out := cp
	return &out, nil
}

// GetByID implements repository.UserRepository.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if r.GetByIDError != nil {
		return nil, r.GetByIDError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetByEmail implements repository.UserRepository.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if r.GetByEmailError != nil {
		return nil, r.GetByEmailError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r.users[id]
	return &cp, nil
}

// CreateSession implements repository.UserRepository.
func (r *UserRepository) CreateSession(ctx context.Context, session *models.UserSession) error {
	if r.CreateSessionError != nil {
		return r.CreateSessionError
	}
	if session == nil || session.TokenHash == "" || session.UserID == "" {
		return fmt.Errorf("%w: session requires token hash and user id", repository.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.TokenHash]; ok {
		return repository.ErrDuplicateKey
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	cp := *session
	r.sessions[session.TokenHash] = &cp
	return nil
}

// GetSession implements repository.UserRepository.
func (r *UserRepository) GetSession(ctx context.Context, tokenHash string) (*models.UserSession, error) {
	if r.GetSessionError != nil {
		return nil, r.GetSessionError
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[tokenHash]
	if !ok || s.IsExpired(time.Now()) {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// DeleteSession implements repository.UserRepository.
func (r *UserRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	if r.DeleteSessionError != nil {
		return r.DeleteSessionError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, tokenHash)
	return nil
}

// DeleteExpiredSessions implements repository.UserRepository.
func (r *UserRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, s := range r.sessions {
		if s.IsExpired(now) {
			delete(r.sessions, hash)
			n++
		}
	}
	return n, nil
}
