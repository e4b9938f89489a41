package repositories

import (
	"fmt"
	"sync"
	"time"

	"bisik/internal/apperrors"
	"bisik/internal/models"

	"github.com/google/uuid"
)

// MockUserRepository is an in-memory implementation of UserRepository. It is
// used when no database is configured and in tests.
type MockUserRepository struct {
	users map[string]models.User
	mu    sync.RWMutex
}

// NewMockUserRepository creates a new instance of MockUserRepository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]models.User),
	}
}

// Create adds a new user.
func (r *MockUserRepository) Create(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return fmt.Errorf("user with email %s already exists", user.Email)
		}
	}
	r.users[user.ID] = *user
	return nil
}

// GetByUsername returns a user by username.
func (r *MockUserRepository) GetByUsername(username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user with username %s: %w", username, apperrors.ErrNotFound)
}

// ListByUsername returns every holder of a username.
func (r *MockUserRepository) ListByUsername(username string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]models.User, 0)
	for _, u := range r.users {
		if u.Username == username {
			users = append(users, u)
		}
	}
	return users, nil
}

// GetByEmail returns a user by email.
func (r *MockUserRepository) GetByEmail(email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user with email %s: %w", email, apperrors.ErrNotFound)
}

// GetByID returns a user by ID.
func (r *MockUserRepository) GetByID(id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user with ID %s: %w", id, apperrors.ErrNotFound)
	}
	return &user, nil
}

// GetVerifiedByUsername returns the verified holder of a username.
func (r *MockUserRepository) GetVerifiedByUsername(username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Username == username && u.IsVerified {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("verified user with username %s: %w", username, apperrors.ErrNotFound)
}

// RefreshCredentials overwrites password hash, verification code and expiry.
func (r *MockUserRepository) RefreshCredentials(id, passwordHash, verifyCode string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user with ID %s: %w", id, apperrors.ErrNotFound)
	}
	user.Password = passwordHash
	user.VerifyCode = verifyCode
	user.VerifyCodeExpiry = expiry
	r.users[id] = user
	return nil
}

// RefreshVerifyCode reissues the verification code and expiry.
func (r *MockUserRepository) RefreshVerifyCode(id, verifyCode string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user with ID %s: %w", id, apperrors.ErrNotFound)
	}
	user.VerifyCode = verifyCode
	user.VerifyCodeExpiry = expiry
	r.users[id] = user
	return nil
}

// MarkVerified flips is_verified to true.
func (r *MockUserRepository) MarkVerified(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user with ID %s: %w", id, apperrors.ErrNotFound)
	}
	user.IsVerified = true
	r.users[id] = user
	return nil
}

// SetAcceptingMessages persists the acceptance gate flag.
func (r *MockUserRepository) SetAcceptingMessages(id string, accepting bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user with ID %s: %w", id, apperrors.ErrNotFound)
	}
	user.IsAcceptingMessages = accepting
	r.users[id] = user
	return nil
}
