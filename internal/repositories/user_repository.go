package repositories

import (
	"time"

	"bisik/internal/models"
)

// UserRepository defines the interface for user data access. Mutations on a
// single user must be atomic field updates at the storage layer, not
// read-modify-write, so concurrent requests against the same user cannot
// lose writes.
type UserRepository interface {
	Create(user *models.User) error
	GetByUsername(username string) (*models.User, error)
	// ListByUsername returns every holder of a username. Until one of them
	// verifies, several unverified signups may hold the same name.
	ListByUsername(username string) ([]models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
	// GetVerifiedByUsername returns the verified holder of username. An
	// unverified holder is invisible to this lookup.
	GetVerifiedByUsername(username string) (*models.User, error)
	// RefreshCredentials overwrites password hash, verification code and
	// expiry on an existing user in one update.
	RefreshCredentials(id, passwordHash, verifyCode string, expiry time.Time) error
	// RefreshVerifyCode reissues the verification code and its expiry only.
	RefreshVerifyCode(id, verifyCode string, expiry time.Time) error
	// MarkVerified sets is_verified to true. Nothing ever unsets it.
	MarkVerified(id string) error
	SetAcceptingMessages(id string, accepting bool) error
}
