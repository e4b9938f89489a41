package repositories

import (
	"fmt"
	"time"

	"bisik/internal/apperrors"
	"bisik/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "username = ?", username).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user with username %s: %w", username, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return &user, nil
}

// ListByUsername retrieves every holder of a username.
func (r *GORMUserRepository) ListByUsername(username string) ([]models.User, error) {
	var users []models.User
	if err := r.db.Where("username = ?", username).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users by username %s: %w", username, err)
	}
	return users, nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "email = ?", email).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user with email %s: %w", email, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email %s: %w", email, err)
	}
	return &user, nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("user with ID %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by ID %s: %w", id, err)
	}
	return &user, nil
}

// GetVerifiedByUsername retrieves the verified holder of a username.
func (r *GORMUserRepository) GetVerifiedByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "username = ? AND is_verified = ?", username, true).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("verified user with username %s: %w", username, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get verified user by username %s: %w", username, err)
	}
	return &user, nil
}

// RefreshCredentials overwrites password hash, verification code and expiry
// in a single atomic update.
func (r *GORMUserRepository) RefreshCredentials(id, passwordHash, verifyCode string, expiry time.Time) error {
	res := r.db.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"password":           passwordHash,
		"verify_code":        verifyCode,
		"verify_code_expiry": expiry,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to refresh credentials for user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user with ID %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// RefreshVerifyCode reissues the verification code and expiry.
func (r *GORMUserRepository) RefreshVerifyCode(id, verifyCode string, expiry time.Time) error {
	res := r.db.Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"verify_code":        verifyCode,
		"verify_code_expiry": expiry,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to refresh verify code for user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user with ID %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// MarkVerified flips is_verified to true. The update is idempotent, so
// re-verifying an already verified user succeeds without changing state.
func (r *GORMUserRepository) MarkVerified(id string) error {
	if err := r.db.Model(&models.User{}).Where("id = ?", id).Update("is_verified", true).Error; err != nil {
		return fmt.Errorf("failed to mark user %s verified: %w", id, err)
	}
	return nil
}

// SetAcceptingMessages persists the acceptance gate flag.
func (r *GORMUserRepository) SetAcceptingMessages(id string, accepting bool) error {
	res := r.db.Model(&models.User{}).Where("id = ?", id).Update("is_accepting_messages", accepting)
	if res.Error != nil {
		return fmt.Errorf("failed to set accepting messages for user %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user with ID %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}
