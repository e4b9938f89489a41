package repositories

import (
	"fmt"
	"time"

	"bisik/internal/apperrors"
	"bisik/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMMessageRepository is a GORM implementation of MessageRepository.
type GORMMessageRepository struct {
	db *gorm.DB
}

// NewGORMMessageRepository creates a new instance of GORMMessageRepository.
func NewGORMMessageRepository(db *gorm.DB) *GORMMessageRepository {
	return &GORMMessageRepository{
		db: db,
	}
}

// Create inserts a message into the recipient's mailbox.
func (r *GORMMessageRepository) Create(message *models.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if err := r.db.Create(message).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListByUser retrieves all messages for a user, newest first.
func (r *GORMMessageRepository) ListByUser(userID string) ([]models.Message, error) {
	var messages []models.Message
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages for user %s: %w", userID, err)
	}
	return messages, nil
}

// Delete removes a single message owned by the user.
func (r *GORMMessageRepository) Delete(userID, messageID string) error {
	res := r.db.Delete(&models.Message{}, "id = ? AND user_id = ?", messageID, userID)
	if res.Error != nil {
		return fmt.Errorf("failed to delete message %s: %w", messageID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("message with ID %s: %w", messageID, apperrors.ErrNotFound)
	}
	return nil
}

// CountSince counts the user's messages created at or after since.
func (r *GORMMessageRepository) CountSince(userID string, since time.Time) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Message{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages for user %s: %w", userID, err)
	}
	return count, nil
}
