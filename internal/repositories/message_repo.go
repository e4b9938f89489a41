package repositories

import (
	"time"

	"bisik/internal/models"
)

// MessageRepository defines the interface for mailbox data access. Insertion
// and deletion are single atomic statements; deletion is scoped to the
// owning user so a caller can never remove another user's message.
type MessageRepository interface {
	Create(message *models.Message) error
	// ListByUser returns the user's messages sorted by created_at descending
	// (newest first). An empty mailbox yields an empty slice, not an error.
	ListByUser(userID string) ([]models.Message, error)
	// Delete removes exactly the message with the given ID from the user's
	// mailbox. Zero rows removed is a not-found error.
	Delete(userID, messageID string) error
	// CountSince counts messages with created_at >= since.
	CountSince(userID string, since time.Time) (int64, error)
}
