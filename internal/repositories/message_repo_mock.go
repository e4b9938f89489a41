package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"bisik/internal/apperrors"
	"bisik/internal/models"

	"github.com/google/uuid"
)

// MockMessageRepository is an in-memory implementation of MessageRepository.
type MockMessageRepository struct {
	messages map[string]models.Message
	mu       sync.RWMutex
}

// NewMockMessageRepository creates a new instance of MockMessageRepository.
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		messages: make(map[string]models.Message),
	}
}

// Create inserts a message into the recipient's mailbox.
func (r *MockMessageRepository) Create(message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	r.messages[message.ID] = *message
	return nil
}

// ListByUser returns the user's messages, newest first.
func (r *MockMessageRepository) ListByUser(userID string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Message, 0)
	for _, m := range r.messages {
		if m.UserID == userID {
			list = append(list, m)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

// Delete removes a single message owned by the user.
func (r *MockMessageRepository) Delete(userID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[messageID]
	if !ok || m.UserID != userID {
		return fmt.Errorf("message with ID %s: %w", messageID, apperrors.ErrNotFound)
	}
	delete(r.messages, messageID)
	return nil
}

// CountSince counts the user's messages created at or after since.
func (r *MockMessageRepository) CountSince(userID string, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, m := range r.messages {
		if m.UserID == userID && !m.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}
