package services

import (
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"bisik/internal/apperrors"
	"bisik/internal/models"
	"bisik/internal/repositories"

	"github.com/google/uuid"
)

// weeklyWindow is the lookback used for the dashboard message count.
const weeklyWindow = 7 * 24 * time.Hour

// Message content bounds, in characters.
const (
	minContentLen = 10
	maxContentLen = 500
)

// MailboxService handles anonymous message delivery, the per-user acceptance
// gate, and the owner-side mailbox operations.
type MailboxService struct {
	userRepo     repositories.UserRepository
	messageRepo  repositories.MessageRepository
	activityRepo repositories.ActivityRepository
}

// NewMailboxService creates a new MailboxService.
func NewMailboxService(userRepo repositories.UserRepository, messageRepo repositories.MessageRepository, activityRepo repositories.ActivityRepository) *MailboxService {
	return &MailboxService{
		userRepo:     userRepo,
		messageRepo:  messageRepo,
		activityRepo: activityRepo,
	}
}

// Send deposits an anonymous message into the recipient's mailbox. The
// acceptance gate is checked first: a closed gate rejects the message with
// no side effects. Sender identity is never recorded.
func (s *MailboxService) Send(username, content string) error {
	if n := utf8.RuneCountInString(content); n < minContentLen || n > maxContentLen {
		return fmt.Errorf("message content must be %d-%d characters: %w", minContentLen, maxContentLen, apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return fmt.Errorf("failed to load recipient: %w", err)
	}
	if !user.IsAcceptingMessages {
		return fmt.Errorf("user '%s': %w", username, apperrors.ErrNotAccepting)
	}

	now := time.Now()
	message := &models.Message{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.messageRepo.Create(message); err != nil {
		return fmt.Errorf("failed to deliver message: %w", err)
	}

	// Ledger write failure must not undo an already delivered message.
	entry := fmt.Sprintf("anonymous message received at %s", now.Format(time.RFC1123))
	if err := s.activityRepo.Append(user.ID, entry); err != nil {
		log.Printf("Warning: failed to record activity for user %s: %v", user.ID, err)
	}
	return nil
}

// List returns the user's messages, newest first. An empty mailbox is a
// successful empty result.
func (s *MailboxService) List(userID string) ([]models.Message, error) {
	return s.messageRepo.ListByUser(userID)
}

// Delete removes one message from the owner's mailbox and records the
// deletion on the ledger.
func (s *MailboxService) Delete(userID, messageID string) error {
	if err := s.messageRepo.Delete(userID, messageID); err != nil {
		return err
	}

	entry := fmt.Sprintf("feedback of an anonymous user was deleted at %s", time.Now().Format(time.RFC1123))
	if err := s.activityRepo.Append(userID, entry); err != nil {
		log.Printf("Warning: failed to record activity for user %s: %v", userID, err)
	}
	return nil
}

// CountSince counts the user's messages created at or after since.
func (s *MailboxService) CountSince(userID string, since time.Time) (int64, error) {
	return s.messageRepo.CountSince(userID, since)
}

// WeeklyCount counts the user's messages from the last seven days.
func (s *MailboxService) WeeklyCount(userID string) (int64, error) {
	return s.CountSince(userID, time.Now().Add(-weeklyWindow))
}

// GetAcceptingMessages returns the current state of the acceptance gate.
func (s *MailboxService) GetAcceptingMessages(userID string) (bool, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return false, fmt.Errorf("failed to load user: %w", err)
	}
	return user.IsAcceptingMessages, nil
}

// SetAcceptingMessages toggles the acceptance gate and returns the new value.
func (s *MailboxService) SetAcceptingMessages(userID string, accepting bool) (bool, error) {
	if err := s.userRepo.SetAcceptingMessages(userID, accepting); err != nil {
		return false, fmt.Errorf("failed to update acceptance status: %w", err)
	}
	return accepting, nil
}
