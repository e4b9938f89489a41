package repositories

import (
	"sync"
	"time"

	"bisik/internal/models"

	"github.com/google/uuid"
)

// MockActivityRepository is an in-memory implementation of ActivityRepository.
type MockActivityRepository struct {
	logs map[string]*models.ActivityLog // keyed by user ID
	mu   sync.Mutex
}

// NewMockActivityRepository creates a new instance of MockActivityRepository.
func NewMockActivityRepository() *MockActivityRepository {
	return &MockActivityRepository{
		logs: make(map[string]*models.ActivityLog),
	}
}

// Append pushes one entry onto the user's log, creating it on first use.
func (r *MockActivityRepository) Append(userID, activity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	logRec, ok := r.logs[userID]
	if !ok {
		logRec = &models.ActivityLog{
			ID:        uuid.New().String(),
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		r.logs[userID] = logRec
	}
	logRec.Entries = append(logRec.Entries, models.ActivityEntry{
		LogID:     logRec.ID,
		Activity:  activity,
		CreatedAt: time.Now(),
	})
	return nil
}

// ListByUser returns the user's entries in append order.
func (r *MockActivityRepository) ListByUser(userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logRec, ok := r.logs[userID]
	if !ok {
		return []string{}, nil
	}
	activities := make([]string, 0, len(logRec.Entries))
	for _, e := range logRec.Entries {
		activities = append(activities, e.Activity)
	}
	return activities, nil
}

// DeleteExpired removes whole logs stamped before cutoff.
func (r *MockActivityRepository) DeleteExpired(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for userID, logRec := range r.logs {
		if logRec.CreatedAt.Before(cutoff) {
			delete(r.logs, userID)
			removed++
		}
	}
	return removed, nil
}
