package repositories

import (
	"fmt"
	"time"

	"bisik/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMActivityRepository is a GORM implementation of ActivityRepository.
type GORMActivityRepository struct {
	db *gorm.DB
}

// NewGORMActivityRepository creates a new instance of GORMActivityRepository.
func NewGORMActivityRepository(db *gorm.DB) *GORMActivityRepository {
	return &GORMActivityRepository{
		db: db,
	}
}

// Append pushes one entry onto the user's log inside a transaction. The
// insert-if-absent goes through ON CONFLICT DO NOTHING on the user_id unique
// index, so two racing first appends both land on the surviving log instead
// of one rolling back and dropping its entry.
func (r *GORMActivityRepository) Append(userID, activity string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		logRec := models.ActivityLog{
			ID:        uuid.New().String(),
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&logRec).Error; err != nil {
			return err
		}
		// A concurrent append may have created the log first; the entry must
		// attach to whichever row survived the conflict.
		if err := tx.First(&logRec, "user_id = ?", userID).Error; err != nil {
			return err
		}
		entry := models.ActivityEntry{
			LogID:     logRec.ID,
			Activity:  activity,
			CreatedAt: time.Now(),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return fmt.Errorf("failed to append activity for user %s: %w", userID, err)
	}
	return nil
}

// ListByUser returns the user's entries in append order.
func (r *GORMActivityRepository) ListByUser(userID string) ([]string, error) {
	var logRec models.ActivityLog
	if err := r.db.First(&logRec, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to load activity log for user %s: %w", userID, err)
	}

	var entries []models.ActivityEntry
	if err := r.db.Where("log_id = ?", logRec.ID).Order("seq ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list activity entries for user %s: %w", userID, err)
	}

	activities := make([]string, 0, len(entries))
	for _, e := range entries {
		activities = append(activities, e.Activity)
	}
	return activities, nil
}

// DeleteExpired removes logs stamped before cutoff together with their
// entries. This is the sweep backing the 7-day retention window.
func (r *GORMActivityRepository) DeleteExpired(cutoff time.Time) (int64, error) {
	var removed int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var expired []models.ActivityLog
		if err := tx.Where("created_at < ?", cutoff).Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]string, 0, len(expired))
		for _, l := range expired {
			ids = append(ids, l.ID)
		}
		if err := tx.Where("log_id IN ?", ids).Delete(&models.ActivityEntry{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.ActivityLog{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired activity logs: %w", err)
	}
	return removed, nil
}
