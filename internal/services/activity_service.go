package services

import (
	"log"
	"time"

	"bisik/internal/repositories"
)

// activityRetention is how long a user's activity log lives. The whole log
// expires together, 7 days (604800 seconds) after its own creation stamp;
// entries are never aged out individually.
const activityRetention = 7 * 24 * time.Hour

// defaultSweepInterval backs StartSweeper when the configured interval is
// missing or unparseable (which surfaces here as zero).
const defaultSweepInterval = time.Hour

// ActivityService exposes the per-user activity ledger and runs the sweep
// that stands in for storage-native TTL expiry.
type ActivityService struct {
	activityRepo repositories.ActivityRepository
}

// NewActivityService creates a new ActivityService.
func NewActivityService(activityRepo repositories.ActivityRepository) *ActivityService {
	return &ActivityService{
		activityRepo: activityRepo,
	}
}

// List returns the user's activity entries in append order. No log yet means
// an empty result, not an error.
func (s *ActivityService) List(userID string) ([]string, error) {
	return s.activityRepo.ListByUser(userID)
}

// Sweep removes every log older than the retention window and reports how
// many were purged.
func (s *ActivityService) Sweep() (int64, error) {
	return s.activityRepo.DeleteExpired(time.Now().Add(-activityRetention))
}

// StartSweeper runs Sweep on the given interval until the returned stop
// function is called. A zero or negative interval falls back to the default
// instead of panicking the ticker.
func (s *ActivityService) StartSweeper(interval time.Duration) (stop func()) {
	if interval <= 0 {
		log.Printf("Invalid activity sweep interval %v, using %v", interval, defaultSweepInterval)
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				removed, err := s.Sweep()
				if err != nil {
					log.Printf("Activity sweep failed: %v", err)
				} else if removed > 0 {
					log.Printf("Activity sweep purged %d expired log(s)", removed)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
