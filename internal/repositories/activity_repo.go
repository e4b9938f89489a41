package repositories

import "time"

// ActivityRepository defines the interface for the per-user activity ledger.
// Append must be an atomic create-if-absent-else-push: concurrent appends
// from independent requests may not lose entries or create duplicate logs.
type ActivityRepository interface {
	// Append records one event line on the user's log, creating the log on
	// first use.
	Append(userID, activity string) error
	// ListByUser returns the log's entries in append order (newest last). A
	// missing or empty log yields an empty slice, not an error.
	ListByUser(userID string) ([]string, error)
	// DeleteExpired removes every log whose own creation stamp is older than
	// cutoff, entries included. Whole logs expire together; individual
	// entries are never aged out. Returns the number of logs removed.
	DeleteExpired(cutoff time.Time) (int64, error)
}
