package models

import "time"

// ActivityLog is the per-user ledger document. One row per user, created
// lazily on the first append. The whole log expires together: the sweeper
// deletes logs (and their entries) once CreatedAt is older than the
// retention window, so a user's entire history purges at the same instant.
type ActivityLog struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string          `json:"user_id" gorm:"uniqueIndex;type:varchar(36)"`
	Entries   []ActivityEntry `json:"entries,omitempty" gorm:"foreignKey:LogID"`
	CreatedAt time.Time       `json:"created_at" gorm:"index"`
}

// ActivityEntry is one appended line of the ledger. Seq preserves append
// order within a log.
type ActivityEntry struct {
	Seq       uint64    `json:"-" gorm:"primaryKey;autoIncrement"`
	LogID     string    `json:"-" gorm:"index;type:varchar(36)"`
	Activity  string    `json:"activity" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}
