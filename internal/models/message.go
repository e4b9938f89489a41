package models

import "time"

// Message is an anonymous message deposited into a user's mailbox. Sender
// identity is never recorded; sending is unauthenticated.
type Message struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `json:"user_id" gorm:"index;type:varchar(36)"`
	Content   string    `json:"content" gorm:"type:varchar(500)" validate:"required,min=10,max=500"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
