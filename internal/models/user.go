package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. A user starts unverified and becomes
// verified exactly once; only verified holders block a username for others,
// so username carries a plain index while email stays globally unique.
type User struct {
	ID                  string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username            string    `json:"username" gorm:"index;type:varchar(20)" validate:"required,min=2,max=20"`
	Email               string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password            string    `gorm:"type:varchar(255)"` // bcrypt hash, no json tag for security
	VerifyCode          string    `json:"-" gorm:"type:varchar(6)"`
	VerifyCodeExpiry    time.Time `json:"-"`
	IsVerified          bool      `json:"is_verified" gorm:"default:false"`
	IsAcceptingMessages bool      `json:"is_accepting_messages" gorm:"default:true"`
	Messages            []Message `json:"messages,omitempty" gorm:"foreignKey:UserID"`
	gorm.Model          // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}
