package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification is addressed to one user, or to everyone when UserID is nil.
type Notification struct {
	gorm.Model
	UserID  *uint      `json:"user_id" gorm:"index"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Type    string     `json:"type"` // "info", "order", "batch", "delay"
	IsRead  bool       `json:"is_read" gorm:"index"`
	ReadAt  *time.Time `json:"read_at"`
}
