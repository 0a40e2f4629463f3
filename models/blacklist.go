package models

import "time"

// Blacklist holds access tokens invalidated by logout.
type Blacklist struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Token     string    `gorm:"index" json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
