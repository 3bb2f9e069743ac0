package models

import "time"

// Actor is the hub's view of an account. The gateway only reads it.
type Actor struct {
	ID           string    `gorm:"primaryKey;size:128" json:"id"`
	Handle       string    `gorm:"index" json:"handle"`
	DiscoveredAt time.Time `gorm:"not null" json:"discovered_at"`
	Trusted      bool      `gorm:"not null;default:false" json:"trusted"`
	Verified     bool      `gorm:"not null;default:false" json:"verified"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"is_admin"`
}

func (Actor) TableName() string {
	return "actors"
}
