package models

import "time"

const (
	RingStatusActive     = "active"
	PostStatusAccepted   = "accepted"
	MembershipActive     = "active"
	PostTypeNotification = "fork_notification"
)

// Ring is a community unit; forks point at their parent.
type Ring struct {
	ID        string    `gorm:"primaryKey;size:128" json:"id"`
	Slug      string    `gorm:"uniqueIndex" json:"slug"`
	OwnerID   string    `gorm:"not null;index:idx_owner_created,priority:1" json:"owner_id"`
	ParentID  *string   `gorm:"index" json:"parent_id,omitempty"`
	Status    string    `gorm:"not null;default:'active'" json:"status"`
	CreatedAt time.Time `gorm:"index:idx_owner_created,priority:2" json:"created_at"`
}

func (Ring) TableName() string {
	return "rings"
}

type Post struct {
	ID        string         `gorm:"primaryKey;size:128" json:"id"`
	RingID    string         `gorm:"not null;index:idx_ring_status,priority:1" json:"ring_id"`
	AuthorID  string         `gorm:"not null;index" json:"author_id"`
	Status    string         `gorm:"not null;index:idx_ring_status,priority:2" json:"status"`
	Metadata  map[string]any `gorm:"serializer:json;type:text" json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Post) TableName() string {
	return "posts"
}

type Membership struct {
	ActorID  string    `gorm:"primaryKey;size:128" json:"actor_id"`
	RingID   string    `gorm:"primaryKey;size:128" json:"ring_id"`
	Status   string    `gorm:"not null;default:'active'" json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

func (Membership) TableName() string {
	return "memberships"
}

// RingSummary is the slice of a ring the quality gate needs.
type RingSummary struct {
	ID        string
	CreatedAt time.Time
}
