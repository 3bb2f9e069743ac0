package models

import "time"

// Actions understood by the gateway
const (
	ActionFork = "fork"
)

// ActionRecord is one accepted action by an actor. Records are append-only
// and removed only by the retention sweep.
type ActionRecord struct {
	ID          string         `gorm:"primaryKey;size:32" json:"id"`
	ActorID     string         `gorm:"not null;index:idx_actor_action_time,priority:1" json:"actor_id"`
	Action      string         `gorm:"not null;index:idx_actor_action_time,priority:2" json:"action"`
	PerformedAt time.Time      `gorm:"not null;index:idx_actor_action_time,priority:3;index" json:"performed_at"`
	Metadata    map[string]any `gorm:"serializer:json" json:"metadata,omitempty"`
}

func (ActionRecord) TableName() string {
	return "action_records"
}
