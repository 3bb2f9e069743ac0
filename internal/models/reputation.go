package models

import "time"

// Reputation is the per-actor enforcement state. One row per actor, created
// on first tier computation, violation or review flag.
type Reputation struct {
	ActorID          string     `gorm:"primaryKey;size:128" json:"actor_id"`
	Tier             Tier       `gorm:"not null;default:'NEW'" json:"tier"`
	ReputationScore  int        `gorm:"not null;default:0" json:"reputation_score"`
	LastCalculatedAt *time.Time `json:"last_calculated_at,omitempty"`
	ViolationCount   int        `gorm:"not null;default:0" json:"violation_count"`
	LastViolationAt  *time.Time `json:"last_violation_at,omitempty"`
	CooldownUntil    *time.Time `gorm:"index" json:"cooldown_until,omitempty"`
	FlaggedForReview bool       `gorm:"not null;default:false;index" json:"flagged_for_review"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (Reputation) TableName() string {
	return "reputations"
}

// InCooldown reports whether the cooldown window is still open at now.
func (r *Reputation) InCooldown(now time.Time) bool {
	return r != nil && r.CooldownUntil != nil && r.CooldownUntil.After(now)
}
