// Package events publishes enforcement side effects for moderators and
// downstream consumers.
package events

import (
	"context"
	"time"
)

// Event topic constants
const (
	TopicActorFlagged      = "ringhub.actor.flagged"
	TopicCooldownApplied   = "ringhub.actor.cooldown"
	TopicViolationsCleared = "ringhub.actor.cleared"
	TopicForkDenied        = "ringhub.fork.denied"
)

type ActorFlagged struct {
	ActorID      string    `json:"actor_id"`
	WeeklyCount  int       `json:"weekly_count"`
	MonthlyCount int       `json:"monthly_count"`
	FlaggedAt    time.Time `json:"flagged_at"`
}

type CooldownApplied struct {
	ActorID       string    `json:"actor_id"`
	CooldownUntil time.Time `json:"cooldown_until"`
	AppliedAt     time.Time `json:"applied_at"`
}

type ViolationsCleared struct {
	ActorID   string    `json:"actor_id"`
	ClearedAt time.Time `json:"cleared_at"`
}

type ForkDenied struct {
	ActorID string    `json:"actor_id"`
	Action  string    `json:"action"`
	Reason  string    `json:"reason"`
	Tier    string    `json:"tier"`
	RetryAt time.Time `json:"retry_at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
