package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/aman-churiwal/ringhub-gateway/internal/events"
	"github.com/aman-churiwal/ringhub-gateway/internal/models"
)

const (
	DefaultCooldownHours = 24

	// MaxCooldownHours is the longest lockout an operator may apply (30 days).
	MaxCooldownHours = 720
)

// ViolationTracker opens and checks penalty windows.
type ViolationTracker struct {
	reputations  ReputationStore
	publisher    events.Publisher
	clock        clock.Clock
	logger       *slog.Logger
	storeTimeout time.Duration
}

func NewViolationTracker(reputations ReputationStore, publisher events.Publisher, clk clock.Clock, logger *slog.Logger, storeTimeout time.Duration) *ViolationTracker {
	return &ViolationTracker{
		reputations:  reputations,
		publisher:    publisher,
		clock:        clk,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

// ApplyCooldown records a violation and locks the actor out for hours
// (DefaultCooldownHours when hours <= 0). The actor is demoted to NEW, and
// the demotion is pinned until one tier cache period after the cooldown
// lifts, so the actor resumes under the strictest quota. Hours above
// MaxCooldownHours are rejected with ErrInvalidCooldown.
func (t *ViolationTracker) ApplyCooldown(ctx context.Context, actorID string, hours int) (time.Time, error) {
	if hours <= 0 {
		hours = DefaultCooldownHours
	}
	if hours > MaxCooldownHours {
		return time.Time{}, fmt.Errorf("%w: %d hours exceeds %d", ErrInvalidCooldown, hours, MaxCooldownHours)
	}

	now := t.clock.Now()
	until := now.Add(time.Duration(hours) * time.Hour)

	ctx, cancel := bounded(ctx, t.storeTimeout)
	defer cancel()
	if err := t.reputations.RecordViolation(ctx, actorID, now, until, until); err != nil {
		storeErrors.WithLabelValues("reputation_record_violation").Inc()
		return time.Time{}, fmt.Errorf("applying cooldown to %s: %w", actorID, err)
	}

	cooldownsApplied.Inc()
	t.logger.Info("cooldown applied", "actor_id", actorID, "hours", hours, "cooldown_until", until)
	t.publish(ctx, events.TopicCooldownApplied, events.CooldownApplied{
		ActorID:       actorID,
		CooldownUntil: until,
		AppliedAt:     now,
	})

	return until, nil
}

// ActiveCooldown returns the reputation record when the actor is currently
// in cooldown. Lookup failures count as no cooldown.
func (t *ViolationTracker) ActiveCooldown(ctx context.Context, actorID string) (*models.Reputation, bool) {
	ctx, cancel := bounded(ctx, t.storeTimeout)
	defer cancel()

	rep, err := t.reputations.Get(ctx, actorID)
	if err != nil {
		storeErrors.WithLabelValues("reputation_get").Inc()
		t.logger.Warn("cooldown check failed, allowing", "actor_id", actorID, "error", err)
		return nil, false
	}
	if !rep.InCooldown(t.clock.Now()) {
		return nil, false
	}
	return rep, true
}

func (t *ViolationTracker) IsInCooldown(ctx context.Context, actorID string) bool {
	_, in := t.ActiveCooldown(ctx, actorID)
	return in
}

// ClearViolations is an admin reset. The tier is recomputed on next use.
func (t *ViolationTracker) ClearViolations(ctx context.Context, actorID string) error {
	ctx, cancel := bounded(ctx, t.storeTimeout)
	defer cancel()

	if err := t.reputations.ClearViolations(ctx, actorID); err != nil {
		storeErrors.WithLabelValues("reputation_clear").Inc()
		return fmt.Errorf("clearing violations for %s: %w", actorID, err)
	}

	t.logger.Info("violations cleared", "actor_id", actorID)
	t.publish(ctx, events.TopicViolationsCleared, events.ViolationsCleared{
		ActorID:   actorID,
		ClearedAt: t.clock.Now(),
	})
	return nil
}

func (t *ViolationTracker) publish(ctx context.Context, topic string, event any) {
	if err := t.publisher.Publish(ctx, topic, event); err != nil {
		t.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
