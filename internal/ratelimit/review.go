package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/aman-churiwal/ringhub-gateway/internal/events"
)

// Volume thresholds that raise a review flag
const (
	ReviewWeeklyThreshold  = 20
	ReviewMonthlyThreshold = 50
)

// ReviewMonitor flags high-volume actors for human review. The flag is
// advisory: nothing in the decision path reads it.
type ReviewMonitor struct {
	counters     CounterStore
	reputations  ReputationStore
	publisher    events.Publisher
	clock        clock.Clock
	logger       *slog.Logger
	storeTimeout time.Duration
}

func NewReviewMonitor(counters CounterStore, reputations ReputationStore, publisher events.Publisher, clk clock.Clock, logger *slog.Logger, storeTimeout time.Duration) *ReviewMonitor {
	return &ReviewMonitor{
		counters:     counters,
		reputations:  reputations,
		publisher:    publisher,
		clock:        clk,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

// Observe runs after an action was recorded. It returns whether the actor
// was newly flagged.
func (m *ReviewMonitor) Observe(ctx context.Context, actorID, action string) bool {
	now := m.clock.Now()

	weekly, err := m.count(ctx, actorID, action, now.Add(-WeekWindow))
	if err != nil {
		storeErrors.WithLabelValues("counter_count").Inc()
		m.logger.Warn("review monitor skipped", "actor_id", actorID, "action", action, "error", err)
		return false
	}
	monthly, err := m.count(ctx, actorID, action, now.Add(-MonthWindow))
	if err != nil {
		storeErrors.WithLabelValues("counter_count").Inc()
		m.logger.Warn("review monitor skipped", "actor_id", actorID, "action", action, "error", err)
		return false
	}

	if weekly < ReviewWeeklyThreshold && monthly < ReviewMonthlyThreshold {
		return false
	}

	gctx, cancel := bounded(ctx, m.storeTimeout)
	rep, err := m.reputations.Get(gctx, actorID)
	cancel()
	if err == nil && rep != nil && rep.FlaggedForReview {
		return false
	}

	sctx, cancel := bounded(ctx, m.storeTimeout)
	defer cancel()
	if err := m.reputations.SetFlagged(sctx, actorID, true); err != nil {
		storeErrors.WithLabelValues("reputation_set_flagged").Inc()
		m.logger.Warn("failed to flag actor for review", "actor_id", actorID, "error", err)
		return false
	}

	reviewFlags.Inc()
	m.logger.Info("actor flagged for review", "actor_id", actorID, "weekly", weekly, "monthly", monthly)
	if err := m.publisher.Publish(sctx, events.TopicActorFlagged, events.ActorFlagged{
		ActorID:      actorID,
		WeeklyCount:  weekly,
		MonthlyCount: monthly,
		FlaggedAt:    now,
	}); err != nil {
		m.logger.Warn("failed to publish event", "topic", events.TopicActorFlagged, "error", err)
	}
	return true
}

func (m *ReviewMonitor) count(ctx context.Context, actorID, action string, since time.Time) (int, error) {
	ctx, cancel := bounded(ctx, m.storeTimeout)
	defer cancel()
	return m.counters.CountSince(ctx, actorID, action, since)
}
