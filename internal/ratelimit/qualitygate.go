package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
)

// GateGracePeriod lets a freshly created ring through while it is being set
// up.
const GateGracePeriod = time.Hour

const gateFailureReason = "must have at least 1 post in most recent ring before creating another"

type GateResult struct {
	Passed bool
	Reason string
}

// QualityGate requires the actor's most recent ring to show real engagement
// before another fork is allowed.
type QualityGate struct {
	rings        RingDirectory
	clock        clock.Clock
	logger       *slog.Logger
	storeTimeout time.Duration
}

func NewQualityGate(rings RingDirectory, clk clock.Clock, logger *slog.Logger, storeTimeout time.Duration) *QualityGate {
	return &QualityGate{
		rings:        rings,
		clock:        clk,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

// Check passes when the actor owns no ring, when the latest ring has an
// accepted post that is not a fork notification, or when that ring is still
// inside the grace period. Directory errors pass.
func (g *QualityGate) Check(ctx context.Context, actorID string) GateResult {
	rctx, cancel := bounded(ctx, g.storeTimeout)
	ring, err := g.rings.MostRecentRingOwnedBy(rctx, actorID)
	cancel()
	if err != nil {
		storeErrors.WithLabelValues("ring_most_recent").Inc()
		g.logger.Warn("quality gate skipped, ring lookup failed", "actor_id", actorID, "error", err)
		return GateResult{Passed: true}
	}
	if ring == nil {
		return GateResult{Passed: true}
	}

	pctx, cancel := bounded(ctx, g.storeTimeout)
	posts, err := g.rings.CountAcceptedPosts(pctx, ring.ID, true)
	cancel()
	if err != nil {
		storeErrors.WithLabelValues("ring_accepted_posts").Inc()
		g.logger.Warn("quality gate skipped, post count failed", "actor_id", actorID, "ring_id", ring.ID, "error", err)
		return GateResult{Passed: true}
	}
	if posts > 0 {
		return GateResult{Passed: true}
	}

	if g.clock.Now().Sub(ring.CreatedAt) < GateGracePeriod {
		return GateResult{Passed: true}
	}

	return GateResult{Passed: false, Reason: gateFailureReason}
}
