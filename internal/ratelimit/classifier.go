package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/aman-churiwal/ringhub-gateway/internal/models"
)

// TierCacheTTL is how long a computed tier is reused before recomputing.
const TierCacheTTL = time.Hour

// Reputation score weights
const (
	scorePerActiveRing = 10
	scorePerPost       = 2
	scorePerMembership = 1
)

// Classify derives the tier from account facts alone.
func Classify(actor *models.Actor, now time.Time) models.Tier {
	ageDays := now.Sub(actor.DiscoveredAt).Hours() / 24

	switch {
	case actor.Trusted || (actor.Verified && ageDays > 90):
		return models.TierTrusted
	case ageDays >= 30:
		return models.TierVeteran
	case ageDays >= 7:
		return models.TierEstablished
	default:
		return models.TierNew
	}
}

// TierClassifier resolves an actor's tier, reusing the stored tier while it
// is fresh and recomputing it from the actor directory otherwise.
type TierClassifier struct {
	actors       ActorDirectory
	rings        RingDirectory
	reputations  ReputationStore
	clock        clock.Clock
	logger       *slog.Logger
	storeTimeout time.Duration
}

func NewTierClassifier(actors ActorDirectory, rings RingDirectory, reputations ReputationStore, clk clock.Clock, logger *slog.Logger, storeTimeout time.Duration) *TierClassifier {
	return &TierClassifier{
		actors:       actors,
		rings:        rings,
		reputations:  reputations,
		clock:        clk,
		logger:       logger,
		storeTimeout: storeTimeout,
	}
}

// ResolveTier never fails: store and directory errors resolve to the stored
// tier when there is one, NEW otherwise.
func (c *TierClassifier) ResolveTier(ctx context.Context, actorID string) models.Tier {
	now := c.clock.Now()

	rep, err := c.getReputation(ctx, actorID)
	if err != nil {
		storeErrors.WithLabelValues("reputation_get").Inc()
		c.logger.Warn("reputation lookup failed, recomputing tier", "actor_id", actorID, "error", err)
	}
	if rep != nil && rep.LastCalculatedAt != nil && rep.Tier.IsStored() &&
		now.Sub(*rep.LastCalculatedAt) < TierCacheTTL {
		return rep.Tier
	}

	actor, err := c.getActor(ctx, actorID)
	if err != nil {
		storeErrors.WithLabelValues("actor_get").Inc()
		c.logger.Warn("actor lookup failed, using fallback tier", "actor_id", actorID, "error", err)
		if rep != nil && rep.Tier.IsStored() {
			return rep.Tier
		}
		return models.TierNew
	}
	if actor == nil {
		return models.TierNew
	}

	tier := Classify(actor, now)
	score := c.score(ctx, actorID)

	uctx, cancel := bounded(ctx, c.storeTimeout)
	defer cancel()
	if err := c.reputations.UpsertTier(uctx, actorID, tier, score, now); err != nil {
		storeErrors.WithLabelValues("reputation_upsert_tier").Inc()
		c.logger.Warn("failed to persist tier", "actor_id", actorID, "tier", tier, "error", err)
	}

	return tier
}

func (c *TierClassifier) getReputation(ctx context.Context, actorID string) (*models.Reputation, error) {
	ctx, cancel := bounded(ctx, c.storeTimeout)
	defer cancel()
	return c.reputations.Get(ctx, actorID)
}

func (c *TierClassifier) getActor(ctx context.Context, actorID string) (*models.Actor, error) {
	ctx, cancel := bounded(ctx, c.storeTimeout)
	defer cancel()
	return c.actors.GetActor(ctx, actorID)
}

// score counts each component independently; a failed count contributes 0.
func (c *TierClassifier) score(ctx context.Context, actorID string) int {
	parts := []struct {
		name   string
		weight int
		count  func(context.Context, string) (int, error)
	}{
		{"active_rings", scorePerActiveRing, c.rings.CountActiveRingsWithAcceptedPosts},
		{"accepted_posts", scorePerPost, c.rings.CountAcceptedPostsByAuthor},
		{"memberships", scorePerMembership, c.rings.CountActiveMemberships},
	}

	total := 0
	for _, p := range parts {
		cctx, cancel := bounded(ctx, c.storeTimeout)
		n, err := p.count(cctx, actorID)
		cancel()
		if err != nil {
			storeErrors.WithLabelValues("score_" + p.name).Inc()
			c.logger.Warn("reputation score component unavailable", "actor_id", actorID, "component", p.name, "error", err)
			continue
		}
		total += p.weight * n
	}
	return total
}

// bounded applies the per-call store timeout. A non-positive timeout leaves
// ctx unchanged.
func bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
