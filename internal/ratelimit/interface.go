package ratelimit

import (
	"context"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
)

// CounterStore is the append-only log of accepted actions.
type CounterStore interface {
	Append(ctx context.Context, record *models.ActionRecord) error

	// CountSince counts records for actor/action with PerformedAt >= since.
	CountSince(ctx context.Context, actorID, action string, since time.Time) (int, error)

	// OldestSince returns the PerformedAt of the oldest record at or after
	// since. ok is false when the window is empty.
	OldestSince(ctx context.Context, actorID, action string, since time.Time) (oldest time.Time, ok bool, err error)

	// PruneOlderThan deletes records with PerformedAt < horizon.
	PruneOlderThan(ctx context.Context, horizon time.Time) (int64, error)
}

// ReputationStore holds one enforcement record per actor. Every mutation is a
// single upsert so concurrent writers merge instead of overwriting a stale
// read.
type ReputationStore interface {
	// Get returns nil, nil when the actor has no record.
	Get(ctx context.Context, actorID string) (*models.Reputation, error)

	UpsertTier(ctx context.Context, actorID string, tier models.Tier, score int, calculatedAt time.Time) error

	// RecordViolation increments the violation count, stamps the violation,
	// opens the cooldown and demotes the actor to NEW. pinnedUntil becomes the
	// record's LastCalculatedAt so the demotion survives the tier cache.
	RecordViolation(ctx context.Context, actorID string, at, cooldownUntil, pinnedUntil time.Time) error

	// SetFlagged creates the record with tier NEW when absent.
	SetFlagged(ctx context.Context, actorID string, flagged bool) error

	// ClearViolations resets the flag, violations and cooldown and expires
	// the tier cache. The stored tier itself is left alone.
	ClearViolations(ctx context.Context, actorID string) error

	ListFlagged(ctx context.Context) ([]models.Reputation, error)
}

// ActorDirectory resolves actor profiles. GetActor returns nil, nil for an
// unknown actor.
type ActorDirectory interface {
	GetActor(ctx context.Context, actorID string) (*models.Actor, error)
}

// RingDirectory answers the ring and post questions the engine asks.
type RingDirectory interface {
	CountRingsOwnedBy(ctx context.Context, actorID string) (int, error)

	// MostRecentRingOwnedBy returns nil, nil when the actor owns no ring.
	MostRecentRingOwnedBy(ctx context.Context, actorID string) (*models.RingSummary, error)

	CountAcceptedPosts(ctx context.Context, ringID string, excludeNotifications bool) (int, error)
	CountActiveRingsWithAcceptedPosts(ctx context.Context, actorID string) (int, error)
	CountAcceptedPostsByAuthor(ctx context.Context, actorID string) (int, error)
	CountActiveMemberships(ctx context.Context, actorID string) (int, error)
}
