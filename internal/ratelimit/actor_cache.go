package ratelimit

import (
	"context"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedActorDirectory memoizes actor profiles, including misses, for a
// short TTL. Both the admin check and the tier classifier read the profile
// on every decision.
type CachedActorDirectory struct {
	next  ActorDirectory
	cache *expirable.LRU[string, *models.Actor]
}

var _ ActorDirectory = (*CachedActorDirectory)(nil)

func NewCachedActorDirectory(next ActorDirectory, size int, ttl time.Duration) *CachedActorDirectory {
	return &CachedActorDirectory{
		next:  next,
		cache: expirable.NewLRU[string, *models.Actor](size, nil, ttl),
	}
}

func (d *CachedActorDirectory) GetActor(ctx context.Context, actorID string) (*models.Actor, error) {
	if actor, ok := d.cache.Get(actorID); ok {
		return copyActor(actor), nil
	}

	actor, err := d.next.GetActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	d.cache.Add(actorID, copyActor(actor))
	return actor, nil
}

// Purge drops a cached profile. The engine calls it after an operator
// applies or clears a cooldown.
func (d *CachedActorDirectory) Purge(actorID string) {
	d.cache.Remove(actorID)
}

func copyActor(a *models.Actor) *models.Actor {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
