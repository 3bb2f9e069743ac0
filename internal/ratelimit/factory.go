package ratelimit

import (
	"fmt"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/repository"
	"github.com/aman-churiwal/ringhub-gateway/internal/storage"
)

// Counter store backends
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

var (
	_ CounterStore    = (*repository.ActionRepository)(nil)
	_ ReputationStore = (*repository.ReputationRepository)(nil)
	_ ActorDirectory  = (*repository.ActorRepository)(nil)
	_ RingDirectory   = (*repository.RingRepository)(nil)
)

// NewCounterStore picks the counter backend. Redis keeps each actor's set
// for retention after its last write; postgres relies on the retention
// sweeper.
func NewCounterStore(backend string, redis *storage.RedisClient, db *storage.Postgres, retention time.Duration) (CounterStore, error) {
	switch backend {
	case BackendRedis:
		if redis == nil {
			return nil, fmt.Errorf("counter backend %q requires redis", backend)
		}
		return NewRedisCounterStore(redis, retention), nil
	case BackendPostgres, "":
		if db == nil {
			return nil, fmt.Errorf("counter backend %q requires a database", BackendPostgres)
		}
		return repository.NewActionRepository(db), nil
	case BackendMemory:
		return NewMemCounterStore(), nil
	default:
		return nil, fmt.Errorf("unknown counter backend %q", backend)
	}
}
