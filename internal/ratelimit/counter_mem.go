package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
)

// MemCounterStore keeps action records in process memory. It backs the
// "memory" counter backend and tests.
type MemCounterStore struct {
	mu      sync.RWMutex
	records map[string][]models.ActionRecord
}

var _ CounterStore = (*MemCounterStore)(nil)

func NewMemCounterStore() *MemCounterStore {
	return &MemCounterStore{
		records: make(map[string][]models.ActionRecord),
	}
}

func memCounterKey(actorID, action string) string {
	return actorID + "/" + action
}

func (s *MemCounterStore) Append(ctx context.Context, record *models.ActionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memCounterKey(record.ActorID, record.Action)
	s.records[key] = append(s.records[key], *record)
	return nil
}

func (s *MemCounterStore) CountSince(ctx context.Context, actorID, action string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.records[memCounterKey(actorID, action)] {
		if !r.PerformedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemCounterStore) OldestSince(ctx context.Context, actorID, action string, since time.Time) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest time.Time
	found := false
	for _, r := range s.records[memCounterKey(actorID, action)] {
		if r.PerformedAt.Before(since) {
			continue
		}
		if !found || r.PerformedAt.Before(oldest) {
			oldest = r.PerformedAt
			found = true
		}
	}
	return oldest, found, nil
}

func (s *MemCounterStore) PruneOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64
	for key, list := range s.records {
		kept := list[:0]
		for _, r := range list {
			if r.PerformedAt.Before(horizon) {
				pruned++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			delete(s.records, key)
			continue
		}
		s.records[key] = kept
	}
	return pruned, nil
}
