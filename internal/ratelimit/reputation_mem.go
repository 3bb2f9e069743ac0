package ratelimit

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/models"
)

// MemReputationStore is an in-process ReputationStore used by tests and the
// memory backend.
type MemReputationStore struct {
	mu   sync.Mutex
	data map[string]models.Reputation
}

var _ ReputationStore = (*MemReputationStore)(nil)

func NewMemReputationStore() *MemReputationStore {
	return &MemReputationStore{
		data: make(map[string]models.Reputation),
	}
}

func (s *MemReputationStore) Get(ctx context.Context, actorID string) (*models.Reputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep, ok := s.data[actorID]
	if !ok {
		return nil, nil
	}
	return &rep, nil
}

// load must be called with s.mu held
func (s *MemReputationStore) load(actorID string) models.Reputation {
	rep, ok := s.data[actorID]
	if !ok {
		rep = models.Reputation{ActorID: actorID, Tier: models.TierNew}
	}
	return rep
}

func (s *MemReputationStore) UpsertTier(ctx context.Context, actorID string, tier models.Tier, score int, calculatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := s.load(actorID)
	rep.Tier = tier
	rep.ReputationScore = score
	rep.LastCalculatedAt = &calculatedAt
	rep.UpdatedAt = calculatedAt
	s.data[actorID] = rep
	return nil
}

func (s *MemReputationStore) RecordViolation(ctx context.Context, actorID string, at, cooldownUntil, pinnedUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := s.load(actorID)
	rep.ViolationCount++
	rep.LastViolationAt = &at
	rep.CooldownUntil = &cooldownUntil
	rep.Tier = models.TierNew
	rep.LastCalculatedAt = &pinnedUntil
	rep.UpdatedAt = at
	s.data[actorID] = rep
	return nil
}

func (s *MemReputationStore) SetFlagged(ctx context.Context, actorID string, flagged bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := s.load(actorID)
	rep.FlaggedForReview = flagged
	s.data[actorID] = rep
	return nil
}

func (s *MemReputationStore) ClearViolations(ctx context.Context, actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep, ok := s.data[actorID]
	if !ok {
		return nil
	}
	rep.FlaggedForReview = false
	rep.ViolationCount = 0
	rep.LastViolationAt = nil
	rep.CooldownUntil = nil
	rep.LastCalculatedAt = nil
	s.data[actorID] = rep
	return nil
}

func (s *MemReputationStore) ListFlagged(ctx context.Context) ([]models.Reputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Reputation{}
	for _, rep := range s.data {
		if rep.FlaggedForReview {
			out = append(out, rep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out, nil
}
