package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/clock"
	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

var testNow = time.Date(2026, 4, 20, 15, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeActors struct {
	mu     sync.Mutex
	actors map[string]*models.Actor
	err    error
	calls  int
}

func newFakeActors() *fakeActors {
	return &fakeActors{actors: make(map[string]*models.Actor)}
}

func (f *fakeActors) add(a *models.Actor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actors[a.ID] = a
}

func (f *fakeActors) GetActor(ctx context.Context, actorID string) (*models.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.actors[actorID]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

type fakeRings struct {
	mu          sync.Mutex
	recent      map[string]*models.RingSummary
	posts       map[string]int
	activeRings map[string]int
	authored    map[string]int
	memberships map[string]int
	err         error
}

func newFakeRings() *fakeRings {
	return &fakeRings{
		recent:      make(map[string]*models.RingSummary),
		posts:       make(map[string]int),
		activeRings: make(map[string]int),
		authored:    make(map[string]int),
		memberships: make(map[string]int),
	}
}

func (f *fakeRings) CountRingsOwnedBy(ctx context.Context, actorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if _, ok := f.recent[actorID]; ok {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeRings) MostRecentRingOwnedBy(ctx context.Context, actorID string) (*models.RingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.recent[actorID], nil
}

func (f *fakeRings) CountAcceptedPosts(ctx context.Context, ringID string, excludeNotifications bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.posts[ringID], nil
}

func (f *fakeRings) CountActiveRingsWithAcceptedPosts(ctx context.Context, actorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.activeRings[actorID], nil
}

func (f *fakeRings) CountAcceptedPostsByAuthor(ctx context.Context, actorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.authored[actorID], nil
}

func (f *fakeRings) CountActiveMemberships(ctx context.Context, actorID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.memberships[actorID], nil
}

// failingCounters fails every call.
type failingCounters struct{}

func (failingCounters) Append(ctx context.Context, record *models.ActionRecord) error {
	return errStoreDown
}

func (failingCounters) CountSince(ctx context.Context, actorID, action string, since time.Time) (int, error) {
	return 0, errStoreDown
}

func (failingCounters) OldestSince(ctx context.Context, actorID, action string, since time.Time) (time.Time, bool, error) {
	return time.Time{}, false, errStoreDown
}

func (failingCounters) PruneOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	return 0, errStoreDown
}

// failingReputations fails every call.
type failingReputations struct{}

func (failingReputations) Get(ctx context.Context, actorID string) (*models.Reputation, error) {
	return nil, errStoreDown
}

func (failingReputations) UpsertTier(ctx context.Context, actorID string, tier models.Tier, score int, calculatedAt time.Time) error {
	return errStoreDown
}

func (failingReputations) RecordViolation(ctx context.Context, actorID string, at, cooldownUntil, pinnedUntil time.Time) error {
	return errStoreDown
}

func (failingReputations) SetFlagged(ctx context.Context, actorID string, flagged bool) error {
	return errStoreDown
}

func (failingReputations) ClearViolations(ctx context.Context, actorID string) error {
	return errStoreDown
}

func (failingReputations) ListFlagged(ctx context.Context) ([]models.Reputation, error) {
	return nil, errStoreDown
}

type published struct {
	topic string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, event: event})
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

type testEnv struct {
	engine      *Engine
	clock       *clock.Mock
	counters    CounterStore
	reputations ReputationStore
	actors      *fakeActors
	rings       *fakeRings
	publisher   *recordingPublisher
}

type envOption func(*Stores)

func withCounters(c CounterStore) envOption {
	return func(s *Stores) { s.Counters = c }
}

func withReputations(r ReputationStore) envOption {
	return func(s *Stores) { s.Reputations = r }
}

func withActors(a ActorDirectory) envOption {
	return func(s *Stores) { s.Actors = a }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:     clock.NewMock(testNow),
		actors:    newFakeActors(),
		rings:     newFakeRings(),
		publisher: &recordingPublisher{},
	}

	stores := Stores{
		Counters:    NewMemCounterStore(),
		Reputations: NewMemReputationStore(),
		Actors:      env.actors,
		Rings:       env.rings,
	}
	for _, opt := range opts {
		opt(&stores)
	}
	env.counters = stores.Counters
	env.reputations = stores.Reputations

	engine, err := New(Config{
		StoreTimeout: time.Second,
		Clock:        env.clock,
		Logger:       discardLogger(),
		Publisher:    env.publisher,
	}, stores)
	require.NoError(t, err)
	env.engine = engine

	return env
}

// actorAged registers an actor discovered age ago.
func (e *testEnv) actorAged(id string, age time.Duration) *models.Actor {
	a := &models.Actor{ID: id, DiscoveredAt: e.clock.Now().Add(-age)}
	e.actors.add(a)
	return a
}

// forkAt appends a fork record directly to the counter store.
func (e *testEnv) forkAt(t *testing.T, actorID string, at time.Time) {
	t.Helper()
	require.NoError(t, e.counters.Append(context.Background(), &models.ActionRecord{
		ID:          "act_" + at.Format("150405.000000") + actorID,
		ActorID:     actorID,
		Action:      models.ActionFork,
		PerformedAt: at,
	}))
}
