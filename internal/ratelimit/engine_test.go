package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aman-churiwal/ringhub-gateway/internal/events"
	"github.com/aman-churiwal/ringhub-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresStores(t *testing.T) {
	_, err := New(Config{}, Stores{Counters: NewMemCounterStore()})
	assert.Error(t, err)
}

func TestNewRejectsBadPolicy(t *testing.T) {
	_, err := New(Config{
		Policies: map[string]Policy{
			models.ActionFork: {Limits: TierLimits{models.TierNew: {Hourly: 1, Daily: 1, Weekly: 1}}},
		},
	}, Stores{
		Counters:    NewMemCounterStore(),
		Reputations: NewMemReputationStore(),
		Actors:      newFakeActors(),
		Rings:       newFakeRings(),
	})
	assert.Error(t, err, "tiers without limits must be rejected")
}

func TestFreshActorIsAllowed(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	env.actorAged("alice", 2*24*time.Hour)

	d, err := env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)

	assert.True(d.Allowed)
	assert.Equal(models.TierNew, d.Tier)
	assert.Equal(ReasonNone, d.Reason)
	assert.Equal(Counts{Hourly: 1, Daily: 3, Weekly: 10}, d.Remaining)

	now := env.clock.Now()
	assert.True(d.ResetTimes.Hourly.Equal(now.Add(HourWindow)))
	assert.True(d.ResetTimes.Daily.Equal(now.Add(DayWindow)))
	assert.True(d.ResetTimes.Weekly.Equal(now.Add(WeekWindow)))
}

func TestUnknownActorIsAllowedAsNew(t *testing.T) {
	env := newTestEnv(t)

	d, err := env.engine.CheckLimit(context.Background(), "ghost", models.ActionFork)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, models.TierNew, d.Tier)

	rep, err := env.reputations.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, rep, "unknown actors must not get a reputation record")
}

func TestHourlyCapDeniesWithResetFromOldestFork(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.actorAged("alice", 24*time.Hour)

	forkedAt := env.clock.Now().Add(-10 * time.Minute)
	env.forkAt(t, "alice", forkedAt)

	d, err := env.engine.CheckLimit(context.Background(), "alice", models.ActionFork)
	require.NoError(t, err)

	assert.False(d.Allowed)
	assert.Equal(0, d.Remaining.Hourly)
	assert.Equal(2, d.Remaining.Daily)
	assert.Equal(9, d.Remaining.Weekly)
	assert.True(d.ResetTimes.Hourly.Equal(forkedAt.Add(time.Hour)), "hourly reset %s", d.ResetTimes.Hourly)
	assert.True(d.ResetTimes.Daily.Equal(forkedAt.Add(24 * time.Hour)))
	assert.Equal(ReasonRateLimit, d.Reason)
	assert.Equal(WindowHourly, d.Window)
	assert.True(d.RetryAt().Equal(forkedAt.Add(time.Hour)))

	reason, window := ClassifyDenial(d, env.clock.Now())
	assert.Equal(ReasonRateLimit, reason)
	assert.Equal(WindowHourly, window)
}

func TestDailyCapAttribution(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.actorAged("alice", 24*time.Hour)

	now := env.clock.Now()
	for _, ago := range []time.Duration{5 * time.Hour, 4 * time.Hour, 3 * time.Hour} {
		env.forkAt(t, "alice", now.Add(-ago))
	}

	d, err := env.engine.CheckLimit(context.Background(), "alice", models.ActionFork)
	require.NoError(t, err)

	assert.False(d.Allowed)
	assert.Equal(Counts{Hourly: 1, Daily: 0, Weekly: 7}, d.Remaining)
	assert.Equal(WindowDaily, d.Window)
	assert.True(d.ResetTimes.Daily.Equal(now.Add(-5 * time.Hour).Add(DayWindow)))
	// the hourly window is empty
	assert.True(d.ResetTimes.Hourly.Equal(now.Add(HourWindow)))

	reason, window := ClassifyDenial(d, now)
	assert.Equal(ReasonRateLimit, reason)
	assert.Equal(WindowDaily, window)
}

func TestWeeklyCapAttribution(t *testing.T) {
	env := newTestEnv(t)
	env.actorAged("alice", 24*time.Hour)

	now := env.clock.Now()
	for day := 1; day <= 5; day++ {
		env.forkAt(t, "alice", now.Add(-time.Duration(day)*24*time.Hour-time.Hour))
		env.forkAt(t, "alice", now.Add(-time.Duration(day)*24*time.Hour-2*time.Hour))
	}

	d, err := env.engine.CheckLimit(context.Background(), "alice", models.ActionFork)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, Counts{Hourly: 1, Daily: 3, Weekly: 0}, d.Remaining)
	assert.Equal(t, WindowWeekly, d.Window)
}

func TestRecordsOutsideWindowsDoNotCount(t *testing.T) {
	env := newTestEnv(t)
	env.actorAged("alice", 24*time.Hour)
	env.forkAt(t, "alice", env.clock.Now().Add(-8*24*time.Hour))

	d, err := env.engine.CheckLimit(context.Background(), "alice", models.ActionFork)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, Counts{Hourly: 1, Daily: 3, Weekly: 10}, d.Remaining)
}

func TestCooldownDeniesRegardlessOfUsage(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	env.actorAged("alice", 40*24*time.Hour)

	now := env.clock.Now()
	until := now.Add(5 * time.Hour)
	require.NoError(t, env.reputations.RecordViolation(ctx, "alice", now, until, until))

	d, err := env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)

	assert.False(d.Allowed)
	assert.Equal(Counts{}, d.Remaining)
	assert.True(d.ResetTimes.Hourly.Equal(until))
	assert.True(d.ResetTimes.Daily.Equal(until))
	assert.True(d.ResetTimes.Weekly.Equal(until))
	assert.Equal(models.TierNew, d.Tier)
	assert.Equal(ReasonCooldown, d.Reason)
	assert.True(d.RetryAt().Equal(until))

	reason, _ := ClassifyDenial(d, now)
	assert.Equal(ReasonCooldown, reason)
}

func TestQualityGateDenial(t *testing.T) {
	assert := assert.New(t)
	env := newTestEnv(t)
	env.actorAged("alice", 10*24*time.Hour)

	now := env.clock.Now()
	env.rings.recent["alice"] = &models.RingSummary{ID: "r1", CreatedAt: now.Add(-2 * time.Hour)}

	d, err := env.engine.CheckLimit(context.Background(), "alice", models.ActionFork)
	require.NoError(t, err)

	assert.False(d.Allowed)
	assert.Equal(ReasonQualityGate, d.Reason)
	assert.Equal(gateFailureReason, d.Message)
	assert.Equal(Counts{}, d.Remaining)
	assert.Equal(models.TierEstablished, d.Tier)
	assert.True(d.ResetTimes.Hourly.Equal(now.Add(24 * time.Hour)))
	assert.True(d.ResetTimes.Daily.Equal(now.Add(24 * time.Hour)))
	assert.True(d.ResetTimes.Weekly.After(now.Add(2 * time.Hour)))

	reason, _ := ClassifyDenial(d, now)
	assert.Equal(ReasonQualityGate, reason)
}

func TestQualityGatePassesWithEngagement(t *testing.T) {
	env := newTestEnv(t)
	env.actorAged("alice", 10*24*time.Hour)
	env.rings.recent["alice"] = &models.RingSummary{ID: "r1", CreatedAt: env.clock.Now().Add(-2 * time.Hour)}
	env.rings.posts["r1"] = 1

	d, err := env.engine.CheckLimit(context.Background(), "alice", models.ActionFork)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCooldownDemotesTrustedActor(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.actorAged("alice", 200*24*time.Hour)
	a.Trusted = true
	env.actors.add(a)

	assert.Equal(models.TierTrusted, env.engine.ResolveTier(ctx, "alice"))

	until, err := env.engine.ApplyCooldown(ctx, "alice", 0)
	require.NoError(t, err)
	assert.True(until.Equal(env.clock.Now().Add(DefaultCooldownHours * time.Hour)))
	assert.Equal(models.TierNew, env.engine.ResolveTier(ctx, "alice"))

	// still NEW right after the cooldown lifts
	env.clock.Set(until.Add(30 * time.Minute))
	assert.False(env.engine.IsInCooldown(ctx, "alice"))
	assert.Equal(models.TierNew, env.engine.ResolveTier(ctx, "alice"))

	// recomputed once the pinned tier goes stale
	env.clock.Set(until.Add(2 * time.Hour))
	assert.Equal(models.TierTrusted, env.engine.ResolveTier(ctx, "alice"))
}

func TestReviewFlagThreshold(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for i := 0; i < ReviewWeeklyThreshold-1; i++ {
		require.NoError(t, env.engine.RecordAction(ctx, "alice", models.ActionFork, nil))
		env.clock.Advance(time.Hour)
	}

	rep, err := env.reputations.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, rep, "19 forks must not flag")

	require.NoError(t, env.engine.RecordAction(ctx, "alice", models.ActionFork, map[string]any{"parent": "ring-a"}))

	rep, err = env.reputations.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.True(t, rep.FlaggedForReview)
	assert.Equal(t, models.TierNew, rep.Tier)

	flagged, err := env.engine.ListFlaggedActors(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "alice", flagged[0].ActorID)
	assert.Contains(t, env.publisher.topics(), events.TopicActorFlagged)
}

func TestAdminBypassesEverything(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.actorAged("root", time.Hour)
	a.IsAdmin = true
	env.actors.add(a)

	now := env.clock.Now()
	_, err := env.engine.ApplyCooldown(ctx, "root", 48)
	require.NoError(t, err)
	env.rings.recent["root"] = &models.RingSummary{ID: "r1", CreatedAt: now.Add(-3 * time.Hour)}
	for i := 0; i < 12; i++ {
		env.forkAt(t, "root", now.Add(-time.Duration(i)*time.Minute))
	}

	d, err := env.engine.CheckLimit(ctx, "root", models.ActionFork)
	require.NoError(t, err)

	assert.True(d.Allowed)
	assert.Equal(models.TierAdmin, d.Tier)
	assert.Equal(Counts{Hourly: AdminRemaining, Daily: AdminRemaining, Weekly: AdminRemaining}, d.Remaining)
	assert.True(d.ResetTimes.Hourly.Equal(now.Add(time.Hour)))
	assert.True(d.ResetTimes.Daily.Equal(now.Add(24 * time.Hour)))
	assert.True(d.ResetTimes.Weekly.Equal(now.Add(7 * 24 * time.Hour)))
}

func TestClearViolationsRestoresAccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.actorAged("alice", 40*24*time.Hour)

	_, err := env.engine.ApplyCooldown(ctx, "alice", 24)
	require.NoError(t, err)

	d, err := env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	require.NoError(t, env.engine.ClearViolations(ctx, "alice"))

	d, err = env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, models.TierVeteran, d.Tier, "tier is recomputed after a clear")

	rep, err := env.engine.Reputation(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, rep.ViolationCount)
	assert.Nil(t, rep.CooldownUntil)

	assert.Equal(t, []string{
		events.TopicCooldownApplied,
		events.TopicForkDenied,
		events.TopicViolationsCleared,
	}, env.publisher.topics())
}

func TestOperatorActionsRefreshCachedProfile(t *testing.T) {
	ctx := context.Background()
	fake := newFakeActors()
	env := newTestEnv(t, withActors(NewCachedActorDirectory(fake, 16, time.Hour)))
	fake.add(&models.Actor{ID: "alice", DiscoveredAt: env.clock.Now().Add(-2 * 24 * time.Hour)})

	d, err := env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	require.Equal(t, models.TierNew, d.Tier)

	// promoted out of band; the cached profile still says NEW
	fake.add(&models.Actor{ID: "alice", DiscoveredAt: env.clock.Now().Add(-2 * 24 * time.Hour), IsAdmin: true})
	d, err = env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	assert.Equal(t, models.TierNew, d.Tier)

	require.NoError(t, env.engine.ClearViolations(ctx, "alice"))
	d, err = env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	assert.Equal(t, models.TierAdmin, d.Tier)

	fake.add(&models.Actor{ID: "alice", DiscoveredAt: env.clock.Now().Add(-40 * 24 * time.Hour)})
	_, err = env.engine.ApplyCooldown(ctx, "alice", 1)
	require.NoError(t, err)
	d, err = env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCooldown, d.Reason)
}

func TestUnknownActionIsAnError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.engine.CheckLimit(ctx, "alice", "delete_ring")
	assert.ErrorIs(t, err, ErrUnknownAction)

	err = env.engine.RecordAction(ctx, "alice", "delete_ring", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestRecordActionThenCheck(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.actorAged("alice", 10*24*time.Hour)

	require.NoError(t, env.engine.RecordAction(ctx, "alice", models.ActionFork, map[string]any{"parent": "ring-a"}))

	d, err := env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, Counts{Hourly: 1, Daily: 4, Weekly: 19}, d.Remaining)

	require.NoError(t, env.engine.RecordAction(ctx, "alice", models.ActionFork, nil))
	d, err = env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestCounterOutageFailsOpen(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withCounters(failingCounters{}))
	env.actorAged("alice", 24*time.Hour)

	d, err := env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, Counts{Hourly: 1, Daily: 3, Weekly: 10}, d.Remaining)

	assert.NoError(t, env.engine.RecordAction(ctx, "alice", models.ActionFork, nil))
}

func TestReputationOutageFailsOpen(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, withReputations(failingReputations{}))
	env.actorAged("alice", 10*24*time.Hour)

	d, err := env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, models.TierEstablished, d.Tier)

	assert.NoError(t, env.engine.RecordAction(ctx, "alice", models.ActionFork, nil))

	// admin operations report the failure
	_, err = env.engine.ApplyCooldown(ctx, "alice", 1)
	assert.ErrorIs(t, err, errStoreDown)
	assert.ErrorIs(t, env.engine.ClearViolations(ctx, "alice"), errStoreDown)
	_, err = env.engine.ListFlaggedActors(ctx)
	assert.ErrorIs(t, err, errStoreDown)
}

func TestDirectoryOutageFailsOpen(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.actors.err = errStoreDown
	env.rings.err = errStoreDown

	d, err := env.engine.CheckLimit(ctx, "alice", models.ActionFork)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, models.TierNew, d.Tier)
}

func TestDenialPublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	env.actorAged("alice", 24*time.Hour)
	env.forkAt(t, "alice", env.clock.Now().Add(-time.Minute))

	_, err := env.engine.CheckLimit(context.Background(), "alice", models.ActionFork)
	require.NoError(t, err)

	require.Len(t, env.publisher.events, 1)
	ev, ok := env.publisher.events[0].event.(events.ForkDenied)
	require.True(t, ok)
	assert.Equal(t, "alice", ev.ActorID)
	assert.Equal(t, string(ReasonRateLimit), ev.Reason)
	assert.Equal(t, "NEW", ev.Tier)
}

func TestConcurrentChecksAndRecords(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		env.actorAged(id, 50*24*time.Hour)
	}

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(actorID string) {
				defer wg.Done()
				d, err := env.engine.CheckLimit(ctx, actorID, models.ActionFork)
				assert.NoError(t, err)
				if d.Allowed {
					assert.NoError(t, env.engine.RecordAction(ctx, actorID, models.ActionFork, nil))
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"a", "b", "c", "d"} {
		d, err := env.engine.CheckLimit(ctx, id, models.ActionFork)
		require.NoError(t, err)
		assert.Equal(t, models.TierVeteran, d.Tier)
		assert.Equal(t, 0, d.Remaining.Hourly, "actor %s", id)
	}
}

func TestActions(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, []string{models.ActionFork}, env.engine.Actions())
}
